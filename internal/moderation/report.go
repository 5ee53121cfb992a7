package moderation

// Detection thresholds. Most categories flag at "likely positive"; the
// AI-generated and minor-detected signals are higher-consequence and require
// near-certainty before flagging.
const (
	LikelyThreshold      = 0.85
	NearCertainThreshold = 0.98
)

// Human-readable violation messages. These strings are persisted on rejected
// photos and shown to the user, and the decision engine matches its severity
// keywords against them, so they are fixed constants rather than free text.
const (
	MsgDuplicatePhoto  = "Photo appears to be a duplicate of another photo"
	MsgFullNudity      = "Photo contains full nudity"
	MsgPartialNudity   = "Photo contains partial nudity"
	MsgWeapon          = "Photo contains a weapon"
	MsgDrugs           = "Photo contains recreational drugs"
	MsgMedical         = "Photo contains graphic medical content"
	MsgOffensive       = "Photo contains an offensive gesture or symbol"
	MsgGore            = "Photo contains gore"
	MsgViolence        = "Photo contains violence"
	MsgSelfHarm        = "Photo contains self-harm content"
	MsgScam            = "Photo appears to be part of a scam"
	MsgGambling        = "Photo contains gambling content"
	MsgTobacco         = "Photo contains tobacco products"
	MsgAIGenerated     = "Photo appears to be AI-generated"
	MsgIllustration    = "Photo appears to be an illustration rather than a photograph"
	MsgQRContent       = "Photo contains a QR code or embedded link"
	MsgEmbeddedContact = "Photo contains embedded contact information"
	MsgNoFace          = "No face could be detected in the photo"
	MsgMinorDetected   = "Photo appears to include a minor"
)

// ScoreFinding is the normalized result for a single-score category.
type ScoreFinding struct {
	Score    float64  `json:"score"`
	Flagged  bool     `json:"flagged"`
	Messages []string `json:"messages,omitempty"`
}

// NudityFinding carries both the full and partial nudity scores.
type NudityFinding struct {
	Raw             float64  `json:"raw"`
	Partial         float64  `json:"partial"`
	IsNude          bool     `json:"is_nude"`
	IsPartiallyNude bool     `json:"is_partially_nude"`
	Messages        []string `json:"messages,omitempty"`
}

// FacesFinding summarizes the face-detection and face-attribute models.
type FacesFinding struct {
	Count         int      `json:"count"`
	NoFace        bool     `json:"no_face"`
	MinorScore    float64  `json:"minor_score"`
	MinorDetected bool     `json:"minor_detected"`
	Messages      []string `json:"messages,omitempty"`
}

// TextFinding summarizes text embedded in the image itself.
type TextFinding struct {
	ArtificialScore float64  `json:"artificial_score"`
	HasArtificial   bool     `json:"has_artificial"`
	HasContactInfo  bool     `json:"has_contact_info"`
	Messages        []string `json:"messages,omitempty"`
}

// QRFinding summarizes machine-readable content found in the image.
type QRFinding struct {
	HasContent bool     `json:"has_content"`
	Links      []string `json:"links,omitempty"`
	Messages   []string `json:"messages,omitempty"`
}

// AnalysisReport is the normalized violation report for one photo (or one
// bio). Messages aggregates every category message; an empty list means the
// content is approved.
type AnalysisReport struct {
	Nudity           *NudityFinding `json:"nudity,omitempty"`
	Weapon           *ScoreFinding  `json:"weapon,omitempty"`
	RecreationalDrug *ScoreFinding  `json:"recreational_drug,omitempty"`
	Medical          *ScoreFinding  `json:"medical,omitempty"`
	Offensive        *ScoreFinding  `json:"offensive,omitempty"`
	Gore             *ScoreFinding  `json:"gore,omitempty"`
	Violence         *ScoreFinding  `json:"violence,omitempty"`
	SelfHarm         *ScoreFinding  `json:"self_harm,omitempty"`
	Scam             *ScoreFinding  `json:"scam,omitempty"`
	Gambling         *ScoreFinding  `json:"gambling,omitempty"`
	Tobacco          *ScoreFinding  `json:"tobacco,omitempty"`
	AIGenerated      *ScoreFinding  `json:"ai_generated,omitempty"`
	IsIllustration   *ScoreFinding  `json:"is_illustration,omitempty"`
	QRContent        *QRFinding     `json:"qr_content,omitempty"`
	Text             *TextFinding   `json:"text,omitempty"`
	Faces            *FacesFinding  `json:"faces,omitempty"`
	Messages         []string       `json:"messages"`
}

// Approved reports whether the analysis found no violations.
func (r *AnalysisReport) Approved() bool {
	return len(r.Messages) == 0
}
