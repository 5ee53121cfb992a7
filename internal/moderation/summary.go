package moderation

// Summarize converts a raw vendor response into a normalized AnalysisReport.
// Every category the vendor returned gets a finding; flagged findings
// contribute their messages to the aggregated Messages list. A nil or failed
// response yields ErrNoUsableResult, which callers treat as a hard error for
// the user's review.
func Summarize(a *ImageAnalysis) (*AnalysisReport, error) {
	if a == nil || a.Status != "success" {
		return nil, ErrNoUsableResult
	}

	report := &AnalysisReport{Messages: []string{}}

	if a.Nudity != nil {
		f := &NudityFinding{
			Raw:             a.Nudity.Raw,
			Partial:         a.Nudity.Partial,
			IsNude:          a.Nudity.Raw >= LikelyThreshold,
			IsPartiallyNude: a.Nudity.Partial >= LikelyThreshold,
		}
		if f.IsNude {
			f.Messages = append(f.Messages, MsgFullNudity)
		}
		if f.IsPartiallyNude {
			f.Messages = append(f.Messages, MsgPartialNudity)
		}
		report.Nudity = f
	}

	report.Weapon = scoreFinding(a.Weapon, LikelyThreshold, MsgWeapon)
	report.RecreationalDrug = scoreFinding(a.RecreationalDrug, LikelyThreshold, MsgDrugs)
	report.Medical = scoreFinding(a.Medical, LikelyThreshold, MsgMedical)
	report.Offensive = probFinding(a.Offensive, LikelyThreshold, MsgOffensive)
	report.Gore = probFinding(a.Gore, LikelyThreshold, MsgGore)
	report.Violence = probFinding(a.Violence, LikelyThreshold, MsgViolence)
	report.SelfHarm = probFinding(a.SelfHarm, LikelyThreshold, MsgSelfHarm)
	report.Scam = probFinding(a.Scam, LikelyThreshold, MsgScam)
	report.Gambling = probFinding(a.Gambling, LikelyThreshold, MsgGambling)
	report.Tobacco = probFinding(a.Tobacco, LikelyThreshold, MsgTobacco)

	if a.Type != nil {
		report.AIGenerated = scoreFinding(a.Type.AIGenerated, NearCertainThreshold, MsgAIGenerated)
		report.IsIllustration = scoreFinding(a.Type.Illustration, LikelyThreshold, MsgIllustration)
	}

	if a.QR != nil {
		f := &QRFinding{}
		for _, m := range a.QR.Link {
			f.Links = append(f.Links, m.Match)
		}
		for _, m := range a.QR.Personal {
			f.Links = append(f.Links, m.Match)
		}
		for _, m := range a.QR.Social {
			f.Links = append(f.Links, m.Match)
		}
		if len(f.Links) > 0 {
			f.HasContent = true
			f.Messages = append(f.Messages, MsgQRContent)
		}
		report.QRContent = f
	}

	if a.Text != nil {
		f := &TextFinding{
			ArtificialScore: a.Text.HasArtificial,
			HasArtificial:   a.Text.HasArtificial >= LikelyThreshold,
			HasContactInfo:  len(a.Text.PersonalNumbers) > 0,
		}
		if f.HasContactInfo {
			f.Messages = append(f.Messages, MsgEmbeddedContact)
		}
		report.Text = f
	}

	// Faces is always populated when the model list includes face detection;
	// an empty array means no face was found.
	faces := &FacesFinding{Count: len(a.Faces)}
	if faces.Count == 0 {
		faces.NoFace = true
		faces.Messages = append(faces.Messages, MsgNoFace)
	}
	for _, face := range a.Faces {
		if face.Attributes.Minor > faces.MinorScore {
			faces.MinorScore = face.Attributes.Minor
		}
	}
	if faces.MinorScore >= NearCertainThreshold {
		faces.MinorDetected = true
		faces.Messages = append(faces.Messages, MsgMinorDetected)
	}
	report.Faces = faces

	report.Messages = collectMessages(report)
	return report, nil
}

func scoreFinding(score, threshold float64, message string) *ScoreFinding {
	f := &ScoreFinding{Score: score, Flagged: score >= threshold}
	if f.Flagged {
		f.Messages = append(f.Messages, message)
	}
	return f
}

func probFinding(signal *ProbSignal, threshold float64, message string) *ScoreFinding {
	if signal == nil {
		return nil
	}
	return scoreFinding(signal.Prob, threshold, message)
}

func collectMessages(r *AnalysisReport) []string {
	messages := []string{}
	if r.Nudity != nil {
		messages = append(messages, r.Nudity.Messages...)
	}
	for _, f := range []*ScoreFinding{
		r.Weapon, r.RecreationalDrug, r.Medical, r.Offensive, r.Gore,
		r.Violence, r.SelfHarm, r.Scam, r.Gambling, r.Tobacco,
		r.AIGenerated, r.IsIllustration,
	} {
		if f != nil {
			messages = append(messages, f.Messages...)
		}
	}
	if r.QRContent != nil {
		messages = append(messages, r.QRContent.Messages...)
	}
	if r.Text != nil {
		messages = append(messages, r.Text.Messages...)
	}
	if r.Faces != nil {
		messages = append(messages, r.Faces.Messages...)
	}
	return messages
}
