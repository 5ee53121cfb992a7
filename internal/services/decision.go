package services

import (
	"strings"

	"github.com/sparkmeet/moderation-worker/internal/moderation"
	"github.com/sparkmeet/moderation-worker/internal/models"
)

// SuspensionReason is stored on the user record when a high-severity photo
// violation disables the account.
const SuspensionReason = "Your account has been suspended because one or more of your photos seriously violated our community guidelines."

// suspendKeywords are matched case-insensitively as substrings against the
// rejection messages of a photo batch. Any hit suspends the account
// immediately; bio moderation never reaches this path.
var suspendKeywords = []string{"violence", "gore", "nudity", "scam"}

// PhotoDecision is the per-photo outcome of one review pass.
type PhotoDecision struct {
	Path     string   `json:"path"`
	Rejected bool     `json:"rejected"`
	Messages []string `json:"messages,omitempty"`
}

// DecidePhoto maps a normalized analysis report onto a photo decision: any
// message rejects, no messages approves.
func DecidePhoto(path string, report *moderation.AnalysisReport) PhotoDecision {
	if report.Approved() {
		return PhotoDecision{Path: path}
	}
	return PhotoDecision{Path: path, Rejected: true, Messages: report.Messages}
}

// ShouldSuspend reports whether any rejected photo in the batch carries a
// high-severity violation.
func ShouldSuspend(decisions []PhotoDecision) bool {
	for _, d := range decisions {
		if !d.Rejected {
			continue
		}
		for _, msg := range d.Messages {
			lower := strings.ToLower(msg)
			for _, keyword := range suspendKeywords {
				if strings.Contains(lower, keyword) {
					return true
				}
			}
		}
	}
	return false
}

// ApplyDecisions writes the per-photo outcomes back onto the photo array,
// matching by path. Photos without a decision this pass keep their state.
func ApplyDecisions(photos []models.UserPhoto, decisions []PhotoDecision) []models.UserPhoto {
	byPath := make(map[string]PhotoDecision, len(decisions))
	for _, d := range decisions {
		byPath[d.Path] = d
	}

	updated := make([]models.UserPhoto, len(photos))
	for i, p := range photos {
		if d, ok := byPath[p.Path]; ok {
			p.IsRejected = d.Rejected
			p.Messages = d.Messages
		}
		updated[i] = p
	}
	return updated
}
