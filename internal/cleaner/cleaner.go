package cleaner

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"document-qa/internal/models"
)

const (
	minTextLength     = 50
	maxArtifactTokens = 3
)

// digitRunRe flags passages dominated by numeric noise, typically page
// number runs, tables, or OCR garbage.
var digitRunRe = regexp.MustCompile(`[0-9]{4,}`)

// Normalize collapses every run of whitespace, newlines included, into a
// single ASCII space and trims the ends. Idempotent.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// NormalizePages returns the pages with normalized text, same order.
func NormalizePages(pages []models.PageUnit) []models.PageUnit {
	out := make([]models.PageUnit, 0, len(pages))
	for _, p := range pages {
		p.Text = Normalize(p.Text)
		out = append(out, p)
	}
	return out
}

// Keep reports whether a text unit survives the quality filter. A unit
// is discarded when it is shorter than 50 characters, carries more than
// three <pad> or <EOS> model artifacts, or contains a run of four or
// more consecutive digits.
func Keep(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minTextLength {
		return false
	}
	if strings.Count(text, "<pad>") > maxArtifactTokens || strings.Count(text, "<EOS>") > maxArtifactTokens {
		return false
	}
	if digitRunRe.MatchString(text) {
		return false
	}
	return true
}

// FilterPages drops low-quality pages, preserving the order of the
// survivors. An empty result is valid.
func FilterPages(pages []models.PageUnit) []models.PageUnit {
	filtered := make([]models.PageUnit, 0, len(pages))
	for _, p := range pages {
		if Keep(p.Text) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
