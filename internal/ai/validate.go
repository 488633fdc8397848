package ai

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hray3182/SpendWise/internal/models"
)

var ErrInvalidSuggestion = errors.New("invalid ai suggestion")

// ValidateSuggestion checks that category is one of categories and returns
// it in the listed spelling. Matching ignores case and surrounding space.
func ValidateSuggestion(category string, categories []string) (string, error) {
	want := strings.TrimSpace(category)
	if want == "" {
		return "", fmt.Errorf("%w: empty category", ErrInvalidSuggestion)
	}
	for _, c := range categories {
		if strings.EqualFold(c, want) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidSuggestion, want)
}

// ValidateParse rejects parse results that cannot become a draft and returns
// out with a trimmed, length-limited description.
func ValidateParse(out ParseOutput) (ParseOutput, error) {
	if !out.Type.Valid() {
		return ParseOutput{}, fmt.Errorf("%w: type %q", ErrInvalidSuggestion, out.Type)
	}
	if out.Amount <= 0 {
		return ParseOutput{}, fmt.Errorf("%w: amount must be positive", ErrInvalidSuggestion)
	}
	desc := strings.TrimSpace(out.Description)
	if desc == "" {
		return ParseOutput{}, fmt.Errorf("%w: empty description", ErrInvalidSuggestion)
	}
	if utf8.RuneCountInString(desc) > models.MaxDescriptionLength {
		desc = string([]rune(desc)[:models.MaxDescriptionLength])
	}
	out.Description = desc
	return out, nil
}

// FilterKnownIDs keeps the ids that name a transaction in txs, in their
// original order and without duplicates.
func FilterKnownIDs(ids []string, txs []models.Transaction) []string {
	known := make(map[string]bool, len(txs))
	for _, tx := range txs {
		known[tx.ID] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
			known[id] = false
		}
	}
	return out
}
