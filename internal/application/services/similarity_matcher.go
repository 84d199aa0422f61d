package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/repositories"
)

// FuzzyNameThreshold is the minimum name similarity for a fuzzy match
const FuzzyNameThreshold = 0.8

// NameSimilarity returns 1 - editDistance/maxLen over runes. Two empty strings are identical.
func NameSimilarity(s1, s2 string) float64 {
	maxLen := utf8.RuneCountInString(s1)
	if l := utf8.RuneCountInString(s2); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(s1, s2))/float64(maxLen)
}

// ExactMatch compares name and city case-insensitively and province exactly
func ExactMatch(a, b *entities.Facility) bool {
	return strings.EqualFold(a.Name, b.Name) &&
		strings.EqualFold(a.City, b.City) &&
		a.Province == b.Province
}

// FuzzyMatch requires similar names and identical city and province.
// City is compared case-sensitively.
func FuzzyMatch(a, b *entities.Facility) bool {
	return a.City == b.City &&
		a.Province == b.Province &&
		NameSimilarity(a.Name, b.Name) >= FuzzyNameThreshold
}

// SimilarityMatcher finds the stored record a normalized facility corresponds to
type SimilarityMatcher struct {
	repo repositories.FacilityRepository
}

// NewSimilarityMatcher creates a matcher backed by the facility repository
func NewSimilarityMatcher(repo repositories.FacilityRepository) *SimilarityMatcher {
	return &SimilarityMatcher{repo: repo}
}

// FindExisting returns the stored auto-imported facility matching f, or nil.
// External identity wins, then an exact match, then a fuzzy match, all within
// the same city and province.
func (m *SimilarityMatcher) FindExisting(ctx context.Context, f *entities.Facility) (*entities.Facility, error) {
	if f.ExternalID != nil && f.ExternalSource != nil {
		existing, err := m.repo.FindByExternalID(ctx, *f.ExternalSource, *f.ExternalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	candidates, err := m.repo.FindCandidates(ctx, "", f.City, f.Province)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if ExactMatch(f, candidate) {
			return candidate, nil
		}
	}
	for _, candidate := range candidates {
		if FuzzyMatch(f, candidate) {
			return candidate, nil
		}
	}
	return nil, nil
}
