package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-import/backend/internal/adapters/memory"
	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
)

func strPtr(s string) *string { return &s }

func facility(name, city, province string) *entities.Facility {
	return &entities.Facility{Name: name, City: city, Province: province, AutoImported: true}
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("", ""))
	assert.Equal(t, 1.0, NameSimilarity("Clinic", "Clinic"))
	assert.Equal(t, 0.0, NameSimilarity("abc", ""))
	assert.InDelta(t, 0.75, NameSimilarity("abcd", "abce"), 1e-9)

	assert.GreaterOrEqual(t, NameSimilarity("Groote Schuur Hospital", "Groote Schuur Hospitals"), FuzzyNameThreshold)
	assert.Less(t, NameSimilarity("Groote Schuur Hospital", "Tygerberg Hospital"), FuzzyNameThreshold)

	// Lengths are counted in characters, not bytes.
	assert.InDelta(t, 1.0-1.0/6.0, NameSimilarity("Clïnic", "Clinic"), 1e-9)
}

func TestNameSimilarity_IsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Groote Schuur Hospital", "Groote Schuur Hospitals"},
		{"Groote Schuur Hospital", "Tygerberg Hospital"},
		{"", "Netcare"},
		{"Life Wilgeheuwel", "life wilgeheuwel"},
		{"Mediclinic Sandton", "Sandton Mediclinic"},
		{"Dis-Chem", "Dischem"},
	}
	for _, p := range pairs {
		assert.Equal(t, NameSimilarity(p[0], p[1]), NameSimilarity(p[1], p[0]), "%q vs %q", p[0], p[1])

		a := facility(p[0], "Cape Town", entities.ProvinceWesternCape)
		b := facility(p[1], "Cape Town", entities.ProvinceWesternCape)
		assert.Equal(t, FuzzyMatch(a, b), FuzzyMatch(b, a))
		assert.Equal(t, ExactMatch(a, b), ExactMatch(b, a))
	}
}

func TestExactMatch(t *testing.T) {
	base := facility("Groote Schuur Hospital", "Cape Town", entities.ProvinceWesternCape)

	assert.True(t, ExactMatch(base, facility("GROOTE SCHUUR HOSPITAL", "cape town", entities.ProvinceWesternCape)))
	assert.False(t, ExactMatch(base, facility("Groote Schuur Hospital", "Cape Town", entities.ProvinceEasternCape)))
	assert.False(t, ExactMatch(base, facility("Groote Schuur Hospital", "Observatory", entities.ProvinceWesternCape)))
	assert.False(t, ExactMatch(base, facility("Groote Schuur Hospitals", "Cape Town", entities.ProvinceWesternCape)))
}

func TestFuzzyMatch(t *testing.T) {
	base := facility("Groote Schuur Hospital", "Cape Town", entities.ProvinceWesternCape)

	assert.True(t, FuzzyMatch(base, facility("Groote Schuur Hospitals", "Cape Town", entities.ProvinceWesternCape)))
	assert.False(t, FuzzyMatch(base, facility("Tygerberg Hospital", "Cape Town", entities.ProvinceWesternCape)))
	// City must match exactly, including case.
	assert.False(t, FuzzyMatch(base, facility("Groote Schuur Hospitals", "cape town", entities.ProvinceWesternCape)))
	assert.False(t, FuzzyMatch(base, facility("Groote Schuur Hospitals", "Cape Town", entities.ProvinceUnknown)))
}

func TestFindExisting_Precedence(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFacilityStore()
	matcher := NewSimilarityMatcher(store)

	byExternal := facility("Old Name", "Elsewhere", entities.ProvinceLimpopo)
	byExternal.ExternalID = strPtr("node:1")
	byExternal.ExternalSource = strPtr(DefaultExternalSource)
	storedExternal, err := store.Create(ctx, byExternal)
	require.NoError(t, err)

	fuzzy, err := store.Create(ctx, facility("Groote Schuur Hospitals", "Cape Town", entities.ProvinceWesternCape))
	require.NoError(t, err)
	exact, err := store.Create(ctx, facility("groote schuur hospital", "CAPE TOWN", entities.ProvinceWesternCape))
	require.NoError(t, err)

	incoming := facility("Groote Schuur Hospital", "Cape Town", entities.ProvinceWesternCape)
	incoming.ExternalID = strPtr("node:1")
	incoming.ExternalSource = strPtr(DefaultExternalSource)

	found, err := matcher.FindExisting(ctx, incoming)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, storedExternal.ID, found.ID)

	incoming.ExternalID = strPtr("node:999")
	found, err = matcher.FindExisting(ctx, incoming)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, exact.ID, found.ID, "exact match beats an earlier fuzzy candidate")

	require.NoError(t, store.Delete(ctx, exact.ID))
	found, err = matcher.FindExisting(ctx, incoming)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, fuzzy.ID, found.ID)

	elsewhere := facility("Groote Schuur Hospital", "Johannesburg", entities.ProvinceGauteng)
	found, err = matcher.FindExisting(ctx, elsewhere)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindExisting_IgnoresManualRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFacilityStore()
	matcher := NewSimilarityMatcher(store)

	manual := facility("Groote Schuur Hospital", "Cape Town", entities.ProvinceWesternCape)
	manual.AutoImported = false
	_, err := store.Create(ctx, manual)
	require.NoError(t, err)

	found, err := matcher.FindExisting(ctx, facility("Groote Schuur Hospital", "Cape Town", entities.ProvinceWesternCape))
	require.NoError(t, err)
	assert.Nil(t, found)
}
