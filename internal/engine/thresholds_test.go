package engine

import (
	"math"
	"testing"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBaremeIsWellFormed(t *testing.T) {
	require.NoError(t, ValidateBareme(DefaultBareme()))
}

func TestValidateBaremeRejectsGaps(t *testing.T) {
	bareme := []Seuil{
		{Code: "S1", Min: 0, Max: 5_000_000, Procedure: models.ProcedureGreAGre},
		{Code: "S2", Min: 6_000_000, Max: math.Inf(1), Procedure: models.ProcedureAppelOffresOuvert},
	}
	assert.Error(t, ValidateBareme(bareme))

	bareme[1].Min = 5_000_000
	bareme[0].Min = 1
	assert.Error(t, ValidateBareme(bareme), "first band must start at zero")

	bareme[0].Min = 0
	bareme[1].Max = 200_000_000
	assert.Error(t, ValidateBareme(bareme), "last band must be open-ended")
}

func TestRecommendedProcedureScenarios(t *testing.T) {
	bareme := DefaultBareme()

	cases := []struct {
		montant   float64
		procedure string
	}{
		{5_000_000, models.ProcedureGreAGre},
		{15_000_000, models.ProcedureDemandeCotation},
		{50_000_000, models.ProcedureAppelOffresRestreint},
		{200_000_000, models.ProcedureAppelOffresOuvert},
	}
	for _, tc := range cases {
		band := RecommendedProcedure(bareme, tc.montant)
		require.NotNil(t, band, "montant %.0f", tc.montant)
		assert.Equal(t, tc.procedure, band.Procedure, "montant %.0f", tc.montant)
	}
}

// A value sitting exactly on a boundary belongs to the upper band.
func TestRecommendedProcedureBoundaries(t *testing.T) {
	bareme := DefaultBareme()

	cases := []struct {
		montant   float64
		procedure string
	}{
		{10_000_000, models.ProcedureDemandeCotation},
		{30_000_000, models.ProcedureAppelOffresRestreint},
		{100_000_000, models.ProcedureAppelOffresOuvert},
	}
	for _, tc := range cases {
		band := RecommendedProcedure(bareme, tc.montant)
		require.NotNil(t, band)
		assert.Equal(t, tc.procedure, band.Procedure, "montant %.0f", tc.montant)
	}
}

func TestRecommendedProcedureUnknownAmount(t *testing.T) {
	bareme := DefaultBareme()
	assert.Nil(t, RecommendedProcedure(bareme, 0))
	assert.Nil(t, RecommendedProcedure(bareme, -500))
}

func TestIsCoherent(t *testing.T) {
	bareme := DefaultBareme()

	ok, _ := IsCoherent(bareme, 5_000_000, models.ProcedureAppelOffresOuvert)
	assert.False(t, ok, "open tender for a small amount is over-procedure")

	ok, recommande := IsCoherent(bareme, 200_000_000, models.ProcedureGreAGre)
	assert.False(t, ok)
	require.NotNil(t, recommande)
	assert.Equal(t, models.ProcedureAppelOffresOuvert, recommande.Procedure)

	ok, _ = IsCoherent(bareme, 5_000_000, models.ProcedureGreAGre)
	assert.True(t, ok)

	// Exempt procedures are coherent at any amount.
	for _, montant := range []float64{1, 5_000_000, 200_000_000} {
		ok, _ = IsCoherent(bareme, montant, models.ProcedureEntenteDirecte)
		assert.True(t, ok, "entente directe at %.0f", montant)
		ok, _ = IsCoherent(bareme, montant, models.ProcedurePrestationIntellectuelle)
		assert.True(t, ok, "prestation intellectuelle at %.0f", montant)
	}

	// Unknown amount: anything goes.
	ok, _ = IsCoherent(bareme, 0, models.ProcedureAppelOffresOuvert)
	assert.True(t, ok)
}
