package engine

import (
	"math/rand"
	"testing"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitRefusedBeyondAvailable(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 10_000_000)
	validEngagement(t, e, ligne, 7_000_000)

	_, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 4_000_000, Objet: "Depassement",
	})
	require.True(t, IsKind(err, KindInsufficientBudget), "got %v", err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.InDelta(t, 3_000_000, ee.Disponible, 0.01)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 50_000_000)
	eng := validEngagement(t, e, ligne, 20_000_000)
	liq := validLiquidation(t, e, eng, 12_000_000)
	validOrdonnancement(t, e, liq, 12_000_000)

	first, err := e.RecomputeLineAggregates(ligne.ID)
	require.NoError(t, err)
	second, err := e.RecomputeLineAggregates(ligne.ID)
	require.NoError(t, err)

	assert.Equal(t, first.TotalEngage, second.TotalEngage)
	assert.Equal(t, first.TotalLiquide, second.TotalLiquide)
	assert.Equal(t, first.TotalOrdonnance, second.TotalOrdonnance)
	assert.Equal(t, first.TotalPaye, second.TotalPaye)

	assert.InDelta(t, 20_000_000, first.TotalEngage, 0.01)
	assert.InDelta(t, 12_000_000, first.TotalLiquide, 0.01)
	assert.InDelta(t, 12_000_000, first.TotalOrdonnance, 0.01)
}

func TestDegagementReducesConsumptionExactly(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 30_000_000)
	eng := validEngagement(t, e, ligne, 20_000_000)
	validLiquidation(t, e, eng, 5_000_000)

	_, err := e.Degager(testActor, eng.ID, 16_000_000, "reliquat non utilise")
	require.True(t, IsKind(err, KindInsufficientBudget),
		"de-commitment below the liquidated amount must be refused, got %v", err)

	eng2, err := e.Degager(testActor, eng.ID, 10_000_000, "reliquat non utilise")
	require.NoError(t, err)
	assert.InDelta(t, 10_000_000, eng2.MontantEffectif(), 0.01)

	// The returned document mirrors the stored row exactly.
	var stored models.Engagement
	require.NoError(t, e.db.First(&stored, eng.ID).Error)
	assert.InDelta(t, 10_000_000, stored.MontantDegage, 0.01)
	assert.InDelta(t, stored.MontantDegage, eng2.MontantDegage, 0.005)

	ligne = reloadLigne(t, e, ligne.ID)
	assert.InDelta(t, 10_000_000, ligne.TotalEngage, 0.01)
	assert.InDelta(t, 20_000_000, ligne.Disponible(), 0.01)
}

// Sibling liquidations reserve the engagement from submission on: drafts may
// coexist beyond the envelope, but the submission that would overrun it is
// refused with the exact remainder.
func TestSiblingLiquidationsCannotExceedEngagement(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 10_000_000)
	eng := validEngagement(t, e, ligne, 1_000_000)

	liq1, err := e.CreateLiquidation(testActor, LiquidationInput{
		EngagementID: eng.ID, Montant: 800_000, Objet: "Premiere tranche",
	})
	require.NoError(t, err)
	liq2, err := e.CreateLiquidation(testActor, LiquidationInput{
		EngagementID: eng.ID, Montant: 800_000, Objet: "Seconde tranche",
	})
	require.NoError(t, err, "drafts reserve nothing, both may exist")

	transition(t, e, models.TypeLiquidation, liq1.ID, ActionSoumettre)
	transition(t, e, models.TypeLiquidation, liq1.ID, ActionVerifier)
	transition(t, e, models.TypeLiquidation, liq1.ID, ActionValider)

	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeLiquidation, ID: liq2.ID, Action: ActionSoumettre, ActorID: testActor,
	})
	require.True(t, IsKind(err, KindInsufficientBudget), "got %v", err)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.InDelta(t, 200_000, ee.Disponible, 0.01)

	ligne = reloadLigne(t, e, ligne.ID)
	assert.LessOrEqual(t, ligne.TotalLiquide, 1_000_000+0.01,
		"liquidations never jointly exceed the engagement")
}

func TestSiblingOrdonnancementsCannotExceedLiquidation(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 10_000_000)
	eng := validEngagement(t, e, ligne, 5_000_000)
	liq := validLiquidation(t, e, eng, 2_000_000)

	ord1, err := e.CreateOrdonnancement(testActor, OrdonnancementInput{
		LiquidationID: liq.ID, Montant: 1_500_000, Objet: "Mandat 1",
	})
	require.NoError(t, err)
	ord2, err := e.CreateOrdonnancement(testActor, OrdonnancementInput{
		LiquidationID: liq.ID, Montant: 1_500_000, Objet: "Mandat 2",
	})
	require.NoError(t, err)

	transition(t, e, models.TypeOrdonnancement, ord1.ID, ActionSoumettre)
	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeOrdonnancement, ID: ord2.ID, Action: ActionSoumettre, ActorID: testActor,
	})
	require.True(t, IsKind(err, KindInsufficientBudget), "got %v", err)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.InDelta(t, 500_000, ee.Disponible, 0.01)
}

// Two envelope checks that read the same parent version cannot both stamp it:
// the second write affects zero rows and surfaces as a version conflict, so
// a stale availability read is never acted on.
func TestEnvelopeStampRefusesStaleVersion(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 1_000_000)

	require.NoError(t, bumpVersion(e.db, &models.LigneBudgetaire{}, "ligne_budgetaire", ligne.ID, ligne.Version))
	err := bumpVersion(e.db, &models.LigneBudgetaire{}, "ligne_budgetaire", ligne.ID, ligne.Version)
	require.True(t, IsKind(err, KindVersionConflict), "got %v", err)
}

func TestVerificationStampsLineVersion(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 10_000_000)
	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 4_000_000, Objet: "Achat de fournitures",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)

	avant := reloadLigne(t, e, ligne.ID).Version
	transition(t, e, models.TypeEngagement, eng.ID, ActionVerifier)
	assert.Greater(t, reloadLigne(t, e, ligne.ID).Version, avant,
		"the consuming verification stamps the line row")
}

func TestAdjustDotation(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 10_000_000)
	validEngagement(t, e, ligne, 8_000_000)

	_, err := e.AdjustDotation(testActor, ligne.ID, 12_000_000, "")
	assert.True(t, IsKind(err, KindMissingField), "justification is mandatory, got %v", err)

	// Shrinking below the committed amount would break conservation.
	_, err = e.AdjustDotation(testActor, ligne.ID, 5_000_000, "restriction budgetaire")
	assert.True(t, IsKind(err, KindInsufficientBudget), "got %v", err)

	ligne2, err := e.AdjustDotation(testActor, ligne.ID, 15_000_000, "collectif budgetaire")
	require.NoError(t, err)
	assert.InDelta(t, 15_000_000, ligne2.DotationModifiee, 0.01)
	assert.InDelta(t, 10_000_000, ligne2.DotationInitiale, 0.01, "initial allotment never moves")

	var trace models.AjustementDotation
	require.NoError(t, e.db.Where("ligne_id = ?", ligne.ID).First(&trace).Error)
	assert.Equal(t, "collectif budgetaire", trace.Justification)
}

// Conservation property: whatever mix of commits, rejections and
// de-commitments runs, TotalEngage never exceeds DotationModifiee.
func TestConservationUnderRandomOperations(t *testing.T) {
	e := newTestEngine(t)
	dotation := 100_000_000.0
	ligne := newLigne(t, e, dotation)
	rng := rand.New(rand.NewSource(7))

	var vivants []uint
	for i := 0; i < 40; i++ {
		switch rng.Intn(3) {
		case 0: // attempt a commit of random size, possibly refused
			montant := float64(rng.Intn(30)+1) * 1_000_000
			eng, err := e.CreateEngagement(testActor, EngagementInput{
				LigneID: ligne.ID, Exercice: 2026, Montant: montant, Objet: "Op aleatoire",
			})
			if err != nil {
				require.True(t, IsKind(err, KindInsufficientBudget), "got %v", err)
				continue
			}
			transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)
			if _, err := e.Transition(TransitionInput{
				TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionVerifier, ActorID: testActor,
			}); err != nil {
				require.True(t, IsKind(err, KindInsufficientBudget), "got %v", err)
				continue
			}
			transition(t, e, models.TypeEngagement, eng.ID, ActionValider)
			vivants = append(vivants, eng.ID)

		case 1: // reject one of the live commitments
			if len(vivants) == 0 {
				continue
			}
			idx := rng.Intn(len(vivants))
			// Validated engagements are terminal; rejection only applies
			// before validation, so emulate corrective routing instead:
			// de-commit the full remainder.
			var eng models.Engagement
			require.NoError(t, e.db.First(&eng, vivants[idx]).Error)
			var liquide float64
			e.db.Model(&models.Liquidation{}).
				Where("engagement_id = ? AND statut IN ?", eng.ID, statutsConsommants).
				Select("COALESCE(SUM(montant), 0)").Scan(&liquide)
			marge := eng.MontantEffectif() - liquide
			if marge <= 0 {
				continue
			}
			_, err := e.Degager(testActor, eng.ID, marge, "liberation totale")
			require.NoError(t, err)
			vivants = append(vivants[:idx], vivants[idx+1:]...)

		case 2: // partial de-commitment
			if len(vivants) == 0 {
				continue
			}
			var eng models.Engagement
			require.NoError(t, e.db.First(&eng, vivants[rng.Intn(len(vivants))]).Error)
			if eng.MontantEffectif() < 2_000_000 {
				continue
			}
			_, err := e.Degager(testActor, eng.ID, 1_000_000, "degagement partiel")
			require.NoError(t, err)
		}

		ligne := reloadLigne(t, e, ligne.ID)
		require.LessOrEqual(t, ligne.TotalEngage, ligne.DotationModifiee+0.01,
			"conservation violated at step %d", i)
		require.GreaterOrEqual(t, ligne.Disponible(), -0.01)
	}
}
