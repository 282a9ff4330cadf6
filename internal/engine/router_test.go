package engine

import (
	"testing"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectSettlementRoutesBackToEngagement(t *testing.T) {
	e := newTestEngine(t)
	ord := settlementChain(t, e, 1_000_000)

	reg, err := e.RecordReglement(testActor, ReglementInput{
		OrdonnancementID: ord.ID, Montant: 400_000, ModePaiement: "virement",
	})
	require.NoError(t, err)

	_, err = e.RejectReglement(testActor, reg.ID, "mauvais beneficiaire", "")
	assert.True(t, IsKind(err, KindMissingField), "return target is mandatory, got %v", err)

	rejected, err := e.RejectReglement(testActor, reg.ID, "mauvais beneficiaire", models.CibleEngagement)
	require.NoError(t, err)
	assert.Equal(t, models.StatutRejete, rejected.Statut)
	assert.Equal(t, "mauvais beneficiaire", rejected.MotifRejet)

	// The rejected settlement no longer counts against the order.
	var after models.Ordonnancement
	require.NoError(t, e.db.First(&after, ord.ID).Error)
	assert.InDelta(t, 0, after.MontantPaye, 0.01)

	var eng models.Engagement
	require.NoError(t, e.db.Where("dossier_id = ?", reg.DossierID).First(&eng).Error)
	assert.False(t, eng.Verrouille, "routing to engagement unlocks it for correction")

	dossier := reloadDossier(t, e, reg.DossierID)
	assert.Equal(t, models.DossierEnCorrection, dossier.Statut)
	assert.Equal(t, models.CibleEngagement, dossier.EtapeCourante)
}

func TestRejectSettlementRoutesBackToOrdonnancement(t *testing.T) {
	e := newTestEngine(t)
	ord := settlementChain(t, e, 1_000_000)

	reg, err := e.RecordReglement(testActor, ReglementInput{
		OrdonnancementID: ord.ID, Montant: 1_000_000, ModePaiement: "virement",
	})
	require.NoError(t, err)
	require.Equal(t, models.DossierSolde, reloadDossier(t, e, reg.DossierID).Statut)

	_, err = e.RejectReglement(testActor, reg.ID, "imputation erronee", models.CibleOrdonnancement)
	require.NoError(t, err)

	var after models.Ordonnancement
	require.NoError(t, e.db.First(&after, ord.ID).Error)
	assert.InDelta(t, 0, after.MontantPaye, 0.01)
	assert.False(t, after.Verrouille, "the order reopens for correction")

	dossier := reloadDossier(t, e, reg.DossierID)
	assert.Equal(t, models.DossierEnCorrection, dossier.Statut, "closure is reversed by the rejection")
	assert.Equal(t, models.CibleOrdonnancement, dossier.EtapeCourante)
}

func TestRejectSettlementRefusesForeignTarget(t *testing.T) {
	e := newTestEngine(t)
	ord := settlementChain(t, e, 1_000_000)

	reg, err := e.RecordReglement(testActor, ReglementInput{
		OrdonnancementID: ord.ID, Montant: 400_000, ModePaiement: "virement",
	})
	require.NoError(t, err)

	_, err = e.RejectReglement(testActor, reg.ID, "motif", "tresorerie")
	assert.True(t, IsKind(err, KindInvalidTransition), "unknown target must be refused, got %v", err)
}

func TestRejectOrdonnancementRoutesBackToLiquidation(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 10_000_000)
	eng := validEngagement(t, e, ligne, 4_000_000)
	liq := validLiquidation(t, e, eng, 3_000_000)

	ord, err := e.CreateOrdonnancement(testActor, OrdonnancementInput{
		LiquidationID: liq.ID, Montant: 3_000_000, Objet: "Mandat",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeOrdonnancement, ord.ID, ActionSoumettre)

	_, err = e.Transition(TransitionInput{
		TypeDoc:     models.TypeOrdonnancement,
		ID:          ord.ID,
		Action:      ActionRejeter,
		ActorID:     testActor,
		Motif:       "piece manquante",
		CibleRenvoi: models.CibleLiquidation,
	})
	require.NoError(t, err)

	var liqAfter models.Liquidation
	require.NoError(t, e.db.First(&liqAfter, liq.ID).Error)
	assert.False(t, liqAfter.Verrouille, "the parent liquidation reopens")

	dossier := reloadDossier(t, e, liq.DossierID)
	assert.Equal(t, models.DossierEnCorrection, dossier.Statut)
	assert.Equal(t, models.CibleLiquidation, dossier.EtapeCourante)

	ligne = reloadLigne(t, e, ligne.ID)
	assert.InDelta(t, 0, ligne.TotalOrdonnance, 0.01, "the rejected order no longer counts")
	assert.InDelta(t, 3_000_000, ligne.TotalLiquide, 0.01, "the liquidation still stands")
}
