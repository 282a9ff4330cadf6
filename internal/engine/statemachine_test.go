package engine

import (
	"testing"
	"time"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngagementFullCircuitCreatesDossier(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID:  ligne.ID,
		Exercice: 2026,
		Montant:  8_000_000,
		Objet:    "Travaux de refection",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatutBrouillon, eng.Statut)
	assert.Contains(t, eng.Reference, "ENG-")

	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)
	transition(t, e, models.TypeEngagement, eng.ID, ActionVerifier)

	// Verification is the point where the line starts carrying the amount.
	ligne = reloadLigne(t, e, ligne.ID)
	assert.InDelta(t, 8_000_000, ligne.TotalEngage, 0.01)

	transition(t, e, models.TypeEngagement, eng.ID, ActionValider)

	require.NoError(t, e.db.First(eng, eng.ID).Error)
	assert.Equal(t, models.StatutValide, eng.Statut)
	require.NotNil(t, eng.DossierID)

	dossier := reloadDossier(t, e, *eng.DossierID)
	assert.Equal(t, models.DossierEnCours, dossier.Statut)
	assert.Equal(t, models.TypeLiquidation, dossier.EtapeCourante)
	assert.InDelta(t, 8_000_000, dossier.MontantEngage, 0.01)
}

func TestTransitionRefusedFromWrongState(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 1_000_000, Objet: "Objet",
	})
	require.NoError(t, err)

	// Cannot validate a draft: it was never submitted nor verified.
	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionValider, ActorID: testActor,
	})
	assert.True(t, IsKind(err, KindInvalidTransition), "got %v", err)
}

func TestRejectRequiresMotif(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 1_000_000, Objet: "Objet",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)

	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionRejeter, ActorID: testActor,
	})
	assert.True(t, IsKind(err, KindMissingField), "got %v", err)
}

func TestRejectionReleasesLineConsumption(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 5_000_000, Objet: "Objet",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)
	transition(t, e, models.TypeEngagement, eng.ID, ActionVerifier)
	assert.InDelta(t, 5_000_000, reloadLigne(t, e, ligne.ID).TotalEngage, 0.01)

	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionRejeter,
		ActorID: testActor, Motif: "piece justificative absente",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0, reloadLigne(t, e, ligne.ID).TotalEngage, 0.01)
}

func TestSubmitRefusesIncompleteDocument(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	// Bypass CreateEngagement's own validation to build a hollow draft.
	eng := &models.Engagement{
		Circulation: models.Circulation{Reference: "ENG-0826-9999", Exercice: 2026, Montant: 100, Statut: models.StatutBrouillon},
		LigneID:     ligne.ID,
	}
	require.NoError(t, e.db.Create(eng).Error)

	_, err := e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionSoumettre, ActorID: testActor,
	})
	assert.True(t, IsKind(err, KindMissingField), "got %v", err)
}

func TestExpectedVersionConflict(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 1_000_000, Objet: "Objet",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)

	// A caller that read the document before submission now races on stale
	// state: the write must fail, not overwrite the concurrent decision.
	stale := 0
	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionVerifier,
		ActorID: testActor, ExpectedVersion: &stale,
	})
	assert.True(t, IsKind(err, KindVersionConflict), "got %v", err)
}

func TestDeferAndResume(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 1_000_000, Objet: "Objet",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)

	hier := time.Now().Add(-24 * time.Hour)
	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionDifferer,
		ActorID: testActor, Motif: "attente de credits", DateReprise: &hier,
		ConditionReprise: "montant <= 2000000",
	})
	require.NoError(t, err)

	doc := transition(t, e, models.TypeEngagement, eng.ID, ActionReprendre)
	assert.Equal(t, models.StatutSoumis, doc.Flux().Statut)
	assert.Empty(t, doc.Flux().ConditionReprise)
}

func TestResumeBlockedByCondition(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 5_000_000, Objet: "Objet",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)

	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionDifferer,
		ActorID: testActor, Motif: "montant a revoir",
		ConditionReprise: "montant < 1000000",
	})
	require.NoError(t, err)

	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionReprendre, ActorID: testActor,
	})
	assert.True(t, IsKind(err, KindInvalidTransition), "got %v", err)
}

func TestResumeBlockedBeforeDate(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)

	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 1_000_000, Objet: "Objet",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)

	demain := time.Now().Add(24 * time.Hour)
	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionDifferer,
		ActorID: testActor, Motif: "attente de visa", DateReprise: &demain,
	})
	require.NoError(t, err)

	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeEngagement, ID: eng.ID, Action: ActionReprendre, ActorID: testActor,
	})
	assert.True(t, IsKind(err, KindInvalidTransition), "got %v", err)
}

func TestBlockedDossierFreezesTransitions(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 20_000_000)
	eng := validEngagement(t, e, ligne, 5_000_000)

	liq, err := e.CreateLiquidation(testActor, LiquidationInput{
		EngagementID: eng.ID, Montant: 5_000_000, Objet: "Service fait",
	})
	require.NoError(t, err)

	require.NoError(t, e.BlockDossier(testActor, *eng.DossierID, "controle en cours"))

	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeLiquidation, ID: liq.ID, Action: ActionSoumettre, ActorID: testActor,
	})
	assert.True(t, IsKind(err, KindInvalidTransition), "got %v", err)

	require.NoError(t, e.UnblockDossier(testActor, *eng.DossierID))
	transition(t, e, models.TypeLiquidation, liq.ID, ActionSoumettre)
}

func TestNotAuthorized(t *testing.T) {
	e := newTestEngine(t)
	// Swap in the database-backed checker with no users at all.
	e.authz = &DBCapabilities{DB: e.db}
	ligne := newLigne(t, e, 20_000_000)

	_, err := e.CreateEngagement(42, EngagementInput{
		LigneID: ligne.ID, Exercice: 2026, Montant: 1_000_000, Objet: "Objet",
	})
	assert.True(t, IsKind(err, KindNotAuthorized), "got %v", err)
}

func TestMarchePublicationChecksCoherence(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 300_000_000)
	eng := validEngagement(t, e, ligne, 200_000_000)

	// Creation already refuses an incoherent choice.
	_, err := e.CreateMarche(testActor, MarcheInput{
		DossierID: *eng.DossierID, Montant: 200_000_000, Objet: "Construction",
		Procedure: models.ProcedureGreAGre,
	})
	require.True(t, IsKind(err, KindIncoherentProcedure), "got %v", err)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, models.ProcedureAppelOffresOuvert, ee.ProcedureRecommandee)

	marche, err := e.CreateMarche(testActor, MarcheInput{
		DossierID: *eng.DossierID, Montant: 200_000_000, Objet: "Construction",
		Procedure: models.ProcedureAppelOffresOuvert,
	})
	require.NoError(t, err)

	transition(t, e, models.TypeMarche, marche.ID, ActionPublier)
}

func TestMarcheAwardGuard(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 300_000_000)
	eng := validEngagement(t, e, ligne, 150_000_000)

	marche, err := e.CreateMarche(testActor, MarcheInput{
		DossierID: *eng.DossierID, Montant: 150_000_000, Objet: "Equipements",
		Procedure: models.ProcedureAppelOffresOuvert,
	})
	require.NoError(t, err)
	transition(t, e, models.TypeMarche, marche.ID, ActionPublier)

	a, err := e.AddSoumissionnaire(testActor, marche.ID, "SOTRACI SA", 148_000_000)
	require.NoError(t, err)
	b, err := e.AddSoumissionnaire(testActor, marche.ID, "GECI BTP", 152_000_000)
	require.NoError(t, err)

	transition(t, e, models.TypeMarche, marche.ID, ActionCloturer)
	transition(t, e, models.TypeMarche, marche.ID, ActionEvaluer)

	// One bidder still unscored: award must refuse.
	note := 86.5
	_, err = e.ScoreSoumissionnaire(testActor, marche.ID, ScoreInput{
		SoumissionnaireID: a.ID, NoteFinale: &note, Qualifie: true,
	})
	require.NoError(t, err)
	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeMarche, ID: marche.ID, Action: ActionAttribuer, ActorID: testActor,
	})
	assert.True(t, IsKind(err, KindInvalidTransition), "got %v", err)

	// Score the second bidder but disqualify it; the first wins.
	noteB := 91.0
	_, err = e.ScoreSoumissionnaire(testActor, marche.ID, ScoreInput{
		SoumissionnaireID: b.ID, NoteFinale: &noteB, Qualifie: false,
	})
	require.NoError(t, err)

	doc := transition(t, e, models.TypeMarche, marche.ID, ActionAttribuer)
	m := doc.(*models.Marche)
	require.NotNil(t, m.AttributaireID)
	assert.Equal(t, a.ID, *m.AttributaireID)
}

func TestMarcheSignatureRequiresContractReference(t *testing.T) {
	e := newTestEngine(t)
	ligne := newLigne(t, e, 300_000_000)
	eng := validEngagement(t, e, ligne, 150_000_000)

	marche, err := e.CreateMarche(testActor, MarcheInput{
		DossierID: *eng.DossierID, Montant: 150_000_000, Objet: "Equipements",
		Procedure: models.ProcedureAppelOffresOuvert,
	})
	require.NoError(t, err)
	transition(t, e, models.TypeMarche, marche.ID, ActionPublier)
	a, err := e.AddSoumissionnaire(testActor, marche.ID, "SOTRACI SA", 148_000_000)
	require.NoError(t, err)
	transition(t, e, models.TypeMarche, marche.ID, ActionCloturer)
	transition(t, e, models.TypeMarche, marche.ID, ActionEvaluer)
	note := 80.0
	_, err = e.ScoreSoumissionnaire(testActor, marche.ID, ScoreInput{
		SoumissionnaireID: a.ID, NoteFinale: &note, Qualifie: true,
	})
	require.NoError(t, err)
	transition(t, e, models.TypeMarche, marche.ID, ActionAttribuer)
	transition(t, e, models.TypeMarche, marche.ID, ActionApprouver)

	_, err = e.Transition(TransitionInput{
		TypeDoc: models.TypeMarche, ID: marche.ID, Action: ActionSigner, ActorID: testActor,
	})
	assert.True(t, IsKind(err, KindMissingField), "got %v", err)

	doc, err := e.Transition(TransitionInput{
		TypeDoc: models.TypeMarche, ID: marche.ID, Action: ActionSigner,
		ActorID: testActor, ReferenceContrat: "CTR-2026-0042",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatutSigne, doc.Flux().Statut)
}
