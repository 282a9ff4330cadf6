package engine

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testActor uint = 1

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Role{}, &models.Permission{},
		&models.LigneBudgetaire{}, &models.AjustementDotation{},
		&models.Dossier{},
		&models.Engagement{}, &models.Liquidation{},
		&models.Ordonnancement{}, &models.Reglement{},
		&models.Marche{}, &models.Soumissionnaire{},
		&models.JournalAudit{}, &models.CompteurReference{},
	))
	return New(db, AllowAll{}, GormAuditSink{})
}

func newLigne(t *testing.T, e *Engine, dotation float64) *models.LigneBudgetaire {
	t.Helper()
	ligne := &models.LigneBudgetaire{
		Code:             "6211-" + t.Name(),
		Libelle:          "Fournitures de bureau",
		Exercice:         2026,
		DotationInitiale: dotation,
		DotationModifiee: dotation,
	}
	require.NoError(t, e.db.Create(ligne).Error)
	return ligne
}

func transition(t *testing.T, e *Engine, typeDoc string, id uint, action Action) models.DocumentChaine {
	t.Helper()
	doc, err := e.Transition(TransitionInput{TypeDoc: typeDoc, ID: id, Action: action, ActorID: testActor})
	require.NoError(t, err)
	return doc
}

// validEngagement creates an engagement and walks it to valide, which also
// creates the owning dossier.
func validEngagement(t *testing.T, e *Engine, ligne *models.LigneBudgetaire, montant float64) *models.Engagement {
	t.Helper()
	eng, err := e.CreateEngagement(testActor, EngagementInput{
		LigneID:      ligne.ID,
		Exercice:     ligne.Exercice,
		Montant:      montant,
		Objet:        "Achat de fournitures",
		Beneficiaire: "ETS Kouadio & Fils",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeEngagement, eng.ID, ActionSoumettre)
	transition(t, e, models.TypeEngagement, eng.ID, ActionVerifier)
	transition(t, e, models.TypeEngagement, eng.ID, ActionValider)
	require.NoError(t, e.db.First(eng, eng.ID).Error)
	return eng
}

func validLiquidation(t *testing.T, e *Engine, eng *models.Engagement, montant float64) *models.Liquidation {
	t.Helper()
	liq, err := e.CreateLiquidation(testActor, LiquidationInput{
		EngagementID: eng.ID,
		Montant:      montant,
		Objet:        "Service fait",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeLiquidation, liq.ID, ActionSoumettre)
	transition(t, e, models.TypeLiquidation, liq.ID, ActionVerifier)
	transition(t, e, models.TypeLiquidation, liq.ID, ActionValider)
	require.NoError(t, e.db.First(liq, liq.ID).Error)
	return liq
}

func validOrdonnancement(t *testing.T, e *Engine, liq *models.Liquidation, montant float64) *models.Ordonnancement {
	t.Helper()
	ord, err := e.CreateOrdonnancement(testActor, OrdonnancementInput{
		LiquidationID: liq.ID,
		Montant:       montant,
		Objet:         "Mandat de paiement",
	})
	require.NoError(t, err)
	transition(t, e, models.TypeOrdonnancement, ord.ID, ActionSoumettre)
	transition(t, e, models.TypeOrdonnancement, ord.ID, ActionViser)
	transition(t, e, models.TypeOrdonnancement, ord.ID, ActionValider)
	require.NoError(t, e.db.First(ord, ord.ID).Error)
	return ord
}

func reloadLigne(t *testing.T, e *Engine, id uint) *models.LigneBudgetaire {
	t.Helper()
	var ligne models.LigneBudgetaire
	require.NoError(t, e.db.First(&ligne, id).Error)
	return &ligne
}

func reloadDossier(t *testing.T, e *Engine, id uint) *models.Dossier {
	t.Helper()
	var dossier models.Dossier
	require.NoError(t, e.db.First(&dossier, id).Error)
	return &dossier
}
