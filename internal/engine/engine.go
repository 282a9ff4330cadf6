// Package engine implements the budget execution core: the ledger store,
// amount reconciliation, the stage state machine, the rejection/deferral
// router, the settlement tracker and the procurement threshold validator.
// Every state-changing operation is read-modify-write atomic inside one
// database transaction, and every status write is an optimistic
// compare-and-swap on the document version.
package engine

import (
	"math"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
)

// Engine wires the core to its collaborators. It holds no mutable state of
// its own; all state lives in the store.
type Engine struct {
	db    *gorm.DB
	authz CapabilityChecker
	audit AuditSink
}

func New(db *gorm.DB, authz CapabilityChecker, audit AuditSink) *Engine {
	return &Engine{db: db, authz: authz, audit: audit}
}

// fetchDocument loads a chain document of the given type inside tx.
func fetchDocument(tx *gorm.DB, typeDoc string, id uint) (models.DocumentChaine, error) {
	var doc models.DocumentChaine
	switch typeDoc {
	case models.TypeEngagement:
		doc = &models.Engagement{}
	case models.TypeLiquidation:
		doc = &models.Liquidation{}
	case models.TypeOrdonnancement:
		doc = &models.Ordonnancement{}
	case models.TypeReglement:
		doc = &models.Reglement{}
	case models.TypeMarche:
		doc = &models.Marche{}
	default:
		return nil, errInvalidTransition("type de document inconnu: " + typeDoc)
	}
	if err := tx.First(doc, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errNotFound(typeDoc, id)
		}
		return nil, err
	}
	return doc, nil
}

// casUpdate writes fields on doc only if the stored version still matches
// expected, bumping the version in the same statement. Zero rows affected
// means a concurrent writer won the race: the caller gets VersionConflict and
// must re-read before deciding to retry. A concurrent decision is never
// silently overwritten.
func casUpdate(tx *gorm.DB, doc models.DocumentChaine, expected int, fields map[string]any) error {
	fields["version"] = expected + 1
	res := tx.Model(doc).Where("version = ?", expected).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict(doc.TypeDoc(), doc.DocID())
	}
	doc.Flux().Version = expected + 1
	return nil
}

// bumpVersion stamps the version of the row an envelope check just read.
// Two transactions that both read version N cannot both land the stamp: the
// loser sees zero rows affected and gets VersionConflict, so an availability
// read is never acted on after a concurrent consumer invalidated it.
func bumpVersion(tx *gorm.DB, model any, entite string, id uint, expected int) error {
	res := tx.Model(model).Where("id = ? AND version = ?", id, expected).Update("version", expected+1)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict(entite, id)
	}
	return nil
}

// sameAmount compares two numeric(14,2) amounts at centime precision.
func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

// dossierOf resolves the owning dossier of a document, or nil when the
// document is not yet attached to one (an engagement before validation).
func dossierOf(tx *gorm.DB, doc models.DocumentChaine) (*models.Dossier, error) {
	var dossierID uint
	switch d := doc.(type) {
	case *models.Engagement:
		if d.DossierID == nil {
			return nil, nil
		}
		dossierID = *d.DossierID
	case *models.Liquidation:
		dossierID = d.DossierID
	case *models.Ordonnancement:
		dossierID = d.DossierID
	case *models.Reglement:
		dossierID = d.DossierID
	case *models.Marche:
		dossierID = d.DossierID
	}
	if dossierID == 0 {
		return nil, nil
	}
	var dossier models.Dossier
	if err := tx.First(&dossier, dossierID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errNotFound("dossier", dossierID)
		}
		return nil, err
	}
	return &dossier, nil
}
