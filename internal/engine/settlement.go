package engine

import (
	"time"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
)

// ReglementInput is the payload for recording a payment against an order.
type ReglementInput struct {
	OrdonnancementID uint
	Montant          float64
	ModePaiement     string
}

// RecordReglement registers a possibly partial payment against a validated
// payment order. The order is frozen on the first settlement of any size;
// when cumulative settlement reaches the order amount the owning dossier
// closes (statut solde).
func (e *Engine) RecordReglement(actorID uint, in ReglementInput) (*models.Reglement, error) {
	if !e.authz.CanPerform(actorID, "enregistrer", models.TypeReglement) {
		return nil, errNotAuthorized("enregistrer", models.TypeReglement)
	}
	if in.Montant <= 0 {
		return nil, errMissingField("montant")
	}

	var reg *models.Reglement
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var ord models.Ordonnancement
		if err := tx.First(&ord, in.OrdonnancementID).Error; err != nil {
			return errNotFound("ordonnancement", in.OrdonnancementID)
		}
		if ord.Statut != models.StatutValide {
			return errInvalidTransition("reglement impossible: ordonnancement non valide")
		}

		var dossier models.Dossier
		if err := tx.First(&dossier, ord.DossierID).Error; err != nil {
			return errNotFound("dossier", ord.DossierID)
		}
		if dossier.Statut == models.DossierBloque {
			return errInvalidTransition("dossier bloque: " + dossier.MotifBlocage)
		}

		disponible, err := availableToSettle(tx, ord.ID, 0)
		if err != nil {
			return err
		}
		if in.Montant > disponible {
			return errOverSettlement(in.Montant, disponible)
		}

		reference, err := AllocateReference(tx, models.TypeReglement, time.Now())
		if err != nil {
			return err
		}
		now := time.Now()
		reg = &models.Reglement{
			Circulation: models.Circulation{
				Reference: reference,
				Exercice:  ord.Exercice,
				Montant:   in.Montant,
				Objet:     ord.Objet,
				Statut:    models.StatutEnregistre,
			},
			OrdonnancementID: ord.ID,
			DossierID:        ord.DossierID,
			ModePaiement:     in.ModePaiement,
			DatePaiement:     &now,
		}
		if err := tx.Create(reg).Error; err != nil {
			return err
		}

		// Once money moves the order is frozen against further edits.
		nouveauPaye := ord.Montant - disponible + in.Montant
		if err := casUpdate(tx, &ord, ord.Version, map[string]any{
			"montant_paye": nouveauPaye,
			"verrouille":   true,
		}); err != nil {
			return err
		}

		if err := recomputeChain(tx, reg); err != nil {
			return err
		}

		if sameAmount(nouveauPaye, ord.Montant) {
			if err := closeDossier(tx, ord.DossierID, now); err != nil {
				return err
			}
		}

		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeReglement,
			EntiteID:   reg.ID,
			Action:     "enregistrer",
			AuteurID:   actorID,
			Apres:      map[string]any{"reference": reference, "montant": in.Montant, "montant_paye": nouveauPaye},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// CancelReglement withdraws a settlement that still stands (statut
// enregistre): the paid accumulator is decremented, the order is unlocked if
// the total falls back to zero, and a dossier closure that depended on this
// settlement is reversed.
func (e *Engine) CancelReglement(actorID uint, reglementID uint, motif string) (*models.Reglement, error) {
	if !e.authz.CanPerform(actorID, "annuler", models.TypeReglement) {
		return nil, errNotAuthorized("annuler", models.TypeReglement)
	}
	if motif == "" {
		return nil, errMissingField("motif")
	}

	var reg *models.Reglement
	err := e.db.Transaction(func(tx *gorm.DB) error {
		reg = &models.Reglement{}
		if err := tx.First(reg, reglementID).Error; err != nil {
			return errNotFound(models.TypeReglement, reglementID)
		}
		if reg.Statut != models.StatutEnregistre {
			return errInvalidTransition("annulation impossible depuis le statut " + reg.Statut)
		}

		if err := casUpdate(tx, reg, reg.Version, map[string]any{
			"statut":      models.StatutAnnule,
			"motif_rejet": motif,
		}); err != nil {
			return err
		}
		reg.Statut = models.StatutAnnule

		var ord models.Ordonnancement
		if err := tx.First(&ord, reg.OrdonnancementID).Error; err != nil {
			return errNotFound("ordonnancement", reg.OrdonnancementID)
		}
		restant, err := availableToSettle(tx, ord.ID, 0)
		if err != nil {
			return err
		}
		totalPaye := ord.Montant - restant
		if err := casUpdate(tx, &ord, ord.Version, map[string]any{
			"montant_paye": totalPaye,
			"verrouille":   totalPaye > 0,
		}); err != nil {
			return err
		}

		if err := recomputeChain(tx, reg); err != nil {
			return err
		}
		if err := reopenDossierIfNeeded(tx, ord.DossierID, totalPaye, ord.Montant); err != nil {
			return err
		}

		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeReglement,
			EntiteID:   reg.ID,
			Action:     "annuler",
			AuteurID:   actorID,
			Avant:      map[string]any{"statut": models.StatutEnregistre},
			Apres:      map[string]any{"statut": models.StatutAnnule},
			Metadata:   map[string]any{"motif": motif},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// RejectReglement routes a settlement rejection back to an upstream stage.
// The heavy lifting (aggregate unwind, ancestor unlock, dossier correction)
// is the router's; everything commits or nothing does.
func (e *Engine) RejectReglement(actorID uint, reglementID uint, motif, cible string) (*models.Reglement, error) {
	if !e.authz.CanPerform(actorID, "rejeter", models.TypeReglement) {
		return nil, errNotAuthorized("rejeter", models.TypeReglement)
	}
	if motif == "" {
		return nil, errMissingField("motif")
	}
	if cible == "" {
		return nil, errMissingField("cible_renvoi")
	}

	var reg *models.Reglement
	err := e.db.Transaction(func(tx *gorm.DB) error {
		reg = &models.Reglement{}
		if err := tx.First(reg, reglementID).Error; err != nil {
			return errNotFound(models.TypeReglement, reglementID)
		}
		if reg.Statut != models.StatutEnregistre {
			return errInvalidTransition("rejet impossible depuis le statut " + reg.Statut)
		}

		if err := casUpdate(tx, reg, reg.Version, map[string]any{
			"statut":       models.StatutRejete,
			"motif_rejet":  motif,
			"cible_renvoi": cible,
		}); err != nil {
			return err
		}
		reg.Statut = models.StatutRejete

		var ord models.Ordonnancement
		if err := tx.First(&ord, reg.OrdonnancementID).Error; err != nil {
			return errNotFound("ordonnancement", reg.OrdonnancementID)
		}
		restant, err := availableToSettle(tx, ord.ID, 0)
		if err != nil {
			return err
		}
		totalPaye := ord.Montant - restant
		if err := casUpdate(tx, &ord, ord.Version, map[string]any{
			"montant_paye": totalPaye,
		}); err != nil {
			return err
		}
		if err := reopenDossierIfNeeded(tx, ord.DossierID, totalPaye, ord.Montant); err != nil {
			return err
		}

		if err := routeRejection(tx, reg, cible); err != nil {
			return err
		}

		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeReglement,
			EntiteID:   reg.ID,
			Action:     "rejeter",
			AuteurID:   actorID,
			Avant:      map[string]any{"statut": models.StatutEnregistre},
			Apres:      map[string]any{"statut": models.StatutRejete},
			Metadata:   map[string]any{"motif": motif, "cible_renvoi": cible},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// closeDossier marks the dossier fully paid: terminal, read-only.
func closeDossier(tx *gorm.DB, dossierID uint, at time.Time) error {
	return tx.Model(&models.Dossier{}).Where("id = ?", dossierID).Updates(map[string]any{
		"statut":     models.DossierSolde,
		"date_solde": at,
		"version":    gorm.Expr("version + 1"),
	}).Error
}

// reopenDossierIfNeeded reverses a closure that depended on a settlement
// which has just been cancelled or rejected.
func reopenDossierIfNeeded(tx *gorm.DB, dossierID uint, totalPaye, montantOrdre float64) error {
	if sameAmount(totalPaye, montantOrdre) {
		return nil
	}
	var dossier models.Dossier
	if err := tx.First(&dossier, dossierID).Error; err != nil {
		return errNotFound("dossier", dossierID)
	}
	if dossier.Statut != models.DossierSolde {
		return nil
	}
	return tx.Model(&dossier).Updates(map[string]any{
		"statut":     models.DossierEnCours,
		"date_solde": nil,
		"version":    gorm.Expr("version + 1"),
	}).Error
}
