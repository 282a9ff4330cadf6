package engine

import (
	"fmt"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
)

// routeRejection performs the backward routing of a rejected document: the
// rejected row is already marked, this unwinds the aggregates, unlocks the
// ancestor named by cible and moves the dossier into correction. Runs inside
// the caller's transaction so the whole rejection is all-or-nothing.
func routeRejection(tx *gorm.DB, doc models.DocumentChaine, cible string) error {
	if !cibleValide(doc.TypeDoc(), cible) {
		return errInvalidTransition(fmt.Sprintf("cible de renvoi %q invalide pour %s", cible, doc.TypeDoc()))
	}

	// Aggregates first: the rejected document no longer counts.
	if err := recomputeChain(tx, doc); err != nil {
		return err
	}

	dossier, err := dossierOf(tx, doc)
	if err != nil {
		return err
	}
	if dossier == nil {
		// Pre-dossier rejection (an engagement refused before validation):
		// nothing upstream to reopen.
		return nil
	}

	ch, err := resolveChain(tx, doc)
	if err != nil {
		return err
	}

	switch cible {
	case models.CibleEngagement, models.CibleCreationDossier:
		if ch.Engagement != nil {
			if err := lockDocument(tx, &models.Engagement{}, ch.Engagement.ID, false); err != nil {
				return err
			}
		}
	case models.CibleLiquidation:
		if ch.Liquidation == nil {
			return errInvalidTransition("aucune liquidation a rouvrir")
		}
		if err := lockDocument(tx, &models.Liquidation{}, ch.Liquidation.ID, false); err != nil {
			return err
		}
	case models.CibleOrdonnancement:
		if ch.Ordonnancement == nil {
			return errInvalidTransition("aucun ordonnancement a rouvrir")
		}
		if err := lockDocument(tx, &models.Ordonnancement{}, ch.Ordonnancement.ID, false); err != nil {
			return err
		}
	}

	return tx.Model(&models.Dossier{}).Where("id = ?", dossier.ID).Updates(map[string]any{
		"statut":         models.DossierEnCorrection,
		"etape_courante": cible,
		"version":        gorm.Expr("version + 1"),
	}).Error
}

func cibleValide(typeDoc, cible string) bool {
	for _, c := range models.CiblesRenvoiParType[typeDoc] {
		if c == cible {
			return true
		}
	}
	return false
}
