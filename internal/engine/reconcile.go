package engine

import (
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
)

// statutsConsommants are the document statuses that consume their parent's
// envelope. A draft or submitted document reserves nothing yet; a rejected or
// deferred one no longer counts.
var statutsConsommants = []string{
	models.StatutVerifie,
	models.StatutEnAttenteVisa,
	models.StatutValide,
}

// statutsReglementActifs are the settlement statuses counted against the
// payment order.
var statutsReglementActifs = []string{models.StatutEnregistre}

// RecomputeLineAggregates rebuilds the four Total* aggregates of a budget
// line from its active children and returns the fresh line. Idempotent:
// recomputing twice without an intervening mutation yields the same values.
func (e *Engine) RecomputeLineAggregates(ligneID uint) (*models.LigneBudgetaire, error) {
	var ligne *models.LigneBudgetaire
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := recomputeLine(tx, ligneID); err != nil {
			return err
		}
		ligne = &models.LigneBudgetaire{}
		return tx.First(ligne, ligneID).Error
	})
	if err != nil {
		return nil, err
	}
	return ligne, nil
}

func recomputeLine(tx *gorm.DB, ligneID uint) error {
	var ligne models.LigneBudgetaire
	if err := tx.First(&ligne, ligneID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errNotFound("ligne budgetaire", ligneID)
		}
		return err
	}

	var engage, liquide, ordonnance, paye float64

	if err := tx.Model(&models.Engagement{}).
		Where("ligne_id = ? AND statut IN ?", ligneID, statutsConsommants).
		Select("COALESCE(SUM(montant - montant_degage), 0)").
		Scan(&engage).Error; err != nil {
		return err
	}

	if err := tx.Model(&models.Liquidation{}).
		Joins("JOIN engagements ON engagements.id = liquidations.engagement_id").
		Where("engagements.ligne_id = ? AND liquidations.statut IN ?", ligneID, statutsConsommants).
		Select("COALESCE(SUM(liquidations.montant), 0)").
		Scan(&liquide).Error; err != nil {
		return err
	}

	if err := tx.Model(&models.Ordonnancement{}).
		Joins("JOIN liquidations ON liquidations.id = ordonnancements.liquidation_id").
		Joins("JOIN engagements ON engagements.id = liquidations.engagement_id").
		Where("engagements.ligne_id = ? AND ordonnancements.statut IN ?", ligneID, statutsConsommants).
		Select("COALESCE(SUM(ordonnancements.montant), 0)").
		Scan(&ordonnance).Error; err != nil {
		return err
	}

	if err := tx.Model(&models.Reglement{}).
		Joins("JOIN ordonnancements ON ordonnancements.id = reglements.ordonnancement_id").
		Joins("JOIN liquidations ON liquidations.id = ordonnancements.liquidation_id").
		Joins("JOIN engagements ON engagements.id = liquidations.engagement_id").
		Where("engagements.ligne_id = ? AND reglements.statut IN ?", ligneID, statutsReglementActifs).
		Select("COALESCE(SUM(reglements.montant), 0)").
		Scan(&paye).Error; err != nil {
		return err
	}

	return tx.Model(&ligne).Updates(map[string]any{
		"total_engage":     engage,
		"total_liquide":    liquide,
		"total_ordonnance": ordonnance,
		"total_paye":       paye,
		"version":          gorm.Expr("version + 1"),
	}).Error
}

// availableToCommit computes what the line can still absorb, optionally
// ignoring one engagement (used when that engagement itself is being moved
// into a consuming status). The line row is returned so a consuming caller
// can stamp its version.
func availableToCommit(tx *gorm.DB, ligneID uint, excludeEngagementID uint) (*models.LigneBudgetaire, float64, error) {
	var ligne models.LigneBudgetaire
	if err := tx.First(&ligne, ligneID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, 0, errNotFound("ligne budgetaire", ligneID)
		}
		return nil, 0, err
	}

	q := tx.Model(&models.Engagement{}).
		Where("ligne_id = ? AND statut IN ?", ligneID, statutsConsommants)
	if excludeEngagementID != 0 {
		q = q.Where("id <> ?", excludeEngagementID)
	}
	var engage float64
	if err := q.Select("COALESCE(SUM(montant - montant_degage), 0)").Scan(&engage).Error; err != nil {
		return nil, 0, err
	}
	return &ligne, ligne.DotationModifiee - engage, nil
}

// AvailableToCommit is the read-only form used by reports and pre-checks.
// The authoritative check re-runs inside the mutating transaction.
func (e *Engine) AvailableToCommit(ligneID uint) (float64, error) {
	_, disponible, err := availableToCommit(e.db, ligneID, 0)
	return disponible, err
}

// availableToSettle computes the remainder payable on an order, optionally
// excluding one settlement.
func availableToSettle(tx *gorm.DB, ordonnancementID uint, excludeReglementID uint) (float64, error) {
	var ord models.Ordonnancement
	if err := tx.First(&ord, ordonnancementID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, errNotFound("ordonnancement", ordonnancementID)
		}
		return 0, err
	}

	q := tx.Model(&models.Reglement{}).
		Where("ordonnancement_id = ? AND statut IN ?", ordonnancementID, statutsReglementActifs)
	if excludeReglementID != 0 {
		q = q.Where("id <> ?", excludeReglementID)
	}
	var regle float64
	if err := q.Select("COALESCE(SUM(montant), 0)").Scan(&regle).Error; err != nil {
		return 0, err
	}
	return ord.Montant - regle, nil
}

// AvailableToSettle is the read-only form.
func (e *Engine) AvailableToSettle(ordonnancementID uint, excludeReglementID uint) (float64, error) {
	return availableToSettle(e.db, ordonnancementID, excludeReglementID)
}

// availableToLiquidate is the engagement-level envelope: effective commitment
// minus the other active liquidations.
func availableToLiquidate(tx *gorm.DB, engagement *models.Engagement, excludeLiquidationID uint) (float64, error) {
	q := tx.Model(&models.Liquidation{}).
		Where("engagement_id = ? AND statut IN ?", engagement.ID, append([]string{models.StatutSoumis}, statutsConsommants...))
	if excludeLiquidationID != 0 {
		q = q.Where("id <> ?", excludeLiquidationID)
	}
	var liquide float64
	if err := q.Select("COALESCE(SUM(montant), 0)").Scan(&liquide).Error; err != nil {
		return 0, err
	}
	return engagement.MontantEffectif() - liquide, nil
}

// availableToOrder is the liquidation-level envelope.
func availableToOrder(tx *gorm.DB, liquidation *models.Liquidation, excludeOrdonnancementID uint) (float64, error) {
	q := tx.Model(&models.Ordonnancement{}).
		Where("liquidation_id = ? AND statut IN ?", liquidation.ID, append([]string{models.StatutSoumis}, statutsConsommants...))
	if excludeOrdonnancementID != 0 {
		q = q.Where("id <> ?", excludeOrdonnancementID)
	}
	var ordonnance float64
	if err := q.Select("COALESCE(SUM(montant), 0)").Scan(&ordonnance).Error; err != nil {
		return 0, err
	}
	return liquidation.Montant - ordonnance, nil
}

// recomputeDossier rebuilds the mirrored amounts of a dossier and the
// MontantPaye accumulator of each of its payment orders.
func recomputeDossier(tx *gorm.DB, dossierID uint) error {
	var dossier models.Dossier
	if err := tx.First(&dossier, dossierID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errNotFound("dossier", dossierID)
		}
		return err
	}

	var engage, liquide, ordonnance float64
	if err := tx.Model(&models.Engagement{}).
		Where("dossier_id = ? AND statut IN ?", dossierID, statutsConsommants).
		Select("COALESCE(SUM(montant - montant_degage), 0)").
		Scan(&engage).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Liquidation{}).
		Where("dossier_id = ? AND statut IN ?", dossierID, statutsConsommants).
		Select("COALESCE(SUM(montant), 0)").
		Scan(&liquide).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Ordonnancement{}).
		Where("dossier_id = ? AND statut IN ?", dossierID, statutsConsommants).
		Select("COALESCE(SUM(montant), 0)").
		Scan(&ordonnance).Error; err != nil {
		return err
	}

	var ordres []models.Ordonnancement
	if err := tx.Where("dossier_id = ?", dossierID).Find(&ordres).Error; err != nil {
		return err
	}
	for i := range ordres {
		var paye float64
		if err := tx.Model(&models.Reglement{}).
			Where("ordonnancement_id = ? AND statut IN ?", ordres[i].ID, statutsReglementActifs).
			Select("COALESCE(SUM(montant), 0)").
			Scan(&paye).Error; err != nil {
			return err
		}
		if !sameAmount(paye, ordres[i].MontantPaye) {
			if err := tx.Model(&ordres[i]).Updates(map[string]any{
				"montant_paye": paye,
				"version":      gorm.Expr("version + 1"),
			}).Error; err != nil {
				return err
			}
		}
	}

	return tx.Model(&dossier).Updates(map[string]any{
		"montant_engage":     engage,
		"montant_liquide":    liquide,
		"montant_ordonnance": ordonnance,
		"version":            gorm.Expr("version + 1"),
	}).Error
}

// recomputeChain refreshes the line and dossier aggregates around a chain
// document after a mutation.
func recomputeChain(tx *gorm.DB, doc models.DocumentChaine) error {
	ch, err := resolveChain(tx, doc)
	if err != nil {
		return err
	}
	if ch.Engagement != nil {
		if err := recomputeLine(tx, ch.Engagement.LigneID); err != nil {
			return err
		}
	}
	dossier, err := dossierOf(tx, doc)
	if err != nil {
		return err
	}
	if dossier != nil {
		return recomputeDossier(tx, dossier.ID)
	}
	return nil
}

// chaine holds the resolved ancestry of a document, head first.
type chaine struct {
	Engagement     *models.Engagement
	Liquidation    *models.Liquidation
	Ordonnancement *models.Ordonnancement
}

// resolveChain walks parent references up to the engagement.
func resolveChain(tx *gorm.DB, doc models.DocumentChaine) (*chaine, error) {
	ch := &chaine{}
	switch d := doc.(type) {
	case *models.Engagement:
		ch.Engagement = d
	case *models.Liquidation:
		ch.Liquidation = d
	case *models.Ordonnancement:
		ch.Ordonnancement = d
	case *models.Reglement:
		var ord models.Ordonnancement
		if err := tx.First(&ord, d.OrdonnancementID).Error; err != nil {
			return nil, errNotFound("ordonnancement", d.OrdonnancementID)
		}
		ch.Ordonnancement = &ord
	case *models.Marche:
		return ch, nil
	}

	if ch.Ordonnancement != nil && ch.Liquidation == nil {
		var liq models.Liquidation
		if err := tx.First(&liq, ch.Ordonnancement.LiquidationID).Error; err != nil {
			return nil, errNotFound("liquidation", ch.Ordonnancement.LiquidationID)
		}
		ch.Liquidation = &liq
	}
	if ch.Liquidation != nil && ch.Engagement == nil {
		var eng models.Engagement
		if err := tx.First(&eng, ch.Liquidation.EngagementID).Error; err != nil {
			return nil, errNotFound("engagement", ch.Liquidation.EngagementID)
		}
		ch.Engagement = &eng
	}
	return ch, nil
}
