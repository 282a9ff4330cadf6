package engine

import (
	"time"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
)

// EngagementInput is the payload for creating a commitment draft.
type EngagementInput struct {
	LigneID      uint
	Exercice     int
	Montant      float64
	Objet        string
	Beneficiaire string
}

// CreateEngagement opens a commitment draft against a budget line. The
// availability check runs at creation so an over-budget attempt fails
// immediately with the computed available amount; it runs again when the
// engagement starts consuming (verification).
func (e *Engine) CreateEngagement(actorID uint, in EngagementInput) (*models.Engagement, error) {
	if !e.authz.CanPerform(actorID, "creer", models.TypeEngagement) {
		return nil, errNotAuthorized("creer", models.TypeEngagement)
	}
	switch {
	case in.LigneID == 0:
		return nil, errMissingField("ligne_id")
	case in.Montant <= 0:
		return nil, errMissingField("montant")
	case in.Objet == "":
		return nil, errMissingField("objet")
	case in.Exercice == 0:
		return nil, errMissingField("exercice")
	}

	var eng *models.Engagement
	err := e.db.Transaction(func(tx *gorm.DB) error {
		_, disponible, err := availableToCommit(tx, in.LigneID, 0)
		if err != nil {
			return err
		}
		if in.Montant > disponible {
			return errInsufficientBudget(in.Montant, disponible)
		}

		reference, err := AllocateReference(tx, models.TypeEngagement, time.Now())
		if err != nil {
			return err
		}
		eng = &models.Engagement{
			Circulation: models.Circulation{
				Reference: reference,
				Exercice:  in.Exercice,
				Montant:   in.Montant,
				Objet:     in.Objet,
				Statut:    models.StatutBrouillon,
			},
			LigneID:      in.LigneID,
			Beneficiaire: in.Beneficiaire,
		}
		if err := tx.Create(eng).Error; err != nil {
			return err
		}
		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeEngagement,
			EntiteID:   eng.ID,
			Action:     "creer",
			AuteurID:   actorID,
			Apres:      map[string]any{"reference": reference, "montant": in.Montant},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// LiquidationInput is the payload for creating a liquidation draft under a
// validated engagement.
type LiquidationInput struct {
	EngagementID uint
	Montant      float64
	Objet        string
	DateService  *time.Time
}

// CreateLiquidation certifies delivery under a validated engagement. The
// amount may not exceed what the engagement still carries.
func (e *Engine) CreateLiquidation(actorID uint, in LiquidationInput) (*models.Liquidation, error) {
	if !e.authz.CanPerform(actorID, "creer", models.TypeLiquidation) {
		return nil, errNotAuthorized("creer", models.TypeLiquidation)
	}
	if in.Montant <= 0 {
		return nil, errMissingField("montant")
	}

	var liq *models.Liquidation
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var eng models.Engagement
		if err := tx.First(&eng, in.EngagementID).Error; err != nil {
			return errNotFound("engagement", in.EngagementID)
		}
		if eng.Statut != models.StatutValide {
			return errInvalidTransition("liquidation impossible: engagement non valide")
		}
		if eng.DossierID == nil {
			return errInvalidTransition("engagement valide sans dossier")
		}

		disponible, err := availableToLiquidate(tx, &eng, 0)
		if err != nil {
			return err
		}
		if in.Montant > disponible {
			return errInsufficientBudget(in.Montant, disponible)
		}

		reference, err := AllocateReference(tx, models.TypeLiquidation, time.Now())
		if err != nil {
			return err
		}
		liq = &models.Liquidation{
			Circulation: models.Circulation{
				Reference: reference,
				Exercice:  eng.Exercice,
				Montant:   in.Montant,
				Objet:     in.Objet,
				Statut:    models.StatutBrouillon,
			},
			EngagementID: eng.ID,
			DossierID:    *eng.DossierID,
			DateService:  in.DateService,
		}
		if err := tx.Create(liq).Error; err != nil {
			return err
		}
		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeLiquidation,
			EntiteID:   liq.ID,
			Action:     "creer",
			AuteurID:   actorID,
			Apres:      map[string]any{"reference": reference, "montant": in.Montant},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return liq, nil
}

// OrdonnancementInput is the payload for creating a payment order draft.
type OrdonnancementInput struct {
	LiquidationID uint
	Montant       float64
	Objet         string
}

// CreateOrdonnancement authorises payment of a validated liquidation.
func (e *Engine) CreateOrdonnancement(actorID uint, in OrdonnancementInput) (*models.Ordonnancement, error) {
	if !e.authz.CanPerform(actorID, "creer", models.TypeOrdonnancement) {
		return nil, errNotAuthorized("creer", models.TypeOrdonnancement)
	}
	if in.Montant <= 0 {
		return nil, errMissingField("montant")
	}

	var ord *models.Ordonnancement
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var liq models.Liquidation
		if err := tx.First(&liq, in.LiquidationID).Error; err != nil {
			return errNotFound("liquidation", in.LiquidationID)
		}
		if liq.Statut != models.StatutValide {
			return errInvalidTransition("ordonnancement impossible: liquidation non valide")
		}

		disponible, err := availableToOrder(tx, &liq, 0)
		if err != nil {
			return err
		}
		if in.Montant > disponible {
			return errInsufficientBudget(in.Montant, disponible)
		}

		reference, err := AllocateReference(tx, models.TypeOrdonnancement, time.Now())
		if err != nil {
			return err
		}
		ord = &models.Ordonnancement{
			Circulation: models.Circulation{
				Reference: reference,
				Exercice:  liq.Exercice,
				Montant:   in.Montant,
				Objet:     in.Objet,
				Statut:    models.StatutBrouillon,
			},
			LiquidationID: liq.ID,
			DossierID:     liq.DossierID,
		}
		if err := tx.Create(ord).Error; err != nil {
			return err
		}
		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeOrdonnancement,
			EntiteID:   ord.ID,
			Action:     "creer",
			AuteurID:   actorID,
			Apres:      map[string]any{"reference": reference, "montant": in.Montant},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ord, nil
}

// Degager applies a partial de-commitment: it reduces the engagement's
// effective consumption by exactly montant. Irreversible.
func (e *Engine) Degager(actorID uint, engagementID uint, montant float64, motif string) (*models.Engagement, error) {
	if !e.authz.CanPerform(actorID, "degager", models.TypeEngagement) {
		return nil, errNotAuthorized("degager", models.TypeEngagement)
	}
	if montant <= 0 {
		return nil, errMissingField("montant")
	}
	if motif == "" {
		return nil, errMissingField("motif")
	}

	var eng *models.Engagement
	err := e.db.Transaction(func(tx *gorm.DB) error {
		eng = &models.Engagement{}
		if err := tx.First(eng, engagementID).Error; err != nil {
			return errNotFound("engagement", engagementID)
		}
		if eng.Statut != models.StatutValide {
			return errInvalidTransition("degagement impossible: engagement non valide")
		}

		// A de-commitment may not cut below what is already liquidated.
		var liquide float64
		if err := tx.Model(&models.Liquidation{}).
			Where("engagement_id = ? AND statut IN ?", eng.ID, statutsConsommants).
			Select("COALESCE(SUM(montant), 0)").
			Scan(&liquide).Error; err != nil {
			return err
		}
		marge := eng.MontantEffectif() - liquide
		if montant > marge {
			return errInsufficientBudget(montant, marge)
		}

		nouveauDegage := eng.MontantDegage + montant
		if err := casUpdate(tx, eng, eng.Version, map[string]any{
			"montant_degage": nouveauDegage,
		}); err != nil {
			return err
		}
		eng.MontantDegage = nouveauDegage

		if err := recomputeChain(tx, eng); err != nil {
			return err
		}
		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeEngagement,
			EntiteID:   eng.ID,
			Action:     "degager",
			AuteurID:   actorID,
			Apres:      map[string]any{"montant_degage": eng.MontantDegage},
			Metadata:   map[string]any{"motif": motif},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// AdjustDotation changes the adjusted allotment of a line through the only
// sanctioned path: explicit, justified, audited. The new allotment may not
// fall below what is already committed.
func (e *Engine) AdjustDotation(actorID uint, ligneID uint, nouvelle float64, justification string) (*models.LigneBudgetaire, error) {
	if !e.authz.CanPerform(actorID, "ajuster", "ligne_budgetaire") {
		return nil, errNotAuthorized("ajuster", "ligne_budgetaire")
	}
	if justification == "" {
		return nil, errMissingField("justification")
	}
	if nouvelle < 0 {
		return nil, errMissingField("nouvelle_dotation")
	}

	var ligne *models.LigneBudgetaire
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := recomputeLine(tx, ligneID); err != nil {
			return err
		}
		ligne = &models.LigneBudgetaire{}
		if err := tx.First(ligne, ligneID).Error; err != nil {
			return err
		}
		if nouvelle < ligne.TotalEngage {
			return errInsufficientBudget(ligne.TotalEngage-nouvelle, ligne.Disponible())
		}

		ajustement := models.AjustementDotation{
			LigneID:          ligne.ID,
			AncienneDotation: ligne.DotationModifiee,
			NouvelleDotation: nouvelle,
			Justification:    justification,
			AuteurID:         actorID,
		}
		if err := tx.Create(&ajustement).Error; err != nil {
			return err
		}

		res := tx.Model(ligne).Where("version = ?", ligne.Version).Updates(map[string]any{
			"dotation_modifiee": nouvelle,
			"version":           ligne.Version + 1,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errVersionConflict("ligne_budgetaire", ligne.ID)
		}
		ligne.DotationModifiee = nouvelle
		ligne.Version++

		e.audit.Record(tx, AuditEntry{
			TypeEntite: "ligne_budgetaire",
			EntiteID:   ligne.ID,
			Action:     "ajuster",
			AuteurID:   actorID,
			Avant:      map[string]any{"dotation_modifiee": ajustement.AncienneDotation},
			Apres:      map[string]any{"dotation_modifiee": nouvelle},
			Metadata:   map[string]any{"justification": justification},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ligne, nil
}

// AttachPiece appends an opaque attachment reference to a chain document.
// Allowed at any status except on locked documents.
func (e *Engine) AttachPiece(actorID uint, typeDoc string, id uint, piece string) (models.DocumentChaine, error) {
	if !e.authz.CanPerform(actorID, "modifier", typeDoc) {
		return nil, errNotAuthorized("modifier", typeDoc)
	}
	if piece == "" {
		return nil, errMissingField("piece")
	}

	var doc models.DocumentChaine
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = fetchDocument(tx, typeDoc, id)
		if err != nil {
			return err
		}
		flux := doc.Flux()
		if flux.Verrouille {
			return errInvalidTransition("document verrouille")
		}
		pieces := append(flux.Pieces, piece)
		if err := casUpdate(tx, doc, flux.Version, map[string]any{
			"pieces": pieces,
		}); err != nil {
			return err
		}
		flux.Pieces = pieces
		e.audit.Record(tx, AuditEntry{
			TypeEntite: typeDoc, EntiteID: id, Action: "joindre_piece", AuteurID: actorID,
			Metadata: map[string]any{"piece": piece},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// BlockDossier applies the administrative hold. Independent of the stage
// machine: the dossier keeps its stage marker and resumes where it was.
func (e *Engine) BlockDossier(actorID uint, dossierID uint, motif string) error {
	if !e.authz.CanPerform(actorID, "bloquer", "dossier") {
		return errNotAuthorized("bloquer", "dossier")
	}
	if motif == "" {
		return errMissingField("motif")
	}
	return e.db.Transaction(func(tx *gorm.DB) error {
		var dossier models.Dossier
		if err := tx.First(&dossier, dossierID).Error; err != nil {
			return errNotFound("dossier", dossierID)
		}
		if dossier.Statut == models.DossierSolde || dossier.Statut == models.DossierAnnule {
			return errInvalidTransition("dossier clos")
		}
		if err := tx.Model(&dossier).Updates(map[string]any{
			"statut":        models.DossierBloque,
			"motif_blocage": motif,
			"version":       gorm.Expr("version + 1"),
		}).Error; err != nil {
			return err
		}
		e.audit.Record(tx, AuditEntry{
			TypeEntite: "dossier", EntiteID: dossierID, Action: "bloquer", AuteurID: actorID,
			Metadata: map[string]any{"motif": motif},
		})
		return nil
	})
}

// UnblockDossier lifts the administrative hold.
func (e *Engine) UnblockDossier(actorID uint, dossierID uint) error {
	if !e.authz.CanPerform(actorID, "debloquer", "dossier") {
		return errNotAuthorized("debloquer", "dossier")
	}
	return e.db.Transaction(func(tx *gorm.DB) error {
		var dossier models.Dossier
		if err := tx.First(&dossier, dossierID).Error; err != nil {
			return errNotFound("dossier", dossierID)
		}
		if dossier.Statut != models.DossierBloque {
			return errInvalidTransition("dossier non bloque")
		}
		if err := tx.Model(&dossier).Updates(map[string]any{
			"statut":        models.DossierEnCours,
			"motif_blocage": "",
			"version":       gorm.Expr("version + 1"),
		}).Error; err != nil {
			return err
		}
		e.audit.Record(tx, AuditEntry{
			TypeEntite: "dossier", EntiteID: dossierID, Action: "debloquer", AuteurID: actorID,
		})
		return nil
	})
}
