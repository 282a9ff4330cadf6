package engine

import (
	"fmt"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
)

// Action is a workflow verb. Capability names derive from it:
// "<typeDoc>_<action>".
type Action string

const (
	ActionSoumettre Action = "soumettre"
	ActionVerifier  Action = "verifier"
	ActionViser     Action = "viser"
	ActionValider   Action = "valider"
	ActionRejeter   Action = "rejeter"
	ActionDifferer  Action = "differer"
	ActionReprendre Action = "reprendre"

	// Procurement sub-workflow.
	ActionPublier   Action = "publier"
	ActionCloturer  Action = "cloturer"
	ActionEvaluer   Action = "evaluer"
	ActionAttribuer Action = "attribuer"
	ActionApprouver Action = "approuver"
	ActionSigner    Action = "signer"
)

// regle is one row of a transition table: allowed source states, destination,
// and whether a justification is mandatory.
type regle struct {
	de          []string
	vers        string
	motifRequis bool
}

var reglesRevision = []string{models.StatutSoumis, models.StatutVerifie, models.StatutEnAttenteVisa}

// circuits holds the per-document-type transition tables. Reglements are
// absent on purpose: settlements are driven by the settlement tracker, not by
// submit/validate rounds.
var circuits = map[string]map[Action]regle{
	models.TypeEngagement: {
		ActionSoumettre: {de: []string{models.StatutBrouillon}, vers: models.StatutSoumis},
		ActionVerifier:  {de: []string{models.StatutSoumis}, vers: models.StatutVerifie},
		ActionValider:   {de: []string{models.StatutVerifie}, vers: models.StatutValide},
		ActionRejeter:   {de: reglesRevision, vers: models.StatutRejete, motifRequis: true},
		ActionDifferer:  {de: reglesRevision, vers: models.StatutDiffere, motifRequis: true},
		ActionReprendre: {de: []string{models.StatutDiffere}, vers: models.StatutSoumis},
	},
	models.TypeLiquidation: {
		ActionSoumettre: {de: []string{models.StatutBrouillon}, vers: models.StatutSoumis},
		ActionVerifier:  {de: []string{models.StatutSoumis}, vers: models.StatutVerifie},
		ActionValider:   {de: []string{models.StatutVerifie}, vers: models.StatutValide},
		ActionRejeter:   {de: reglesRevision, vers: models.StatutRejete, motifRequis: true},
		ActionDifferer:  {de: reglesRevision, vers: models.StatutDiffere, motifRequis: true},
		ActionReprendre: {de: []string{models.StatutDiffere}, vers: models.StatutSoumis},
	},
	models.TypeOrdonnancement: {
		ActionSoumettre: {de: []string{models.StatutBrouillon}, vers: models.StatutSoumis},
		ActionViser:     {de: []string{models.StatutSoumis}, vers: models.StatutEnAttenteVisa},
		ActionValider:   {de: []string{models.StatutEnAttenteVisa}, vers: models.StatutValide},
		ActionRejeter:   {de: reglesRevision, vers: models.StatutRejete, motifRequis: true},
		ActionDifferer:  {de: reglesRevision, vers: models.StatutDiffere, motifRequis: true},
		ActionReprendre: {de: []string{models.StatutDiffere}, vers: models.StatutSoumis},
	},
	models.TypeMarche: {
		ActionPublier:   {de: []string{models.StatutBrouillon}, vers: models.StatutPublie},
		ActionCloturer:  {de: []string{models.StatutPublie}, vers: models.StatutCloture},
		ActionEvaluer:   {de: []string{models.StatutCloture}, vers: models.StatutEvalue},
		ActionAttribuer: {de: []string{models.StatutEvalue}, vers: models.StatutAttribue},
		ActionApprouver: {de: []string{models.StatutAttribue}, vers: models.StatutApprouve},
		ActionSigner:    {de: []string{models.StatutApprouve}, vers: models.StatutSigne},
		ActionRejeter: {de: []string{models.StatutPublie, models.StatutCloture, models.StatutEvalue, models.StatutAttribue},
			vers: models.StatutRejete, motifRequis: true},
		ActionDifferer: {de: []string{models.StatutPublie, models.StatutCloture, models.StatutEvalue},
			vers: models.StatutDiffere, motifRequis: true},
		ActionReprendre: {de: []string{models.StatutDiffere}, vers: models.StatutPublie},
	},
}

// TransitionInput describes a requested transition.
type TransitionInput struct {
	TypeDoc string
	ID      uint
	Action  Action
	ActorID uint

	// Rejection / deferral metadata.
	Motif            string
	CibleRenvoi      string
	ConditionReprise string
	DateReprise      *time.Time

	// ReferenceContrat carries the signed-contract reference on signature.
	ReferenceContrat string

	// ExpectedVersion, when set, must match the stored version or the
	// transition fails with VersionConflict before evaluating anything else.
	ExpectedVersion *int
}

// Transition moves a document through its state machine: guard check,
// capability check, optimistic status write, aggregate recomputation and
// audit append, all inside one transaction.
func (e *Engine) Transition(in TransitionInput) (models.DocumentChaine, error) {
	var doc models.DocumentChaine
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = fetchDocument(tx, in.TypeDoc, in.ID)
		if err != nil {
			return err
		}
		flux := doc.Flux()
		avant := flux.Statut

		if in.ExpectedVersion != nil && *in.ExpectedVersion != flux.Version {
			return errVersionConflict(in.TypeDoc, in.ID)
		}

		table, ok := circuits[in.TypeDoc]
		if !ok {
			return errInvalidTransition("aucun circuit pour le type " + in.TypeDoc)
		}
		r, ok := table[in.Action]
		if !ok {
			return errInvalidTransition(fmt.Sprintf("action %s inconnue pour %s", in.Action, in.TypeDoc))
		}
		if !statutParmi(flux.Statut, r.de) {
			return errInvalidTransition(fmt.Sprintf("%s impossible depuis le statut %s", in.Action, flux.Statut))
		}
		if !e.authz.CanPerform(in.ActorID, string(in.Action), in.TypeDoc) {
			return errNotAuthorized(string(in.Action), in.TypeDoc)
		}
		if r.motifRequis && in.Motif == "" {
			return errMissingField("motif")
		}

		dossier, err := dossierOf(tx, doc)
		if err != nil {
			return err
		}
		if dossier != nil && dossier.Statut == models.DossierBloque {
			return errInvalidTransition("dossier bloque: " + dossier.MotifBlocage)
		}

		fields := map[string]any{"statut": r.vers}

		switch in.Action {
		case ActionSoumettre, ActionPublier:
			if err := checkMandatoryFields(doc); err != nil {
				return err
			}
		case ActionRejeter:
			fields["motif_rejet"] = in.Motif
			if in.CibleRenvoi != "" {
				// Routed rejection: unwind handled by the router below.
				fields["cible_renvoi"] = in.CibleRenvoi
			}
		case ActionDifferer:
			fields["motif_report"] = in.Motif
			fields["condition_reprise"] = in.ConditionReprise
			fields["date_reprise"] = in.DateReprise
		case ActionReprendre:
			if err := checkResumeConditions(doc, time.Now()); err != nil {
				return err
			}
			fields["motif_report"] = ""
			fields["condition_reprise"] = ""
			fields["date_reprise"] = nil
		}

		// Per-action business guards and side effects.
		if err := e.applyGuards(tx, doc, in, fields); err != nil {
			return err
		}

		if err := casUpdate(tx, doc, flux.Version, fields); err != nil {
			return err
		}

		if in.Action == ActionRejeter && in.CibleRenvoi != "" {
			if err := routeRejection(tx, doc, in.CibleRenvoi); err != nil {
				return err
			}
		} else if err := e.postTransition(tx, doc, in.Action); err != nil {
			return err
		}

		e.audit.Record(tx, AuditEntry{
			TypeEntite: in.TypeDoc,
			EntiteID:   in.ID,
			Action:     string(in.Action),
			AuteurID:   in.ActorID,
			Avant:      map[string]any{"statut": avant},
			Apres:      map[string]any{"statut": r.vers},
			Metadata:   map[string]any{"motif": in.Motif, "cible_renvoi": in.CibleRenvoi},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func statutParmi(statut string, parmi []string) bool {
	for _, s := range parmi {
		if s == statut {
			return true
		}
	}
	return false
}

// checkMandatoryFields rejects submission of an incomplete document.
func checkMandatoryFields(doc models.DocumentChaine) error {
	flux := doc.Flux()
	if flux.Reference == "" {
		return errMissingField("reference")
	}
	if flux.Montant <= 0 {
		return errMissingField("montant")
	}
	if flux.Objet == "" {
		return errMissingField("objet")
	}
	if flux.Exercice == 0 {
		return errMissingField("exercice")
	}
	if m, ok := doc.(*models.Marche); ok && m.Procedure == "" {
		return errMissingField("procedure")
	}
	return nil
}

// checkResumeConditions gates the resumption of a deferred document: the
// target date must be reached and the recorded condition expression, if any,
// must evaluate to true against the document facts.
func checkResumeConditions(doc models.DocumentChaine, now time.Time) error {
	flux := doc.Flux()
	if flux.DateReprise != nil && now.Before(*flux.DateReprise) {
		return errInvalidTransition(fmt.Sprintf("reprise prevue le %s", flux.DateReprise.Format("2006-01-02")))
	}
	if flux.ConditionReprise == "" {
		return nil
	}

	expr, err := govaluate.NewEvaluableExpression(flux.ConditionReprise)
	if err != nil {
		return errInvalidTransition("condition de reprise illisible: " + err.Error())
	}
	params := map[string]interface{}{
		"montant":  flux.Montant,
		"exercice": flux.Exercice,
	}
	if flux.DateReprise != nil {
		params["jours_ecoules"] = now.Sub(*flux.DateReprise).Hours() / 24
	}
	res, err := expr.Evaluate(params)
	if err != nil {
		return errInvalidTransition("condition de reprise non evaluable: " + err.Error())
	}
	ok, isBool := res.(bool)
	if !isBool {
		return errInvalidTransition("condition de reprise non booleenne")
	}
	if !ok {
		return errInvalidTransition("condition de reprise non satisfaite: " + flux.ConditionReprise)
	}
	return nil
}

// applyGuards runs the action-specific business guards before the status
// write, staging extra fields where needed.
func (e *Engine) applyGuards(tx *gorm.DB, doc models.DocumentChaine, in TransitionInput, fields map[string]any) error {
	switch d := doc.(type) {
	case *models.Engagement:
		if in.Action == ActionVerifier {
			// The engagement starts consuming the line here; re-run the
			// availability check inside the transaction and stamp the line
			// version so two concurrent verifications against the same line
			// cannot both pass on the same read.
			ligne, disponible, err := availableToCommit(tx, d.LigneID, d.ID)
			if err != nil {
				return err
			}
			if d.Montant > disponible {
				return errInsufficientBudget(d.Montant, disponible)
			}
			if err := bumpVersion(tx, &models.LigneBudgetaire{}, "ligne_budgetaire", ligne.ID, ligne.Version); err != nil {
				return err
			}
		}
	case *models.Liquidation:
		switch in.Action {
		case ActionSoumettre, ActionVerifier, ActionReprendre:
			// A liquidation reserves its engagement from soumis on; the
			// envelope is re-checked at every entry into a reserving status
			// so sibling drafts cannot jointly exceed the engagement.
			var eng models.Engagement
			if err := tx.First(&eng, d.EngagementID).Error; err != nil {
				return errNotFound("engagement", d.EngagementID)
			}
			disponible, err := availableToLiquidate(tx, &eng, d.ID)
			if err != nil {
				return err
			}
			if d.Montant > disponible {
				return errInsufficientBudget(d.Montant, disponible)
			}
			if err := bumpVersion(tx, &models.Engagement{}, models.TypeEngagement, eng.ID, eng.Version); err != nil {
				return err
			}
		}
	case *models.Ordonnancement:
		switch in.Action {
		case ActionSoumettre, ActionViser, ActionReprendre:
			var liq models.Liquidation
			if err := tx.First(&liq, d.LiquidationID).Error; err != nil {
				return errNotFound("liquidation", d.LiquidationID)
			}
			disponible, err := availableToOrder(tx, &liq, d.ID)
			if err != nil {
				return err
			}
			if d.Montant > disponible {
				return errInsufficientBudget(d.Montant, disponible)
			}
			if err := bumpVersion(tx, &models.Liquidation{}, models.TypeLiquidation, liq.ID, liq.Version); err != nil {
				return err
			}
		}
	case *models.Marche:
		switch in.Action {
		case ActionPublier:
			// Publication fixes the procedure choice; it must be coherent
			// with the amount.
			if err := checkProcedureCoherence(d.Montant, d.Procedure); err != nil {
				return err
			}
		case ActionAttribuer:
			attributaire, err := awardGuard(tx, d)
			if err != nil {
				return err
			}
			fields["attributaire_id"] = attributaire
		case ActionSigner:
			if in.ReferenceContrat == "" && d.ReferenceContratSigne == "" {
				return errMissingField("reference_contrat_signe")
			}
			if in.ReferenceContrat != "" {
				fields["reference_contrat_signe"] = in.ReferenceContrat
			}
		}
	}
	return nil
}

// awardGuard enforces the award conditions: every non-eliminated bidder has a
// final score and at least one bidder is qualified. Returns the winner, the
// best-scored qualified bidder.
func awardGuard(tx *gorm.DB, m *models.Marche) (uint, error) {
	var bidders []models.Soumissionnaire
	if err := tx.Where("marche_id = ?", m.ID).Find(&bidders).Error; err != nil {
		return 0, err
	}
	if len(bidders) == 0 {
		return 0, errInvalidTransition("attribution impossible sans soumissionnaire")
	}

	var meilleur *models.Soumissionnaire
	qualifies := 0
	for i := range bidders {
		b := &bidders[i]
		if b.Elimine {
			continue
		}
		if b.NoteFinale == nil {
			return 0, errInvalidTransition(fmt.Sprintf("soumissionnaire %s sans note finale", b.Nom))
		}
		if !b.Qualifie {
			continue
		}
		qualifies++
		if meilleur == nil || *b.NoteFinale > *meilleur.NoteFinale {
			meilleur = b
		}
	}
	if qualifies == 0 {
		return 0, errInvalidTransition("aucun soumissionnaire qualifie")
	}
	return meilleur.ID, nil
}

// postTransition applies chain side effects after a successful status write:
// dossier creation and stage advancement on validation, parent locking, and
// aggregate recomputation.
func (e *Engine) postTransition(tx *gorm.DB, doc models.DocumentChaine, action Action) error {
	if action == ActionValider {
		switch d := doc.(type) {
		case *models.Engagement:
			if err := attachDossier(tx, d); err != nil {
				return err
			}
		case *models.Liquidation:
			// Money moved one stage down: freeze the engagement.
			if err := lockDocument(tx, &models.Engagement{}, d.EngagementID, true); err != nil {
				return err
			}
			if err := advanceDossier(tx, d.DossierID, models.TypeOrdonnancement); err != nil {
				return err
			}
		case *models.Ordonnancement:
			if err := lockDocument(tx, &models.Liquidation{}, d.LiquidationID, true); err != nil {
				return err
			}
			if err := advanceDossier(tx, d.DossierID, models.TypeReglement); err != nil {
				return err
			}
		}
	}
	return recomputeChain(tx, doc)
}

// attachDossier creates the owning dossier when the first engagement is
// validated, or re-activates an existing one coming back from correction.
func attachDossier(tx *gorm.DB, eng *models.Engagement) error {
	if eng.DossierID != nil {
		if err := tx.Model(&models.Dossier{}).Where("id = ?", *eng.DossierID).Updates(map[string]any{
			"statut":         models.DossierEnCours,
			"etape_courante": models.TypeLiquidation,
			"version":        gorm.Expr("version + 1"),
		}).Error; err != nil {
			return err
		}
		return nil
	}

	numero, err := AllocateReference(tx, "dossier", time.Now())
	if err != nil {
		return err
	}
	dossier := models.Dossier{
		Numero:        numero,
		Objet:         eng.Objet,
		Exercice:      eng.Exercice,
		Statut:        models.DossierEnCours,
		EtapeCourante: models.TypeLiquidation,
		MontantEstime: eng.Montant,
	}
	if err := tx.Create(&dossier).Error; err != nil {
		return err
	}
	eng.DossierID = &dossier.ID
	return tx.Model(eng).Update("dossier_id", dossier.ID).Error
}

func advanceDossier(tx *gorm.DB, dossierID uint, etape string) error {
	return tx.Model(&models.Dossier{}).Where("id = ?", dossierID).Updates(map[string]any{
		"etape_courante": etape,
		"version":        gorm.Expr("version + 1"),
	}).Error
}

// lockDocument flips the lock flag on a single document row.
func lockDocument(tx *gorm.DB, model any, id uint, locked bool) error {
	return tx.Model(model).Where("id = ?", id).Updates(map[string]any{
		"verrouille": locked,
		"version":    gorm.Expr("version + 1"),
	}).Error
}
