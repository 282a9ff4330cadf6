package engine

import (
	"time"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
)

// MarcheInput is the payload for opening a procurement record.
type MarcheInput struct {
	DossierID uint
	Montant   float64
	Objet     string
	Procedure string
	Exercice  int
}

// CreateMarche opens a procurement record on a dossier. The procedure choice
// is validated against the threshold table immediately so the drafter learns
// the recommended procedure before going further; the check runs again at
// publication, which is what fixes the choice.
func (e *Engine) CreateMarche(actorID uint, in MarcheInput) (*models.Marche, error) {
	if !e.authz.CanPerform(actorID, "creer", models.TypeMarche) {
		return nil, errNotAuthorized("creer", models.TypeMarche)
	}
	switch {
	case in.DossierID == 0:
		return nil, errMissingField("dossier_id")
	case in.Montant <= 0:
		return nil, errMissingField("montant")
	case in.Objet == "":
		return nil, errMissingField("objet")
	}
	if err := checkProcedureCoherence(in.Montant, in.Procedure); err != nil {
		return nil, err
	}

	var marche *models.Marche
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var dossier models.Dossier
		if err := tx.First(&dossier, in.DossierID).Error; err != nil {
			return errNotFound("dossier", in.DossierID)
		}
		reference, err := AllocateReference(tx, models.TypeMarche, time.Now())
		if err != nil {
			return err
		}
		exercice := in.Exercice
		if exercice == 0 {
			exercice = dossier.Exercice
		}
		marche = &models.Marche{
			Circulation: models.Circulation{
				Reference: reference,
				Exercice:  exercice,
				Montant:   in.Montant,
				Objet:     in.Objet,
				Statut:    models.StatutBrouillon,
			},
			DossierID: dossier.ID,
			Procedure: in.Procedure,
		}
		if err := tx.Create(marche).Error; err != nil {
			return err
		}
		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeMarche,
			EntiteID:   marche.ID,
			Action:     "creer",
			AuteurID:   actorID,
			Apres:      map[string]any{"reference": reference, "procedure": in.Procedure, "montant": in.Montant},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marche, nil
}

// ChangeProcedure re-fixes the procedure while the record is still a draft.
func (e *Engine) ChangeProcedure(actorID uint, marcheID uint, procedure string) (*models.Marche, error) {
	if !e.authz.CanPerform(actorID, "creer", models.TypeMarche) {
		return nil, errNotAuthorized("creer", models.TypeMarche)
	}

	var marche *models.Marche
	err := e.db.Transaction(func(tx *gorm.DB) error {
		marche = &models.Marche{}
		if err := tx.First(marche, marcheID).Error; err != nil {
			return errNotFound(models.TypeMarche, marcheID)
		}
		if marche.Statut != models.StatutBrouillon {
			return errInvalidTransition("procedure fixee: le marche n'est plus en brouillon")
		}
		if err := checkProcedureCoherence(marche.Montant, procedure); err != nil {
			return err
		}
		if err := casUpdate(tx, marche, marche.Version, map[string]any{
			"procedure": procedure,
		}); err != nil {
			return err
		}
		marche.Procedure = procedure
		e.audit.Record(tx, AuditEntry{
			TypeEntite: models.TypeMarche, EntiteID: marche.ID, Action: "changer_procedure",
			AuteurID: actorID, Apres: map[string]any{"procedure": procedure},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marche, nil
}

// AddSoumissionnaire registers a bidder while the call is published.
func (e *Engine) AddSoumissionnaire(actorID uint, marcheID uint, nom string, offre float64) (*models.Soumissionnaire, error) {
	if !e.authz.CanPerform(actorID, "evaluer", models.TypeMarche) {
		return nil, errNotAuthorized("evaluer", models.TypeMarche)
	}
	if nom == "" {
		return nil, errMissingField("nom")
	}

	var bidder *models.Soumissionnaire
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var marche models.Marche
		if err := tx.First(&marche, marcheID).Error; err != nil {
			return errNotFound(models.TypeMarche, marcheID)
		}
		if marche.Statut != models.StatutPublie {
			return errInvalidTransition("depot d'offre hors periode de publication")
		}
		bidder = &models.Soumissionnaire{MarcheID: marche.ID, Nom: nom, Offre: offre}
		return tx.Create(bidder).Error
	})
	if err != nil {
		return nil, err
	}
	return bidder, nil
}

// ScoreInput carries an evaluation decision for one bidder.
type ScoreInput struct {
	SoumissionnaireID uint
	NoteFinale        *float64
	Elimine           bool
	Qualifie          bool
}

// ScoreSoumissionnaire records the evaluation of a bidder once the call is
// closed. The award transition later verifies every non-eliminated bidder
// was scored.
func (e *Engine) ScoreSoumissionnaire(actorID uint, marcheID uint, in ScoreInput) (*models.Soumissionnaire, error) {
	if !e.authz.CanPerform(actorID, "evaluer", models.TypeMarche) {
		return nil, errNotAuthorized("evaluer", models.TypeMarche)
	}

	var bidder *models.Soumissionnaire
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var marche models.Marche
		if err := tx.First(&marche, marcheID).Error; err != nil {
			return errNotFound(models.TypeMarche, marcheID)
		}
		if marche.Statut != models.StatutCloture && marche.Statut != models.StatutEvalue {
			return errInvalidTransition("notation hors periode d'evaluation")
		}
		bidder = &models.Soumissionnaire{}
		if err := tx.First(bidder, in.SoumissionnaireID).Error; err != nil {
			return errNotFound("soumissionnaire", in.SoumissionnaireID)
		}
		if bidder.MarcheID != marche.ID {
			return errInvalidTransition("soumissionnaire d'un autre marche")
		}
		return tx.Model(bidder).Updates(map[string]any{
			"note_finale": in.NoteFinale,
			"elimine":     in.Elimine,
			"qualifie":    in.Qualifie,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return bidder, nil
}
