package engine

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures. Handlers map kinds to HTTP statuses; the
// engine itself never retries anything except callers re-attempting after a
// version conflict.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindNotAuthorized       Kind = "not_authorized"
	KindInvalidTransition   Kind = "invalid_transition"
	KindMissingField        Kind = "missing_field"
	KindInsufficientBudget  Kind = "insufficient_budget"
	KindOverSettlement      Kind = "over_settlement"
	KindIncoherentProcedure Kind = "incoherent_procedure"
	KindVersionConflict     Kind = "version_conflict"
)

// Error carries the failure kind plus the computed boundary values the caller
// needs to explain the refusal precisely (available amount, recommended
// procedure).
type Error struct {
	Kind    Kind
	Message string

	// Disponible is set on InsufficientBudget and OverSettlement.
	Disponible float64
	// ProcedureRecommandee is set on IncoherentProcedure.
	ProcedureRecommandee string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsKind reports whether err is an engine Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Kind == kind
}

func errNotFound(what string, id uint) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %d introuvable", what, id)}
}

func errNotAuthorized(action, typeDoc string) *Error {
	return &Error{Kind: KindNotAuthorized, Message: fmt.Sprintf("action %s non autorisee sur %s", action, typeDoc)}
}

func errInvalidTransition(msg string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: msg}
}

func errMissingField(field string) *Error {
	return &Error{Kind: KindMissingField, Message: "champ obligatoire manquant: " + field}
}

func errInsufficientBudget(demande, disponible float64) *Error {
	return &Error{
		Kind:       KindInsufficientBudget,
		Message:    fmt.Sprintf("montant %.2f superieur au disponible %.2f", demande, disponible),
		Disponible: disponible,
	}
}

func errOverSettlement(demande, disponible float64) *Error {
	return &Error{
		Kind:       KindOverSettlement,
		Message:    fmt.Sprintf("reglement %.2f superieur au reste a payer %.2f", demande, disponible),
		Disponible: disponible,
	}
}

func errIncoherentProcedure(procedure, recommandee string) *Error {
	return &Error{
		Kind:                 KindIncoherentProcedure,
		Message:              fmt.Sprintf("procedure %s incoherente, procedure recommandee: %s", procedure, recommandee),
		ProcedureRecommandee: recommandee,
	}
}

func errVersionConflict(typeDoc string, id uint) *Error {
	return &Error{Kind: KindVersionConflict, Message: fmt.Sprintf("%s %d modifie par une operation concurrente", typeDoc, id)}
}
