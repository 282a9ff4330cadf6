package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/engine"
)

// Eng is the shared workflow engine, wired at startup.
var Eng *engine.Engine

// Init installs the engine instance used by every handler.
func Init(e *engine.Engine) {
	Eng = e
}

// currentUserID reads the authenticated agent from the Gin context set by the
// auth middleware.
func currentUserID(c *gin.Context) uint {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// respondError translates an engine error into the HTTP status and payload
// the clients expect: the refusal kind, the message, and the computed
// boundary values (available amount, recommended procedure) when present.
func respondError(c *gin.Context, err error) {
	var ee *engine.Error
	if !errors.As(err, &ee) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch ee.Kind {
	case engine.KindNotFound:
		status = http.StatusNotFound
	case engine.KindNotAuthorized:
		status = http.StatusForbidden
	case engine.KindMissingField:
		status = http.StatusBadRequest
	case engine.KindInvalidTransition:
		status = http.StatusConflict
	case engine.KindVersionConflict:
		status = http.StatusConflict
	case engine.KindInsufficientBudget, engine.KindOverSettlement, engine.KindIncoherentProcedure:
		status = http.StatusUnprocessableEntity
	}

	body := gin.H{"error": ee.Message, "kind": string(ee.Kind)}
	switch ee.Kind {
	case engine.KindInsufficientBudget, engine.KindOverSettlement:
		body["disponible"] = ee.Disponible
	case engine.KindIncoherentProcedure:
		body["procedure_recommandee"] = ee.ProcedureRecommandee
	}
	c.JSON(status, body)
}
