package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/engine"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
)

// UploadsDir is where attachment files land. Overridable for tests.
var UploadsDir = "uploads"

// EngagementInput mirrors the engine payload with binding rules.
type EngagementInput struct {
	LigneID      uint    `json:"ligneId" binding:"required"`
	Exercice     int     `json:"exercice" binding:"required"`
	Montant      float64 `json:"montant" binding:"required"`
	Objet        string  `json:"objet" binding:"required"`
	Beneficiaire string  `json:"beneficiaire"`
}

func CreateEngagementHandler(c *gin.Context) {
	var input EngagementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eng, err := Eng.CreateEngagement(currentUserID(c), engine.EngagementInput{
		LigneID:      input.LigneID,
		Exercice:     input.Exercice,
		Montant:      input.Montant,
		Objet:        input.Objet,
		Beneficiaire: input.Beneficiaire,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eng)
}

func ListEngagementsHandler(c *gin.Context) {
	query := config.DB.Model(&models.Engagement{})
	if statut := c.Query("statut"); statut != "" {
		query = query.Where("statut = ?", statut)
	}
	if ligneID := c.Query("ligneId"); ligneID != "" {
		query = query.Where("ligne_id = ?", ligneID)
	}

	var totalRows int64
	query.Count(&totalRows)

	var engagements []models.Engagement
	if err := query.Order("created_at desc").Scopes(Paginate(c)).Find(&engagements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des engagements"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, engagements, totalRows))
}

// DegagerHandler applies a partial de-commitment on a validated engagement.
func DegagerHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}
	var input struct {
		Montant float64 `json:"montant" binding:"required"`
		Motif   string  `json:"motif" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eng, err := Eng.Degager(currentUserID(c), uint(id), input.Montant, input.Motif)
	if err != nil {
		respondError(c, err)
		return
	}
	GlobalHub.NotifyWorkflow(models.TypeEngagement, eng.ID, "degage", input.Motif)
	c.JSON(http.StatusOK, eng)
}

// LiquidationInput creates a liquidation under a validated engagement.
type LiquidationInput struct {
	EngagementID uint       `json:"engagementId" binding:"required"`
	Montant      float64    `json:"montant" binding:"required"`
	Objet        string     `json:"objet" binding:"required"`
	DateService  *time.Time `json:"dateService"`
}

func CreateLiquidationHandler(c *gin.Context) {
	var input LiquidationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	liq, err := Eng.CreateLiquidation(currentUserID(c), engine.LiquidationInput{
		EngagementID: input.EngagementID,
		Montant:      input.Montant,
		Objet:        input.Objet,
		DateService:  input.DateService,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, liq)
}

// OrdonnancementInput creates a payment order under a validated liquidation.
type OrdonnancementInput struct {
	LiquidationID uint    `json:"liquidationId" binding:"required"`
	Montant       float64 `json:"montant" binding:"required"`
	Objet         string  `json:"objet" binding:"required"`
}

func CreateOrdonnancementHandler(c *gin.Context) {
	var input OrdonnancementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ord, err := Eng.CreateOrdonnancement(currentUserID(c), engine.OrdonnancementInput{
		LiquidationID: input.LiquidationID,
		Montant:       input.Montant,
		Objet:         input.Objet,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ord)
}

// TransitionRequest is the payload of the shared transition endpoint.
type TransitionRequest struct {
	Action           string     `json:"action" binding:"required"`
	Motif            string     `json:"motif"`
	CibleRenvoi      string     `json:"cibleRenvoi"`
	ConditionReprise string     `json:"conditionReprise"`
	DateReprise      *time.Time `json:"dateReprise"`
	ReferenceContrat string     `json:"referenceContrat"`
	ExpectedVersion  *int       `json:"expectedVersion"`
}

const maxTransitionRetries = 3

// TransitionHandler drives any chain document through its state machine.
// When the caller does not pin an expected version, a version conflict is
// retried up to three times; a pinned version is never retried, the conflict
// surfaces so the caller re-reads first.
func TransitionHandler(c *gin.Context) {
	typeDoc := c.Param("type")
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}
	var input TransitionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := engine.TransitionInput{
		TypeDoc:          typeDoc,
		ID:               uint(id),
		Action:           engine.Action(input.Action),
		ActorID:          currentUserID(c),
		Motif:            input.Motif,
		CibleRenvoi:      input.CibleRenvoi,
		ConditionReprise: input.ConditionReprise,
		DateReprise:      input.DateReprise,
		ReferenceContrat: input.ReferenceContrat,
		ExpectedVersion:  input.ExpectedVersion,
	}

	var doc models.DocumentChaine
	for attempt := 0; ; attempt++ {
		doc, err = Eng.Transition(in)
		if err == nil {
			break
		}
		if in.ExpectedVersion == nil && engine.IsKind(err, engine.KindVersionConflict) && attempt < maxTransitionRetries-1 {
			continue
		}
		respondError(c, err)
		return
	}

	GlobalHub.NotifyWorkflow(typeDoc, uint(id), doc.Flux().Statut, input.Motif)
	c.JSON(http.StatusOK, doc)
}

// AttachPieceHandler stores an uploaded file under an opaque name and appends
// its reference to the document. The content is never inspected.
func AttachPieceHandler(c *gin.Context) {
	typeDoc := c.Param("type")
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}

	file, err := c.FormFile("piece")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier 'piece' manquant"})
		return
	}

	if err := os.MkdirAll(UploadsDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stockage indisponible"})
		return
	}
	stored := filepath.Join(UploadsDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, stored); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec d'enregistrement du fichier"})
		return
	}

	doc, err := Eng.AttachPiece(currentUserID(c), typeDoc, uint(id), stored)
	if err != nil {
		// The document refused the reference; do not leave the file behind.
		_ = os.Remove(stored)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}
