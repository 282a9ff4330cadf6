package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/engine"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
)

// ReglementInput records a payment against a validated order.
type ReglementInput struct {
	OrdonnancementID uint    `json:"ordonnancementId" binding:"required"`
	Montant          float64 `json:"montant" binding:"required"`
	ModePaiement     string  `json:"modePaiement" binding:"required"`
}

func CreateReglementHandler(c *gin.Context) {
	var input ReglementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reg, err := Eng.RecordReglement(currentUserID(c), engine.ReglementInput{
		OrdonnancementID: input.OrdonnancementID,
		Montant:          input.Montant,
		ModePaiement:     input.ModePaiement,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	GlobalHub.NotifyWorkflow(models.TypeReglement, reg.ID, models.StatutEnregistre, "")
	c.JSON(http.StatusCreated, reg)
}

// ResteAPayerHandler is the settlement pre-check: what remains payable on a
// payment order. Advisory only, the tracker re-checks inside its transaction.
func ResteAPayerHandler(c *gin.Context) {
	var ord models.Ordonnancement
	if err := config.DB.First(&ord, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ordonnancement introuvable"})
		return
	}
	reste, err := Eng.AvailableToSettle(ord.ID, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ordonnancementId": ord.ID, "resteAPayer": reste})
}

func ListReglementsHandler(c *gin.Context) {
	query := config.DB.Model(&models.Reglement{})
	if ordID := c.Query("ordonnancementId"); ordID != "" {
		query = query.Where("ordonnancement_id = ?", ordID)
	}
	if statut := c.Query("statut"); statut != "" {
		query = query.Where("statut = ?", statut)
	}

	var totalRows int64
	query.Count(&totalRows)

	var reglements []models.Reglement
	if err := query.Order("created_at desc").Scopes(Paginate(c)).Find(&reglements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des reglements"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, reglements, totalRows))
}

func CancelReglementHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}
	var input struct {
		Motif string `json:"motif" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reg, err := Eng.CancelReglement(currentUserID(c), uint(id), input.Motif)
	if err != nil {
		respondError(c, err)
		return
	}
	GlobalHub.NotifyWorkflow(models.TypeReglement, reg.ID, models.StatutAnnule, input.Motif)
	c.JSON(http.StatusOK, reg)
}

func RejectReglementHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}
	var input struct {
		Motif       string `json:"motif" binding:"required"`
		CibleRenvoi string `json:"cibleRenvoi" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reg, err := Eng.RejectReglement(currentUserID(c), uint(id), input.Motif, input.CibleRenvoi)
	if err != nil {
		respondError(c, err)
		return
	}
	GlobalHub.NotifyWorkflow(models.TypeReglement, reg.ID, models.StatutRejete, input.Motif)
	c.JSON(http.StatusOK, reg)
}
