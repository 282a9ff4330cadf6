package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
)

// LigneInput creates a budget line.
type LigneInput struct {
	Code             string  `json:"code" binding:"required"`
	Libelle          string  `json:"libelle" binding:"required"`
	Exercice         int     `json:"exercice" binding:"required"`
	DotationInitiale float64 `json:"dotationInitiale" binding:"required"`
}

func CreateLigneHandler(c *gin.Context) {
	var input LigneInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.DotationInitiale < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dotation negative"})
		return
	}
	ligne := models.LigneBudgetaire{
		Code:             input.Code,
		Libelle:          input.Libelle,
		Exercice:         input.Exercice,
		DotationInitiale: input.DotationInitiale,
		DotationModifiee: input.DotationInitiale,
	}
	if err := config.DB.Create(&ligne).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Code deja utilise pour cet exercice"})
		return
	}
	c.JSON(http.StatusCreated, ligne)
}

func ListLignesHandler(c *gin.Context) {
	query := config.DB.Model(&models.LigneBudgetaire{})
	if exercice := c.Query("exercice"); exercice != "" {
		query = query.Where("exercice = ?", exercice)
	}

	var totalRows int64
	query.Count(&totalRows)

	var lignes []models.LigneBudgetaire
	if err := query.Order("code asc").Scopes(Paginate(c)).Find(&lignes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des lignes"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, lignes, totalRows))
}

// ligneExecution is one row of the execution report: the stored aggregates
// plus the derived availability.
type ligneExecution struct {
	models.LigneBudgetaire
	Disponible float64 `json:"disponible"`
}

func GetLigneHandler(c *gin.Context) {
	var ligne models.LigneBudgetaire
	if err := config.DB.First(&ligne, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ligne budgetaire introuvable"})
		return
	}
	c.JSON(http.StatusOK, ligneExecution{LigneBudgetaire: ligne, Disponible: ligne.Disponible()})
}

// GetDisponibleHandler is the commitment pre-check: what the line can absorb
// right now. Advisory only, the engine re-runs the check inside the
// consuming transaction.
func GetDisponibleHandler(c *gin.Context) {
	var ligne models.LigneBudgetaire
	if err := config.DB.First(&ligne, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ligne budgetaire introuvable"})
		return
	}
	disponible, err := Eng.AvailableToCommit(ligne.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ligneId": ligne.ID, "disponible": disponible})
}

// ExecutionReportHandler returns the execution table of an exercice: every
// line with its four consumption totals and the available remainder.
func ExecutionReportHandler(c *gin.Context) {
	query := config.DB.Model(&models.LigneBudgetaire{})
	if exercice := c.Query("exercice"); exercice != "" {
		query = query.Where("exercice = ?", exercice)
	}
	var lignes []models.LigneBudgetaire
	if err := query.Order("code asc").Find(&lignes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des lignes"})
		return
	}

	report := make([]ligneExecution, 0, len(lignes))
	var totalDotation, totalEngage, totalPaye float64
	for _, l := range lignes {
		report = append(report, ligneExecution{LigneBudgetaire: l, Disponible: l.Disponible()})
		totalDotation += l.DotationModifiee
		totalEngage += l.TotalEngage
		totalPaye += l.TotalPaye
	}
	c.JSON(http.StatusOK, gin.H{
		"lignes":        report,
		"totalDotation": totalDotation,
		"totalEngage":   totalEngage,
		"totalPaye":     totalPaye,
	})
}

// AdjustDotationHandler routes a justified allotment change through the
// engine so the audit trail and the conservation check apply.
func AdjustDotationHandler(c *gin.Context) {
	var ligne models.LigneBudgetaire
	if err := config.DB.First(&ligne, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ligne budgetaire introuvable"})
		return
	}
	var input struct {
		NouvelleDotation float64 `json:"nouvelleDotation" binding:"required"`
		Justification    string  `json:"justification" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := Eng.AdjustDotation(currentUserID(c), ligne.ID, input.NouvelleDotation, input.Justification)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ligneExecution{LigneBudgetaire: *updated, Disponible: updated.Disponible()})
}

// RecomputeLigneHandler forces a full recomputation of a line's aggregates
// from the chain documents. Safe to run at any time.
func RecomputeLigneHandler(c *gin.Context) {
	var ligne models.LigneBudgetaire
	if err := config.DB.First(&ligne, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ligne budgetaire introuvable"})
		return
	}
	updated, err := Eng.RecomputeLineAggregates(ligne.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ligneExecution{LigneBudgetaire: *updated, Disponible: updated.Disponible()})
}

// ListAjustementsHandler returns the adjustment history of a line.
func ListAjustementsHandler(c *gin.Context) {
	var ajustements []models.AjustementDotation
	if err := config.DB.Where("ligne_id = ?", c.Param("id")).
		Order("created_at desc").Find(&ajustements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des ajustements"})
		return
	}
	c.JSON(http.StatusOK, ajustements)
}
