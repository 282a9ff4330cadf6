package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/engine"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
)

// MarcheInput opens a procurement record on a dossier.
type MarcheInput struct {
	DossierID uint    `json:"dossierId" binding:"required"`
	Montant   float64 `json:"montant" binding:"required"`
	Objet     string  `json:"objet" binding:"required"`
	Procedure string  `json:"procedure" binding:"required"`
	Exercice  int     `json:"exercice"`
}

func CreateMarcheHandler(c *gin.Context) {
	var input MarcheInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	marche, err := Eng.CreateMarche(currentUserID(c), engine.MarcheInput{
		DossierID: input.DossierID,
		Montant:   input.Montant,
		Objet:     input.Objet,
		Procedure: input.Procedure,
		Exercice:  input.Exercice,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, marche)
}

func ListMarchesHandler(c *gin.Context) {
	query := config.DB.Model(&models.Marche{})
	if statut := c.Query("statut"); statut != "" {
		query = query.Where("statut = ?", statut)
	}
	if procedure := c.Query("procedure"); procedure != "" {
		query = query.Where("procedure = ?", procedure)
	}

	var totalRows int64
	query.Count(&totalRows)

	var marches []models.Marche
	if err := query.Order("created_at desc").Scopes(Paginate(c)).Find(&marches).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des marches"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, marches, totalRows))
}

func GetMarcheHandler(c *gin.Context) {
	var marche models.Marche
	if err := config.DB.Preload("Soumissionnaires").First(&marche, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Marche introuvable"})
		return
	}
	c.JSON(http.StatusOK, marche)
}

// ChangeProcedureHandler re-fixes the procedure of a draft record.
func ChangeProcedureHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}
	var input struct {
		Procedure string `json:"procedure" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	marche, err := Eng.ChangeProcedure(currentUserID(c), uint(id), input.Procedure)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, marche)
}

// RecommendedProcedureHandler answers "what procedure does this amount call
// for" from the threshold table.
func RecommendedProcedureHandler(c *gin.Context) {
	montant, err := strconv.ParseFloat(c.Query("montant"), 64)
	if err != nil || montant <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parametre 'montant' invalide"})
		return
	}
	band := engine.RecommendedProcedure(engine.DefaultBareme(), montant)
	if band == nil {
		c.JSON(http.StatusOK, gin.H{"montant": montant, "procedure": nil})
		return
	}
	body := gin.H{
		"montant":   montant,
		"procedure": band.Procedure,
		"seuilMin":  band.Min,
	}
	// The last band is open-ended; +Inf has no JSON encoding.
	if !math.IsInf(band.Max, 1) {
		body["seuilMax"] = band.Max
	}
	c.JSON(http.StatusOK, body)
}

// SoumissionnaireInput registers a bidder on a published call.
type SoumissionnaireInput struct {
	Nom   string  `json:"nom" binding:"required"`
	Offre float64 `json:"offre"`
}

func AddSoumissionnaireHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}
	var input SoumissionnaireInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bidder, err := Eng.AddSoumissionnaire(currentUserID(c), uint(id), input.Nom, input.Offre)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bidder)
}

// ScoreInput records the evaluation of one bidder.
type ScoreInput struct {
	SoumissionnaireID uint     `json:"soumissionnaireId" binding:"required"`
	NoteFinale        *float64 `json:"noteFinale"`
	Elimine           bool     `json:"elimine"`
	Qualifie          bool     `json:"qualifie"`
}

func ScoreSoumissionnaireHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return
	}
	var input ScoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bidder, err := Eng.ScoreSoumissionnaire(currentUserID(c), uint(id), engine.ScoreInput{
		SoumissionnaireID: input.SoumissionnaireID,
		NoteFinale:        input.NoteFinale,
		Elimine:           input.Elimine,
		Qualifie:          input.Qualifie,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bidder)
}
