package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
)

func ListDossiersHandler(c *gin.Context) {
	query := config.DB.Model(&models.Dossier{})
	if statut := c.Query("statut"); statut != "" {
		query = query.Where("statut = ?", statut)
	}
	if exercice := c.Query("exercice"); exercice != "" {
		query = query.Where("exercice = ?", exercice)
	}

	var totalRows int64
	query.Count(&totalRows)

	var dossiers []models.Dossier
	if err := query.Order("created_at desc").Scopes(Paginate(c)).Find(&dossiers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des dossiers"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, dossiers, totalRows))
}

// GetDossierHandler returns one dossier with its full document chain.
func GetDossierHandler(c *gin.Context) {
	var dossier models.Dossier
	if err := config.DB.First(&dossier, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dossier introuvable"})
		return
	}

	var engagements []models.Engagement
	config.DB.Where("dossier_id = ?", dossier.ID).Order("id asc").Find(&engagements)
	var liquidations []models.Liquidation
	config.DB.Where("dossier_id = ?", dossier.ID).Order("id asc").Find(&liquidations)
	var ordonnancements []models.Ordonnancement
	config.DB.Where("dossier_id = ?", dossier.ID).Order("id asc").Find(&ordonnancements)
	var reglements []models.Reglement
	config.DB.Where("dossier_id = ?", dossier.ID).Order("id asc").Find(&reglements)
	var marches []models.Marche
	config.DB.Where("dossier_id = ?", dossier.ID).Order("id asc").Find(&marches)

	c.JSON(http.StatusOK, gin.H{
		"dossier":         dossier,
		"engagements":     engagements,
		"liquidations":    liquidations,
		"ordonnancements": ordonnancements,
		"reglements":      reglements,
		"marches":         marches,
	})
}

// BlockDossierHandler applies the administrative hold.
func BlockDossierHandler(c *gin.Context) {
	var dossier models.Dossier
	if err := config.DB.First(&dossier, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dossier introuvable"})
		return
	}
	var input struct {
		Motif string `json:"motif" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := Eng.BlockDossier(currentUserID(c), dossier.ID, input.Motif); err != nil {
		respondError(c, err)
		return
	}
	GlobalHub.NotifyWorkflow("dossier", dossier.ID, "bloque", input.Motif)
	c.JSON(http.StatusOK, gin.H{"message": "Dossier bloque"})
}

// UnblockDossierHandler lifts the administrative hold.
func UnblockDossierHandler(c *gin.Context) {
	var dossier models.Dossier
	if err := config.DB.First(&dossier, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dossier introuvable"})
		return
	}
	if err := Eng.UnblockDossier(currentUserID(c), dossier.ID); err != nil {
		respondError(c, err)
		return
	}
	GlobalHub.NotifyWorkflow("dossier", dossier.ID, "debloque", "")
	c.JSON(http.StatusOK, gin.H{"message": "Dossier debloque"})
}

// ExportDossiersCSVHandler streams the dossier archive as CSV, one row per
// dossier with the mirrored amounts.
func ExportDossiersCSVHandler(c *gin.Context) {
	query := config.DB.Model(&models.Dossier{})
	if exercice := c.Query("exercice"); exercice != "" {
		query = query.Where("exercice = ?", exercice)
	}
	if statut := c.Query("statut"); statut != "" {
		query = query.Where("statut = ?", statut)
	}
	var dossiers []models.Dossier
	if err := query.Order("numero asc").Find(&dossiers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des dossiers"})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=dossiers.csv")
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Numero", "Objet", "Exercice", "Statut", "Etape",
		"Montant estime", "Engage", "Liquide", "Ordonnance", "Date solde"})
	for _, d := range dossiers {
		dateSolde := ""
		if d.DateSolde != nil {
			dateSolde = d.DateSolde.Format("2006-01-02")
		}
		_ = w.Write([]string{
			d.Numero, d.Objet, fmt.Sprintf("%d", d.Exercice), d.Statut, d.EtapeCourante,
			fmt.Sprintf("%.2f", d.MontantEstime),
			fmt.Sprintf("%.2f", d.MontantEngage),
			fmt.Sprintf("%.2f", d.MontantLiquide),
			fmt.Sprintf("%.2f", d.MontantOrdonnance),
			dateSolde,
		})
	}
	w.Flush()
}

// DossierJournalHandler returns the audit trail of every document attached to
// the dossier, newest first.
func DossierJournalHandler(c *gin.Context) {
	var dossier models.Dossier
	if err := config.DB.First(&dossier, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dossier introuvable"})
		return
	}

	type ref struct {
		TypeDoc string
		IDs     []uint
	}
	refs := []ref{}
	collect := func(typeDoc string, model any) {
		var ids []uint
		config.DB.Model(model).Where("dossier_id = ?", dossier.ID).Pluck("id", &ids)
		if len(ids) > 0 {
			refs = append(refs, ref{TypeDoc: typeDoc, IDs: ids})
		}
	}
	collect(models.TypeEngagement, &models.Engagement{})
	collect(models.TypeLiquidation, &models.Liquidation{})
	collect(models.TypeOrdonnancement, &models.Ordonnancement{})
	collect(models.TypeReglement, &models.Reglement{})
	collect(models.TypeMarche, &models.Marche{})

	query := config.DB.Model(&models.JournalAudit{}).Where("type_entite = ? AND entite_id = ?", "dossier", dossier.ID)
	for _, r := range refs {
		query = query.Or("type_entite = ? AND entite_id IN ?", r.TypeDoc, r.IDs)
	}
	var journal []models.JournalAudit
	if err := query.Order("created_at desc").Find(&journal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture du journal"})
		return
	}
	c.JSON(http.StatusOK, journal)
}
