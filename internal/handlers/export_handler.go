package handlers

import (
	"fmt"
	"math"
	"net/http"

	"github.com/divan/num2words"
	"github.com/gin-gonic/gin"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportExecutionHandler streams the budget execution table of an exercice as
// an xlsx workbook.
func ExportExecutionHandler(c *gin.Context) {
	query := config.DB.Model(&models.LigneBudgetaire{})
	exercice := c.Query("exercice")
	if exercice != "" {
		query = query.Where("exercice = ?", exercice)
	}
	var lignes []models.LigneBudgetaire
	if err := query.Order("code asc").Find(&lignes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec de lecture des lignes"})
		return
	}

	f := excelize.NewFile()
	sheetName := "Execution budgetaire"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Code", "Libelle", "Exercice", "Dotation initiale", "Dotation modifiee",
		"Engage", "Liquide", "Ordonnance", "Paye", "Disponible"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, l := range lignes {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), l.Code)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), l.Libelle)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), l.Exercice)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), l.DotationInitiale)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), l.DotationModifiee)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), l.TotalEngage)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), l.TotalLiquide)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), l.TotalOrdonnance)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), l.TotalPaye)
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), l.Disponible())
	}

	fileName := "execution_budgetaire.xlsx"
	if exercice != "" {
		fileName = "execution_budgetaire_" + exercice + ".xlsx"
	}
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec d'ecriture du fichier"})
	}
}

// montantEnLettres spells a FCFA amount out for the payment order form.
func montantEnLettres(montant float64) string {
	francs := int(montant)
	centimes := int(math.Round((montant - float64(francs)) * 100))
	words := num2words.Convert(francs)
	if centimes == 0 {
		return fmt.Sprintf("%s francs CFA", words)
	}
	return fmt.Sprintf("%s francs CFA %02d centimes", words, centimes)
}

// ExportOrdonnancementHandler produces the payment order form as an xlsx,
// amount in figures and in words.
func ExportOrdonnancementHandler(c *gin.Context) {
	var ord models.Ordonnancement
	if err := config.DB.Preload("Liquidation.Engagement").First(&ord, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ordonnancement introuvable"})
		return
	}

	f := excelize.NewFile()
	sheetName := "Mandat"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	rows := [][2]interface{}{
		{"Reference", ord.Reference},
		{"Exercice", ord.Exercice},
		{"Objet", ord.Objet},
		{"Beneficiaire", ord.Liquidation.Engagement.Beneficiaire},
		{"Engagement", ord.Liquidation.Engagement.Reference},
		{"Liquidation", ord.Liquidation.Reference},
		{"Montant", ord.Montant},
		{"Montant en lettres", montantEnLettres(ord.Montant)},
		{"Deja paye", ord.MontantPaye},
		{"Statut", ord.Statut},
	}
	for i, r := range rows {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", i+1), r[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", i+1), r[1])
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=mandat_"+ord.Reference+".xlsx")
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Echec d'ecriture du fichier"})
	}
}
