package engine

import (
	"fmt"
	"time"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reference prefixes per document type.
var prefixesReference = map[string]string{
	models.TypeEngagement:     "ENG",
	models.TypeLiquidation:    "LIQ",
	models.TypeOrdonnancement: "ORD",
	models.TypeReglement:      "REG",
	models.TypeMarche:         "MAR",
	"dossier":                 "DOS",
}

const maxSequenceRetries = 3

// AllocateReference returns the next reference for (typeDoc, month, year),
// formatted as PREFIX-MMYY-NNNN. The partition row is seeded with a
// conflict-ignoring insert: losing the creation race to a concurrent
// transaction leaves the enclosing transaction intact, unlike a raw insert
// whose unique-index violation would abort it on Postgres. The increment
// itself is an optimistic CAS on the counter value.
func AllocateReference(tx *gorm.DB, typeDoc string, now time.Time) (string, error) {
	prefix, ok := prefixesReference[typeDoc]
	if !ok {
		return "", fmt.Errorf("type de document sans prefixe: %s", typeDoc)
	}
	mois := int(now.Month())
	annee := now.Year()

	seed := models.CompteurReference{TypeDoc: typeDoc, Mois: mois, Annee: annee, Compteur: 0}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		var seq models.CompteurReference
		if err := tx.Where("type_doc = ? AND mois = ? AND annee = ?", typeDoc, mois, annee).First(&seq).Error; err != nil {
			return "", err
		}
		next := seq.Compteur + 1
		res := tx.Model(&seq).Where("compteur = ?", seq.Compteur).Update("compteur", next)
		if res.Error != nil {
			return "", res.Error
		}
		if res.RowsAffected == 1 {
			return formatReference(prefix, mois, annee, next), nil
		}
	}
	return "", errVersionConflict("compteur_"+typeDoc, 0)
}

func formatReference(prefix string, mois, annee, n int) string {
	return fmt.Sprintf("%s-%02d%02d-%04d", prefix, mois, annee%100, n)
}
