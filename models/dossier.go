package models

import (
	"time"

	"gorm.io/gorm"
)

// Dossier groups one full expenditure chain instance, from commitment through
// settlement. It is created when the first engagement is validated and closes
// (statut solde) only when cumulative settlement equals the payment order.
type Dossier struct {
	gorm.Model
	Numero        string `json:"numero" gorm:"uniqueIndex"`
	Objet         string `json:"objet"`
	Exercice      int    `json:"exercice" gorm:"not null"`
	Statut        string `json:"statut" gorm:"default:'en_cours';index"`
	EtapeCourante string `json:"etapeCourante" gorm:"default:'engagement'"`

	// Mirrored amounts, maintained by the reconciliation engine only.
	MontantEstime     float64 `json:"montantEstime" gorm:"type:numeric(14,2);default:0"`
	MontantEngage     float64 `json:"montantEngage" gorm:"type:numeric(14,2);default:0"`
	MontantLiquide    float64 `json:"montantLiquide" gorm:"type:numeric(14,2);default:0"`
	MontantOrdonnance float64 `json:"montantOrdonnance" gorm:"type:numeric(14,2);default:0"`

	// Blocking is an administrative override, independent of the stage machine.
	MotifBlocage string     `json:"motifBlocage"`
	DateSolde    *time.Time `json:"dateSolde"`
	Version      int        `json:"version" gorm:"not null;default:0"`

	Engagements []Engagement `json:"engagements,omitempty" gorm:"foreignKey:DossierID"`
}
