package models

import "gorm.io/gorm"

// LigneBudgetaire is a budget allotment against which commitments are drawn.
// The Total* aggregates are derived values: only the reconciliation engine
// may write them, everything else treats them as read-only.
type LigneBudgetaire struct {
	gorm.Model
	Code             string  `json:"code" gorm:"uniqueIndex:idx_ligne_code_exercice;not null"`
	Libelle          string  `json:"libelle"`
	Exercice         int     `json:"exercice" gorm:"uniqueIndex:idx_ligne_code_exercice;not null"`
	DotationInitiale float64 `json:"dotationInitiale" gorm:"type:numeric(14,2);not null"`
	DotationModifiee float64 `json:"dotationModifiee" gorm:"type:numeric(14,2);not null"`
	TotalEngage      float64 `json:"totalEngage" gorm:"type:numeric(14,2);default:0"`
	TotalLiquide     float64 `json:"totalLiquide" gorm:"type:numeric(14,2);default:0"`
	TotalOrdonnance  float64 `json:"totalOrdonnance" gorm:"type:numeric(14,2);default:0"`
	TotalPaye        float64 `json:"totalPaye" gorm:"type:numeric(14,2);default:0"`
	Version          int     `json:"version" gorm:"not null;default:0"`
}

// Disponible is what remains committable on the line.
func (l *LigneBudgetaire) Disponible() float64 {
	return l.DotationModifiee - l.TotalEngage
}

// AjustementDotation records a justified change of the adjusted allotment.
// The adjustment itself is applied by the engine; this row is the trace.
type AjustementDotation struct {
	gorm.Model
	LigneID          uint            `json:"ligneId" gorm:"not null;index"`
	Ligne            LigneBudgetaire `json:"-" gorm:"foreignKey:LigneID"`
	AncienneDotation float64         `json:"ancienneDotation" gorm:"type:numeric(14,2)"`
	NouvelleDotation float64         `json:"nouvelleDotation" gorm:"type:numeric(14,2)"`
	Justification    string          `json:"justification" gorm:"not null"`
	AuteurID         uint            `json:"auteurId"`
}
