package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// PiecesJointes stores the opaque attachment references of a document as a
// JSON array. The core never inspects attachment contents.
type PiecesJointes []string

// Value serialises the paths for storage.
func (p PiecesJointes) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan reads the stored JSON back into the slice.
func (p *PiecesJointes) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	default:
		return errors.New("unsupported type for PiecesJointes")
	}
}

// Circulation carries the workflow fields shared by every chain document:
// reference, amount, status, lock flag and the structured rejection/deferral
// metadata. Rejection reason and return target are first-class columns, never
// recovered from free text.
type Circulation struct {
	Reference  string  `json:"reference" gorm:"uniqueIndex;not null"`
	Exercice   int     `json:"exercice" gorm:"not null"`
	Montant    float64 `json:"montant" gorm:"type:numeric(14,2);not null"`
	Objet      string  `json:"objet"`
	Statut     string  `json:"statut" gorm:"default:'brouillon';index"`
	Verrouille bool    `json:"verrouille" gorm:"default:false"`

	MotifRejet       string     `json:"motifRejet"`
	CibleRenvoi      string     `json:"cibleRenvoi"`
	MotifReport      string     `json:"motifReport"`
	ConditionReprise string     `json:"conditionReprise"`
	DateReprise      *time.Time `json:"dateReprise"`

	Pieces  PiecesJointes `json:"pieces" gorm:"type:jsonb"`
	Version int           `json:"version" gorm:"not null;default:0"`
}

// Engagement reserves budget against a LigneBudgetaire. It is the head of the
// chain; the owning dossier is attached when the engagement is validated.
type Engagement struct {
	gorm.Model
	Circulation
	LigneID       uint            `json:"ligneId" gorm:"not null;index"`
	Ligne         LigneBudgetaire `json:"ligne,omitempty" gorm:"foreignKey:LigneID"`
	DossierID     *uint           `json:"dossierId" gorm:"index"`
	Beneficiaire  string          `json:"beneficiaire"`
	MontantDegage float64         `json:"montantDegage" gorm:"type:numeric(14,2);default:0"`
}

// MontantEffectif is the consumption the engagement still exerts on its line
// after partial de-commitments.
func (e *Engagement) MontantEffectif() float64 {
	return e.Montant - e.MontantDegage
}

// Liquidation certifies delivery against a validated engagement and fixes the
// amount owed.
type Liquidation struct {
	gorm.Model
	Circulation
	EngagementID uint       `json:"engagementId" gorm:"not null;index"`
	Engagement   Engagement `json:"engagement,omitempty" gorm:"foreignKey:EngagementID"`
	DossierID    uint       `json:"dossierId" gorm:"not null;index"`
	DateService  *time.Time `json:"dateService"`
}

// Ordonnancement authorises payment of a validated liquidation. MontantPaye
// accumulates partial settlements; the reconciliation engine owns it.
type Ordonnancement struct {
	gorm.Model
	Circulation
	LiquidationID uint        `json:"liquidationId" gorm:"not null;index"`
	Liquidation   Liquidation `json:"liquidation,omitempty" gorm:"foreignKey:LiquidationID"`
	DossierID     uint        `json:"dossierId" gorm:"not null;index"`
	MontantPaye   float64     `json:"montantPaye" gorm:"type:numeric(14,2);default:0"`
}

// Reglement is an actual, possibly partial, payment against an
// ordonnancement.
type Reglement struct {
	gorm.Model
	Circulation
	OrdonnancementID uint           `json:"ordonnancementId" gorm:"not null;index"`
	Ordonnancement   Ordonnancement `json:"ordonnancement,omitempty" gorm:"foreignKey:OrdonnancementID"`
	DossierID        uint           `json:"dossierId" gorm:"not null;index"`
	ModePaiement     string         `json:"modePaiement"`
	DatePaiement     *time.Time     `json:"datePaiement"`
}
