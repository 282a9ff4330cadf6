package models

import "gorm.io/gorm"

// JournalAudit is one append-only audit record. Old and new values are stored
// as JSON snapshots of the fields the transition touched.
type JournalAudit struct {
	gorm.Model
	TypeEntite string `json:"typeEntite" gorm:"not null;index"`
	EntiteID   uint   `json:"entiteId" gorm:"not null;index"`
	Action     string `json:"action" gorm:"not null"`
	AuteurID   uint   `json:"auteurId"`
	Avant      string `json:"avant" gorm:"type:text"`
	Apres      string `json:"apres" gorm:"type:text"`
	Metadata   string `json:"metadata" gorm:"type:text"`
}

// CompteurReference allocates the per-(type, month, year) sequence used to
// build document references. The unique index makes concurrent allocation
// collision-free: the row update serialises on the partition key.
type CompteurReference struct {
	gorm.Model
	TypeDoc  string `gorm:"uniqueIndex:idx_compteur_partition;not null"`
	Mois     int    `gorm:"uniqueIndex:idx_compteur_partition;not null"`
	Annee    int    `gorm:"uniqueIndex:idx_compteur_partition;not null"`
	Compteur int    `gorm:"not null;default:0"`
}
