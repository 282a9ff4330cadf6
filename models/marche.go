package models

import "gorm.io/gorm"

// Procurement procedure codes. The first four are bound to threshold bands;
// the last two are exempt from threshold coherence (sole-source negotiation
// and intellectual services follow their own authorisation track).
const (
	ProcedureGreAGre                  = "gre_a_gre"
	ProcedureDemandeCotation          = "demande_cotation"
	ProcedureAppelOffresRestreint     = "appel_offres_restreint"
	ProcedureAppelOffresOuvert        = "appel_offres_ouvert"
	ProcedureEntenteDirecte           = "entente_directe"
	ProcedurePrestationIntellectuelle = "prestation_intellectuelle"
)

// Marche is the procurement record attached to a dossier. Its sub-workflow
// (publication through signature) runs on the same transition machinery as
// the chain documents.
type Marche struct {
	gorm.Model
	Circulation
	DossierID             uint    `json:"dossierId" gorm:"not null;index"`
	Dossier               Dossier `json:"dossier,omitempty" gorm:"foreignKey:DossierID"`
	Procedure             string  `json:"procedure"`
	ReferenceContratSigne string  `json:"referenceContratSigne"`
	AttributaireID        *uint   `json:"attributaireId"`

	Soumissionnaires []Soumissionnaire `json:"soumissionnaires,omitempty" gorm:"foreignKey:MarcheID"`
}

// Soumissionnaire is a bidder on a procurement record.
type Soumissionnaire struct {
	gorm.Model
	MarcheID   uint     `json:"marcheId" gorm:"not null;index"`
	Nom        string   `json:"nom" gorm:"not null"`
	Offre      float64  `json:"offre" gorm:"type:numeric(14,2)"`
	NoteFinale *float64 `json:"noteFinale" gorm:"type:numeric(5,2)"`
	Elimine    bool     `json:"elimine" gorm:"default:false"`
	Qualifie   bool     `json:"qualifie" gorm:"default:false"`
}
