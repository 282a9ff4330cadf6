package models

// Document workflow statuses. Every chain document moves through a subset of
// these; the allowed moves live in the engine's transition tables.
const (
	StatutBrouillon     = "brouillon"
	StatutSoumis        = "soumis"
	StatutVerifie       = "verifie"
	StatutEnAttenteVisa = "en_attente_visa"
	StatutValide        = "valide"
	StatutRejete        = "rejete"
	StatutDiffere       = "differe"

	// Settlements are recorded, then either stand, get cancelled or rejected.
	StatutEnregistre = "enregistre"
	StatutAnnule     = "annule"

	// Procurement record sub-states.
	StatutPublie   = "publie"
	StatutCloture  = "cloture"
	StatutEvalue   = "evalue"
	StatutAttribue = "attribue"
	StatutApprouve = "approuve"
	StatutSigne    = "signe"
)

// Dossier global statuses.
const (
	DossierEnCours      = "en_cours"
	DossierBloque       = "bloque"
	DossierEnCorrection = "en_correction"
	DossierSolde        = "solde"
	DossierAnnule       = "annule"
)

// Document type codes, also used as the prefix of generated references.
const (
	TypeEngagement     = "engagement"
	TypeLiquidation    = "liquidation"
	TypeOrdonnancement = "ordonnancement"
	TypeReglement      = "reglement"
	TypeMarche         = "marche"
)

// Return targets a rejected document may send the dossier back to.
// Kept as a closed enum per document type, never parsed out of free text.
const (
	CibleEngagement      = "engagement"
	CibleLiquidation     = "liquidation"
	CibleOrdonnancement  = "ordonnancement"
	CibleCreationDossier = "creation_dossier"
)

// CiblesRenvoiParType enumerates which upstream stages each document type is
// allowed to name as a return target on rejection.
var CiblesRenvoiParType = map[string][]string{
	TypeEngagement:     {CibleCreationDossier},
	TypeLiquidation:    {CibleEngagement, CibleCreationDossier},
	TypeOrdonnancement: {CibleLiquidation, CibleEngagement, CibleCreationDossier},
	TypeReglement:      {CibleOrdonnancement, CibleLiquidation, CibleEngagement, CibleCreationDossier},
}
