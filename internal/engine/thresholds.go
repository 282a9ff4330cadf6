package engine

import (
	"fmt"
	"math"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
)

// Seuil is one band of the procurement threshold table: amounts in
// [Min, Max) require at least the associated procedure. Bands are half-open
// so an amount sitting exactly on a boundary belongs to the upper band.
type Seuil struct {
	Code      string  `json:"code"`
	Libelle   string  `json:"libelle"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Procedure string  `json:"procedure"`
}

// DefaultBareme is the regulation threshold table, in FCFA.
func DefaultBareme() []Seuil {
	return []Seuil{
		{Code: "S1", Libelle: "Gre a gre", Min: 0, Max: 10_000_000, Procedure: models.ProcedureGreAGre},
		{Code: "S2", Libelle: "Demande de cotation", Min: 10_000_000, Max: 30_000_000, Procedure: models.ProcedureDemandeCotation},
		{Code: "S3", Libelle: "Appel d'offres restreint", Min: 30_000_000, Max: 100_000_000, Procedure: models.ProcedureAppelOffresRestreint},
		{Code: "S4", Libelle: "Appel d'offres ouvert", Min: 100_000_000, Max: math.Inf(1), Procedure: models.ProcedureAppelOffresOuvert},
	}
}

// proceduresExemptes are coherent with any amount: sole-source negotiation
// and intellectual services follow their own authorisation track.
var proceduresExemptes = map[string]bool{
	models.ProcedureEntenteDirecte:           true,
	models.ProcedurePrestationIntellectuelle: true,
}

// ValidateBareme checks the structural invariant of a threshold table:
// contiguous bands, first Min zero, last Max infinite.
func ValidateBareme(bareme []Seuil) error {
	if len(bareme) == 0 {
		return fmt.Errorf("bareme vide")
	}
	if bareme[0].Min != 0 {
		return fmt.Errorf("la premiere tranche doit commencer a 0")
	}
	if !math.IsInf(bareme[len(bareme)-1].Max, 1) {
		return fmt.Errorf("la derniere tranche doit etre ouverte")
	}
	for i := 0; i < len(bareme)-1; i++ {
		if bareme[i].Max != bareme[i+1].Min {
			return fmt.Errorf("tranches non contigues entre %s et %s", bareme[i].Code, bareme[i+1].Code)
		}
	}
	return nil
}

// RecommendedProcedure returns the band containing montant, nil when the
// amount is unknown (zero or negative).
func RecommendedProcedure(bareme []Seuil, montant float64) *Seuil {
	if montant <= 0 {
		return nil
	}
	for i := range bareme {
		if montant >= bareme[i].Min && montant < bareme[i].Max {
			return &bareme[i]
		}
	}
	return nil
}

// IsCoherent reports whether the chosen procedure is coherent with the
// amount, plus the recommended band when there is one. Unknown amounts and
// exempt procedures are always coherent.
func IsCoherent(bareme []Seuil, montant float64, procedure string) (bool, *Seuil) {
	recommande := RecommendedProcedure(bareme, montant)
	if recommande == nil {
		return true, nil
	}
	if proceduresExemptes[procedure] {
		return true, recommande
	}
	return procedure == recommande.Procedure, recommande
}

// checkProcedureCoherence is the guard form: it converts an incoherence into
// the engine error carrying the recommended procedure.
func checkProcedureCoherence(montant float64, procedure string) error {
	if procedure == "" {
		return errMissingField("procedure")
	}
	ok, recommande := IsCoherent(DefaultBareme(), montant, procedure)
	if !ok {
		return errIncoherentProcedure(procedure, recommande.Procedure)
	}
	return nil
}
