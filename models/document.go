package models

// DocumentChaine is implemented by every document the workflow engine can
// drive: the four chain documents plus the procurement record.
type DocumentChaine interface {
	DocID() uint
	TypeDoc() string
	// Flux exposes the shared workflow fields for reading and staging
	// updates; persistence still goes through the engine's versioned write.
	Flux() *Circulation
}

func (e *Engagement) DocID() uint        { return e.ID }
func (e *Engagement) TypeDoc() string    { return TypeEngagement }
func (e *Engagement) Flux() *Circulation { return &e.Circulation }

func (l *Liquidation) DocID() uint        { return l.ID }
func (l *Liquidation) TypeDoc() string    { return TypeLiquidation }
func (l *Liquidation) Flux() *Circulation { return &l.Circulation }

func (o *Ordonnancement) DocID() uint        { return o.ID }
func (o *Ordonnancement) TypeDoc() string    { return TypeOrdonnancement }
func (o *Ordonnancement) Flux() *Circulation { return &o.Circulation }

func (r *Reglement) DocID() uint        { return r.ID }
func (r *Reglement) TypeDoc() string    { return TypeReglement }
func (r *Reglement) Flux() *Circulation { return &r.Circulation }

func (m *Marche) DocID() uint        { return m.ID }
func (m *Marche) TypeDoc() string    { return TypeMarche }
func (m *Marche) Flux() *Circulation { return &m.Circulation }
