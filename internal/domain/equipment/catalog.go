package equipment

// CatalogEntry describes what the external catalog knows about a type: its
// cost and the condition tags it is considered appropriate for. The engine
// only reads this; content is owned by the surrounding game layer.
type CatalogEntry struct {
	Cost           float64  `json:"cost"`
	RecommendedFor []string `json:"recommended_for"`
}

// Catalog is the read-only lookup the engine consumes. The UI layer can swap
// in its full catalog; the simulation never defines content beyond the
// built-in defaults.
type Catalog interface {
	Lookup(t Type) (CatalogEntry, bool)
}

// MapCatalog is the trivial in-memory Catalog.
type MapCatalog map[Type]CatalogEntry

func (m MapCatalog) Lookup(t Type) (CatalogEntry, bool) {
	e, ok := m[t]
	return e, ok
}

// DefaultCatalog returns a workable built-in catalog so sessions run end to
// end without the full game content. Costs are play money, not prices.
func DefaultCatalog() MapCatalog {
	return MapCatalog{
		TypeVentilator:     {Cost: 500, RecommendedFor: []string{"respiratory_failure", "cardiac_arrest"}},
		TypeBiPAP:          {Cost: 250, RecommendedFor: []string{"respiratory_failure"}},
		TypeCPAP:           {Cost: 200, RecommendedFor: []string{"respiratory_failure"}},
		TypeHFNC:           {Cost: 150, RecommendedFor: []string{"respiratory_failure"}},
		TypeIVPump:         {Cost: 100, RecommendedFor: []string{"septic_shock", "anaphylaxis", "trauma", "cardiac_arrest"}},
		TypeSyringePump:    {Cost: 120, RecommendedFor: []string{"septic_shock", "anaphylaxis"}},
		TypeECMOVA:         {Cost: 2000, RecommendedFor: []string{"cardiac_arrest"}},
		TypeECMOVV:         {Cost: 1800, RecommendedFor: []string{"respiratory_failure"}},
		TypeIABP:           {Cost: 900, RecommendedFor: []string{"cardiac_arrest"}},
		TypeLUCAS:          {Cost: 400, RecommendedFor: []string{"cardiac_arrest"}},
		TypeCPB:            {Cost: 2500, RecommendedFor: []string{}},
		TypeDefibrillator:  {Cost: 300, RecommendedFor: []string{"cardiac_arrest"}},
		TypePacemaker:      {Cost: 600, RecommendedFor: []string{"cardiac_arrest", "stroke"}},
		TypeWarmingBlanket: {Cost: 80, RecommendedFor: []string{"trauma"}},
		TypeCoolingBlanket: {Cost: 80, RecommendedFor: []string{"septic_shock", "stroke"}},
		TypeTempManagement: {Cost: 350, RecommendedFor: []string{"cardiac_arrest", "stroke"}},
		TypeSwanGanz:       {Cost: 220, RecommendedFor: []string{"septic_shock"}},
		TypePiCCO:          {Cost: 200, RecommendedFor: []string{"septic_shock"}},
		TypeLiDCO:          {Cost: 200, RecommendedFor: []string{}},
		TypeArterialLine:   {Cost: 90, RecommendedFor: []string{"septic_shock", "trauma"}},
		TypePulseOximeter:  {Cost: 40, RecommendedFor: []string{"respiratory_failure", "anaphylaxis"}},
	}
}
