package symbols

// Empty is an Index with no symbols. It is not a vendor/DWARF
// implementation: it exists so Session and its tests have something to
// wire against when no SymbolIndex is configured for a given launch.
type Empty struct{}

func (Empty) Globals() ([]Global, error)               { return nil, nil }
func (Empty) Statics() ([]Static, error)                { return nil, nil }
func (Empty) MemoryRegions() ([]MemoryRegion, error)    { return nil, nil }
func (Empty) FunctionRanges() ([]FunctionRange, error) { return nil, nil }
