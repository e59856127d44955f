// Package symbols defines SymbolIndex: the opaque collaborator that
// resolves globals, statics, memory regions and function ranges for a
// loaded program image. DWARF/ELF parsing is explicitly out of scope for
// this module (spec §1 Non-goals: "DWARF/ELF parsing"); every concrete
// symbol source is expected to live outside this module and satisfy this
// interface (spec §1: "the spec assumes an opaque SymbolIndex yielding
// globals, statics, memory regions, and function ranges").
package symbols

// Global describes one file-scope (non-static-local) variable.
type Global struct {
	Name    string
	Address uint64
	Type    string
	Size    uint64
}

// Static describes one function- or translation-unit-scope static
// variable, distinct from Global because the "globals"/"statics" DAP
// scopes are surfaced to the client separately (spec §4.5 "Listing
// globals/statics").
type Static struct {
	Name    string
	Address uint64
	Type    string
	Size    uint64
	Unit    string
}

// MemoryRegion describes one addressable region of the target's memory
// map (RAM, flash, peripheral-mapped, ...), used to validate or describe
// the ranges MemoryBridge and RttEngine read/write.
type MemoryRegion struct {
	Name       string
	Start      uint64
	Length     uint64
	Writable   bool
	Executable bool
}

// FunctionRange describes one function's address extent, used by
// "load-function-symbols" (spec §6) to answer the editor's request for a
// JSON dump of function symbols.
type FunctionRange struct {
	Name  string
	Start uint64
	End   uint64
	File  string
	Line  int
}

// Index is the seam a concrete DWARF/ELF (or vendor SVD-backed) symbol
// source implements. This module never implements Index itself.
type Index interface {
	Globals() ([]Global, error)
	Statics() ([]Static, error)
	MemoryRegions() ([]MemoryRegion, error)
	FunctionRanges() ([]FunctionRange, error)
}
