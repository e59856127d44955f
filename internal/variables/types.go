package variables

import "strconv"

// Container names which of the three lifetime buckets a VariableObject
// belongs to (spec §4.5 "Containers", §3 "Lifetimes").
type Container int

const (
	ContainerLocal Container = iota
	ContainerGlobal
	ContainerDynamic
)

// VariableObject mirrors one GDB var-object plus the bookkeeping the
// engine needs to answer DAP "variables" requests without re-asking GDB
// for facts that don't change between updates (spec §4.5, §3 "Variable
// reference").
type VariableObject struct {
	Handle         uint64
	ParentHandle   uint64
	Container      Container
	Scope          Scope
	Name           string // DAP-visible name, e.g. "count" or "[3]"
	GdbName        string // the -var-create generated object name
	EvaluateName   string // full expression GDB would accept to reach this value
	Value          string
	Type           string
	NumChild       int
	FrameRef       uint64 // the frame scope handle this object was created under, 0 for globals/statics
	FileID         string // global/static container key component in place of a thread id
	Dynamic        bool
	HasMore        bool
	DisplayHint    string
	Changed        bool
	childrenLoaded bool
	children       []uint64

	// RegisterNames is set only on the synthetic register-group pseudo
	// variables Engine.listRegisters creates (GdbName == ""); it lists
	// the real registers the group contains, expanded lazily on demand
	// (spec §4.5 "Registers").
	RegisterNames []string
}

// valueKey is VariableObject's to_value_key() per spec §4.8: parent
// handle, display name and the frame/file scoping all participate so
// that re-requesting the same logical variable (e.g. re-expanding a
// scope after a step) reuses the same handle instead of leaking a new
// one every time.
func (v *VariableObject) valueKey() string {
	scoping := v.FileID
	if scoping == "" {
		scoping = strconv.FormatUint(v.FrameRef, 10)
	}
	return strconv.FormatUint(v.ParentHandle, 10) + "/" + v.Name + "/" + scoping
}
