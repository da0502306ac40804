package store

// Invocation status values.
const (
	StatusOK    = "ok"
	StatusFault = "fault"
)

// Unit is a deployed protocol. Document holds the canonical JSON IR and
// Hash its content hash.
type Unit struct {
	Hash     string
	Protocol string
	Version  string
	Document string
	Seq      int64
}

// Invocation is one recorded method call against a unit. Faulted calls
// carry Error and an empty Result.
type Invocation struct {
	ID            string
	Seq           int64
	UnitHash      string
	Method        string
	Args          []string
	Ctx           map[string]string
	Status        string
	Result        string
	Error         string
	StateHash     string
	EngineVersion string
	IRVersion     string
}

// Event is one entry of an invocation's event log. Idx is its position
// within the invocation.
type Event struct {
	InvocationID string
	Idx          int
	Seq          int64
	Name         string
	Values       []string
}
