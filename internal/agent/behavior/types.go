package behavior

// Status is the result of ticking a node. The numeric values are part of the
// save format and must not be reordered.
type Status int

const (
	StatusFailure Status = iota
	StatusSuccess
	StatusRunning
	StatusIdle
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusRunning:
		return "RUNNING"
	case StatusIdle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// Resolved reports whether s is a terminal outcome.
func (s Status) Resolved() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Callback is the simulation hook behind Action and Conditional leaves.
// The engine always calls it with halting=false.
type Callback func(halting bool) Status

// Kind identifies the concrete node variant.
type Kind int

const (
	KindAction Kind = iota
	KindConditional
	KindBBPrecondition
	KindForceFailure
	KindForceSuccess
	KindInverter
	KindSequence
	KindSequenceStar
	KindFallback
	KindFallbackStar
	KindRepeat
	KindRepeatUntilSuccess
)

var kindNames = map[Kind]string{
	KindAction:             "Action",
	KindConditional:        "Condition",
	KindBBPrecondition:     "BB_Precondition",
	KindForceFailure:       "ForceFailure",
	KindForceSuccess:       "ForceSuccess",
	KindInverter:           "Inverter",
	KindSequence:           "Sequence",
	KindSequenceStar:       "SequenceStar",
	KindFallback:           "Fallback",
	KindFallbackStar:       "FallbackStar",
	KindRepeat:             "Repeat",
	KindRepeatUntilSuccess: "RetryUntilSuccesful",
}

// String returns the element name used by tree definition files.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Node is one unit of a behavior tree. The set of implementations is closed;
// build nodes with the New* constructors or the Add* builder methods.
type Node interface {
	Name() string
	Kind() Kind
	Status() Status
	Children() []Node

	// Tick advances the node by one driver cycle.
	Tick() Status
	// Halt returns the node and every descendant to IDLE without calling
	// any leaf callback.
	Halt()

	Serialize() Record
	// Deserialize restores state captured by Serialize. Structural
	// differences are reported, never fatal.
	Deserialize(in Record) []Mismatch

	// Builder methods append a new child and return it. Leaf kinds return nil.
	AddSequence(name string) Node
	AddSequenceStar(name string) Node
	AddFallback(name string) Node
	AddFallbackStar(name string) Node
	AddInverter(name string) Node
	AddForceFailure() Node
	AddForceSuccess() Node
	AddRepeat(name string, num int) Node
	AddRepeatUntilSuccess(name string, num int) Node
	AddBBPrecondition(name, key, expected string) Node
	AddConditional(name string, cb Callback) Node
	AddAction(name string, cb Callback) Node
	// AddTree grafts an already built subtree. Ignored by leaf kinds.
	AddTree(tree Node)

	core() *base
}
