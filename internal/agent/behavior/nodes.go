package behavior

// Action runs a simulation callback and reports its result. Halting an
// Action only resets its status; the callback is never called with
// halting=true.
type Action struct {
	base
	callback Callback
}

func NewAction(name string, bb *Blackboard, cb Callback) *Action {
	return &Action{base: newBase(name, KindAction, bb), callback: cb}
}

func (n *Action) Tick() Status {
	return n.resolve(n.callback(false))
}

// Conditional behaves exactly like Action; it exists so tree definitions
// can tell checks apart from durable work.
type Conditional struct {
	base
	callback Callback
}

func NewConditional(name string, bb *Blackboard, cb Callback) *Conditional {
	return &Conditional{base: newBase(name, KindConditional, bb), callback: cb}
}

func (n *Conditional) Tick() Status {
	return n.resolve(n.callback(false))
}

// BBPrecondition gates its first child on a blackboard value. An expected
// value of "*" matches anything, including a missing key.
type BBPrecondition struct {
	base
	key      string
	expected string
}

// Wildcard is the expected value that matches any blackboard content.
const Wildcard = "*"

func NewBBPrecondition(name, key, expected string, bb *Blackboard) *BBPrecondition {
	return &BBPrecondition{base: newBase(name, KindBBPrecondition, bb), key: key, expected: expected}
}

func (n *BBPrecondition) Key() string      { return n.key }
func (n *BBPrecondition) Expected() string { return n.expected }

// Tick does not halt a running child when the precondition stops matching.
func (n *BBPrecondition) Tick() Status {
	if n.expected == Wildcard || n.bb.GetString(n.key) == n.expected {
		if child := n.firstChild(); child != nil {
			return n.resolve(child.Tick())
		}
	}
	return n.resolve(StatusFailure)
}

// ForceFailure turns every resolved child result into FAILURE.
type ForceFailure struct {
	base
}

func NewForceFailure(bb *Blackboard) *ForceFailure {
	return &ForceFailure{base: newBase("ForceFailure", KindForceFailure, bb)}
}

func (n *ForceFailure) Tick() Status {
	if child := n.firstChild(); child != nil {
		if child.Tick() == StatusRunning {
			return n.resolve(StatusRunning)
		}
	}
	return n.resolve(StatusFailure)
}

// ForceSuccess turns every resolved child result into SUCCESS.
type ForceSuccess struct {
	base
}

func NewForceSuccess(bb *Blackboard) *ForceSuccess {
	return &ForceSuccess{base: newBase("ForceSuccess", KindForceSuccess, bb)}
}

func (n *ForceSuccess) Tick() Status {
	if child := n.firstChild(); child != nil {
		if child.Tick() == StatusRunning {
			return n.resolve(StatusRunning)
		}
	}
	return n.resolve(StatusSuccess)
}

// Inverter swaps SUCCESS and FAILURE of its first child.
type Inverter struct {
	base
}

func NewInverter(name string, bb *Blackboard) *Inverter {
	return &Inverter{base: newBase(name, KindInverter, bb)}
}

func (n *Inverter) Tick() Status {
	child := n.firstChild()
	if child == nil {
		return n.resolve(StatusFailure)
	}
	switch child.Tick() {
	case StatusRunning:
		return n.resolve(StatusRunning)
	case StatusSuccess:
		return n.resolve(StatusFailure)
	default:
		return n.resolve(StatusSuccess)
	}
}
