package behavior

// base carries the state shared by every node kind: identity, last status,
// the resumption cursor and the exclusively owned children.
type base struct {
	name     string
	kind     Kind
	status   Status
	index    int
	leaf     bool
	children []Node
	bb       *Blackboard
}

func newBase(name string, kind Kind, bb *Blackboard) base {
	return base{
		name:   name,
		kind:   kind,
		status: StatusIdle,
		leaf:   kind == KindAction || kind == KindConditional,
		bb:     bb,
	}
}

func (b *base) core() *base      { return b }
func (b *base) Name() string     { return b.name }
func (b *base) Kind() Kind       { return b.kind }
func (b *base) Status() Status   { return b.status }
func (b *base) Children() []Node { return b.children }

// Index returns the resumption cursor. It is only meaningful while the node
// is RUNNING.
func (b *base) Index() int { return b.index }

func (b *base) Halt() {
	b.index = 0
	b.haltChildren()
	b.status = StatusIdle
}

func (b *base) haltChildren() {
	for _, child := range b.children {
		child.Halt()
	}
}

// resolve records a terminal or running result and returns it.
func (b *base) resolve(s Status) Status {
	b.status = s
	return s
}

func (b *base) firstChild() Node {
	if len(b.children) == 0 {
		return nil
	}
	return b.children[0]
}

func (b *base) attach(n Node) Node {
	if b.leaf {
		return nil
	}
	b.children = append(b.children, n)
	return n
}

func (b *base) AddSequence(name string) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewSequence(name, b.bb))
}

func (b *base) AddSequenceStar(name string) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewSequenceStar(name, b.bb, true))
}

func (b *base) AddFallback(name string) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewFallback(name, b.bb))
}

func (b *base) AddFallbackStar(name string) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewFallbackStar(name, b.bb))
}

func (b *base) AddInverter(name string) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewInverter(name, b.bb))
}

func (b *base) AddForceFailure() Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewForceFailure(b.bb))
}

func (b *base) AddForceSuccess() Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewForceSuccess(b.bb))
}

func (b *base) AddRepeat(name string, num int) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewRepeat(name, num, b.bb))
}

func (b *base) AddRepeatUntilSuccess(name string, num int) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewRepeatUntilSuccess(name, num, b.bb))
}

func (b *base) AddBBPrecondition(name, key, expected string) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewBBPrecondition(name, key, expected, b.bb))
}

func (b *base) AddConditional(name string, cb Callback) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewConditional(name, b.bb, cb))
}

func (b *base) AddAction(name string, cb Callback) Node {
	if b.leaf {
		return nil
	}
	return b.attach(NewAction(name, b.bb, cb))
}

func (b *base) AddTree(tree Node) {
	if tree == nil {
		return
	}
	b.attach(tree)
}

func (b *base) Serialize() Record {
	return b.record()
}

func (b *base) Deserialize(in Record) []Mismatch {
	return b.restore(in)
}
