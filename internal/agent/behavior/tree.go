package behavior

import (
	"context"
	"time"

	"example.com/colony-brain/internal/logging"
)

// SaveState is everything needed to resume a tree in a later process: the
// node records and the blackboard contents. Leaf callbacks are not part of
// it and must be bound again by whoever rebuilds the tree.
type SaveState struct {
	Tree       Record         `json:"BehaviorTreeState" yaml:"BehaviorTreeState"`
	Blackboard map[string]any `json:"BTBlackBoard" yaml:"BTBlackBoard"`
}

// Tree pairs a root node with the blackboard its nodes share. Calls to Tick,
// Halt, Save and Load must not overlap.
type Tree struct {
	Root       Node
	Blackboard *Blackboard

	log   logging.Logger
	ticks uint64
}

type TreeOption func(*Tree)

func WithLogger(l logging.Logger) TreeOption {
	return func(t *Tree) {
		if l != nil {
			t.log = l
		}
	}
}

func NewTree(root Node, bb *Blackboard, opts ...TreeOption) *Tree {
	if bb == nil {
		bb = NewBlackboard()
	}
	t := &Tree{Root: root, Blackboard: bb, log: logging.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tick runs one decision cycle. A tree without a root fails.
func (t *Tree) Tick() Status {
	if t.Root == nil {
		return StatusFailure
	}
	t.ticks++
	status := t.Root.Tick()
	t.log.Debug("tree ticked", "root", t.Root.Name(), "tick", t.ticks, "status", status.String())
	return status
}

// Ticks returns how many times Tick has run the root.
func (t *Tree) Ticks() uint64 { return t.ticks }

// Status returns the root's last status.
func (t *Tree) Status() Status {
	if t.Root == nil {
		return StatusIdle
	}
	return t.Root.Status()
}

func (t *Tree) Halt() {
	if t.Root == nil {
		return
	}
	t.Root.Halt()
	t.log.Debug("tree halted", "root", t.Root.Name())
}

func (t *Tree) Save() SaveState {
	var rec Record
	if t.Root != nil {
		rec = t.Root.Serialize()
	}
	return SaveState{Tree: rec, Blackboard: t.Blackboard.Snapshot()}
}

// Load restores a SaveState. Structural mismatches are logged and returned;
// loading always continues best-effort.
func (t *Tree) Load(s SaveState) []Mismatch {
	if s.Blackboard != nil {
		t.Blackboard.Replace(s.Blackboard)
	}
	if t.Root == nil {
		return nil
	}
	mismatches := t.Root.Deserialize(s.Tree)
	for _, m := range mismatches {
		t.log.Warn("behavior tree state does not match live tree", "path", m.Path, "reason", m.Reason)
	}
	return mismatches
}

// Run ticks the tree every interval until ctx is done. onTick, if set, sees
// every result.
func (t *Tree) Run(ctx context.Context, interval time.Duration, onTick func(Status)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := t.Tick()
			if onTick != nil {
				onTick(status)
			}
		}
	}
}
