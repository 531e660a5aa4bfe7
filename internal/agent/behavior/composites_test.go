package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence(t *testing.T) {
	tests := []struct {
		name    string
		results []Status
		want    Status
		ticked  []int
	}{
		{"all succeed", []Status{StatusSuccess, StatusSuccess, StatusSuccess}, StatusSuccess, []int{1, 1, 1}},
		{"third fails", []Status{StatusSuccess, StatusSuccess, StatusFailure, StatusSuccess}, StatusFailure, []int{1, 1, 1, 0}},
		{"first fails", []Status{StatusFailure, StatusSuccess}, StatusFailure, []int{1, 0}},
		{"second running", []Status{StatusSuccess, StatusRunning, StatusSuccess}, StatusRunning, []int{1, 1, 0}},
		{"empty", nil, StatusSuccess, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bb := NewBlackboard()
			seq := NewSequence("seq", bb)
			var leaves []*script
			for i, r := range tt.results {
				s := returns(r)
				leaves = append(leaves, s)
				seq.AddAction(string(rune('a'+i)), s.cb)
			}

			assert.Equal(t, tt.want, seq.Tick())
			assert.Equal(t, tt.want, seq.Status())
			for i, s := range leaves {
				assert.Equal(t, tt.ticked[i], s.calls, "child %d", i)
			}
		})
	}
}

func TestSequenceRescansFromFirstChild(t *testing.T) {
	first := returns(StatusSuccess)
	second := returns(StatusRunning, StatusRunning, StatusSuccess)
	seq := NewSequence("seq", NewBlackboard())
	seq.AddAction("first", first.cb)
	seq.AddAction("second", second.cb)

	assert.Equal(t, StatusRunning, seq.Tick())
	assert.Equal(t, StatusRunning, seq.Tick())
	assert.Equal(t, StatusSuccess, seq.Tick())
	assert.Equal(t, 3, first.calls)
	assert.Equal(t, 3, second.calls)
	assert.Equal(t, 0, seq.Index())
}

func TestSequenceHaltsChildrenOnResolution(t *testing.T) {
	seq := NewSequence("seq", NewBlackboard())
	a := seq.AddAction("a", returns(StatusSuccess).cb)
	seq.AddAction("b", returns(StatusFailure).cb)

	require.Equal(t, StatusFailure, seq.Tick())
	assert.Equal(t, StatusIdle, a.Status())
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name    string
		results []Status
		want    Status
		ticked  []int
	}{
		{"second succeeds", []Status{StatusFailure, StatusSuccess, StatusFailure}, StatusSuccess, []int{1, 1, 0}},
		{"all fail", []Status{StatusFailure, StatusFailure}, StatusFailure, []int{1, 1}},
		{"first running", []Status{StatusRunning, StatusSuccess}, StatusRunning, []int{1, 0}},
		{"empty", nil, StatusFailure, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := NewFallback("fb", NewBlackboard())
			var leaves []*script
			for i, r := range tt.results {
				s := returns(r)
				leaves = append(leaves, s)
				fb.AddAction(string(rune('a'+i)), s.cb)
			}
			assert.Equal(t, tt.want, fb.Tick())
			for i, s := range leaves {
				assert.Equal(t, tt.ticked[i], s.calls, "child %d", i)
			}
		})
	}
}

func TestFallbackRescansFromFirstChild(t *testing.T) {
	first := returns(StatusFailure)
	second := returns(StatusRunning)
	fb := NewFallback("fb", NewBlackboard())
	fb.AddAction("first", first.cb)
	fb.AddAction("second", second.cb)

	fb.Tick()
	fb.Tick()
	assert.Equal(t, 2, first.calls)
}

func TestFallbackStarResumesAtRunningChild(t *testing.T) {
	first := returns(StatusFailure)
	second := returns(StatusRunning, StatusRunning, StatusSuccess)
	third := returns(StatusSuccess)
	fb := NewFallbackStar("fb", NewBlackboard())
	fb.AddAction("first", first.cb)
	fb.AddAction("second", second.cb)
	fb.AddAction("third", third.cb)

	assert.Equal(t, StatusRunning, fb.Tick())
	assert.Equal(t, 1, fb.Index())
	assert.Equal(t, StatusRunning, fb.Tick())
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 2, second.calls)

	assert.Equal(t, StatusSuccess, fb.Tick())
	assert.Equal(t, 0, fb.Index())
	assert.Equal(t, 0, third.calls)
	assert.Equal(t, 1, first.calls)
}

func TestFallbackStarExhausted(t *testing.T) {
	fb := NewFallbackStar("fb", NewBlackboard())
	a := returns(StatusFailure)
	b := returns(StatusFailure)
	fb.AddAction("a", a.cb)
	fb.AddAction("b", b.cb)

	assert.Equal(t, StatusFailure, fb.Tick())
	assert.Equal(t, 0, fb.Index())
	assert.Equal(t, StatusFailure, fb.Tick())
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, b.calls)
}

func TestSequenceStar(t *testing.T) {
	first := returns(StatusSuccess)
	second := returns(StatusRunning, StatusSuccess, StatusFailure)
	seq := NewSequenceStar("seq", NewBlackboard(), true)
	seq.AddAction("first", first.cb)
	seq.AddAction("second", second.cb)

	assert.Equal(t, StatusRunning, seq.Tick())
	assert.Equal(t, 1, seq.Index())
	assert.Equal(t, StatusSuccess, seq.Tick())
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, seq.Index())

	assert.Equal(t, StatusFailure, seq.Tick())
	assert.Equal(t, 2, first.calls)
	assert.Equal(t, 0, seq.Index())
}

func TestRepeatUntilSuccess(t *testing.T) {
	t.Run("budget exhausted in one tick", func(t *testing.T) {
		child := returns(StatusFailure)
		r := NewRepeatUntilSuccess("retry", 3, NewBlackboard())
		r.AddAction("child", child.cb)

		assert.Equal(t, StatusFailure, r.Tick())
		assert.Equal(t, 3, child.calls)
		assert.Equal(t, 0, r.Index())
	})

	t.Run("success on second attempt", func(t *testing.T) {
		child := returns(StatusFailure, StatusSuccess, StatusFailure)
		r := NewRepeatUntilSuccess("retry", 3, NewBlackboard())
		r.AddAction("child", child.cb)

		assert.Equal(t, StatusSuccess, r.Tick())
		assert.Equal(t, 2, child.calls)
		assert.Equal(t, 0, r.Index())
	})

	t.Run("running keeps the attempt", func(t *testing.T) {
		child := returns(StatusFailure, StatusRunning, StatusFailure, StatusFailure)
		r := NewRepeatUntilSuccess("retry", 3, NewBlackboard())
		r.AddAction("child", child.cb)

		assert.Equal(t, StatusRunning, r.Tick())
		assert.Equal(t, 1, r.Index())
		assert.Equal(t, StatusFailure, r.Tick())
		assert.Equal(t, 4, child.calls)
		assert.Equal(t, 0, r.Index())
	})

	t.Run("no child burns the budget", func(t *testing.T) {
		r := NewRepeatUntilSuccess("retry", 2, NewBlackboard())
		assert.Equal(t, StatusFailure, r.Tick())
		assert.Equal(t, 0, r.Index())
	})
}

func TestRepeat(t *testing.T) {
	t.Run("counts successes", func(t *testing.T) {
		child := returns(StatusSuccess, StatusRunning, StatusSuccess, StatusSuccess)
		r := NewRepeat("again", 3, NewBlackboard())
		r.AddAction("child", child.cb)

		assert.Equal(t, StatusRunning, r.Tick())
		assert.Equal(t, 1, r.Index())
		assert.Equal(t, StatusSuccess, r.Tick())
		assert.Equal(t, 4, child.calls)
		assert.Equal(t, 0, r.Index())
	})

	t.Run("failure stops early", func(t *testing.T) {
		child := returns(StatusSuccess, StatusFailure, StatusSuccess)
		r := NewRepeat("again", 3, NewBlackboard())
		r.AddAction("child", child.cb)

		assert.Equal(t, StatusFailure, r.Tick())
		assert.Equal(t, 2, child.calls)
		assert.Equal(t, 0, r.Index())
	})
}

func TestForceFailure(t *testing.T) {
	for _, tt := range []struct {
		child, want Status
	}{
		{StatusRunning, StatusRunning},
		{StatusSuccess, StatusFailure},
		{StatusFailure, StatusFailure},
	} {
		n := NewForceFailure(NewBlackboard())
		n.AddAction("child", returns(tt.child).cb)
		assert.Equal(t, tt.want, n.Tick(), "child %s", tt.child)
		assert.Equal(t, "ForceFailure", n.Name())
	}
	assert.Equal(t, StatusFailure, NewForceFailure(NewBlackboard()).Tick())
}

func TestForceSuccess(t *testing.T) {
	for _, tt := range []struct {
		child, want Status
	}{
		{StatusRunning, StatusRunning},
		{StatusSuccess, StatusSuccess},
		{StatusFailure, StatusSuccess},
	} {
		n := NewForceSuccess(NewBlackboard())
		n.AddAction("child", returns(tt.child).cb)
		assert.Equal(t, tt.want, n.Tick(), "child %s", tt.child)
	}
}

func TestInverter(t *testing.T) {
	for _, tt := range []struct {
		child, want Status
	}{
		{StatusRunning, StatusRunning},
		{StatusSuccess, StatusFailure},
		{StatusFailure, StatusSuccess},
	} {
		n := NewInverter("not", NewBlackboard())
		n.AddConditional("child", returns(tt.child).cb)
		assert.Equal(t, tt.want, n.Tick(), "child %s", tt.child)
	}
	assert.Equal(t, StatusFailure, NewInverter("not", NewBlackboard()).Tick())
}

func TestBBPrecondition(t *testing.T) {
	t.Run("match delegates", func(t *testing.T) {
		bb := NewBlackboard()
		bb.Set("State", "hungry")
		child := returns(StatusRunning)
		n := NewBBPrecondition("gate", "State", "hungry", bb)
		n.AddAction("eat", child.cb)

		assert.Equal(t, StatusRunning, n.Tick())
		assert.Equal(t, 1, child.calls)
	})

	t.Run("mismatch fails without ticking", func(t *testing.T) {
		bb := NewBlackboard()
		bb.Set("State", "idle")
		child := returns(StatusSuccess)
		n := NewBBPrecondition("gate", "State", "hungry", bb)
		n.AddAction("eat", child.cb)

		assert.Equal(t, StatusFailure, n.Tick())
		assert.Equal(t, 0, child.calls)
	})

	t.Run("non string values compare by string form", func(t *testing.T) {
		bb := NewBlackboard()
		bb.Set("Count", 3)
		n := NewBBPrecondition("gate", "Count", "3", bb)
		n.AddAction("go", returns(StatusSuccess).cb)
		assert.Equal(t, StatusSuccess, n.Tick())
	})

	t.Run("missing key compares as empty", func(t *testing.T) {
		n := NewBBPrecondition("gate", "Missing", "", NewBlackboard())
		n.AddAction("go", returns(StatusSuccess).cb)
		assert.Equal(t, StatusSuccess, n.Tick())
	})

	t.Run("wildcard matches absent key", func(t *testing.T) {
		child := returns(StatusSuccess)
		n := NewBBPrecondition("gate", "Missing", Wildcard, NewBlackboard())
		n.AddAction("go", child.cb)
		assert.Equal(t, StatusSuccess, n.Tick())
		assert.Equal(t, 1, child.calls)
	})

	t.Run("wildcard without child fails", func(t *testing.T) {
		n := NewBBPrecondition("gate", "State", Wildcard, NewBlackboard())
		assert.Equal(t, StatusFailure, n.Tick())
	})

	t.Run("running child is not halted when the gate closes", func(t *testing.T) {
		bb := NewBlackboard()
		bb.Set("State", "go")
		n := NewBBPrecondition("gate", "State", "go", bb)
		child := n.AddAction("work", returns(StatusRunning).cb)

		require.Equal(t, StatusRunning, n.Tick())
		bb.Set("State", "stop")
		assert.Equal(t, StatusFailure, n.Tick())
		assert.Equal(t, StatusRunning, child.Status())
	})
}

func TestBlackboardWritesVisibleWithinTick(t *testing.T) {
	bb := NewBlackboard()
	seq := NewSequence("seq", bb)
	seq.AddAction("write", func(bool) Status {
		bb.Set("Target", "shed")
		return StatusSuccess
	})
	gate := seq.AddBBPrecondition("gate", "Target", "shed")
	done := returns(StatusSuccess)
	gate.AddAction("move", done.cb)

	assert.Equal(t, StatusSuccess, seq.Tick())
	assert.Equal(t, 1, done.calls)
}
