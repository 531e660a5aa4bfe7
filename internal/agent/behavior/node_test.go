package behavior

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allKinds(bb *Blackboard) []Node {
	cb := returns(StatusRunning).cb
	return []Node{
		NewAction("action", bb, cb),
		NewConditional("cond", bb, cb),
		NewBBPrecondition("gate", "k", Wildcard, bb),
		NewForceFailure(bb),
		NewForceSuccess(bb),
		NewInverter("not", bb),
		NewSequence("seq", bb),
		NewSequenceStar("seq*", bb, true),
		NewFallback("fb", bb),
		NewFallbackStar("fb*", bb),
		NewRepeat("rep", 2, bb),
		NewRepeatUntilSuccess("retry", 2, bb),
	}
}

func TestStatusLifecycle(t *testing.T) {
	bb := NewBlackboard()
	for _, n := range allKinds(bb) {
		t.Run(n.Kind().String(), func(t *testing.T) {
			assert.Equal(t, StatusIdle, n.Status())
			n.AddAction("leaf", returns(StatusRunning).cb)

			n.Tick()
			n.Halt()
			assert.Equal(t, StatusIdle, n.Status())
			assert.Equal(t, 0, n.core().index)
			for _, child := range n.Children() {
				assert.Equal(t, StatusIdle, child.Status())
			}
		})
	}
}

func TestHaltIsRecursive(t *testing.T) {
	bb := NewBlackboard()
	root := NewFallbackStar("root", bb)
	seq := root.AddSequenceStar("outer")
	inner := seq.AddSequence("inner")
	leaf := inner.AddAction("walk", returns(StatusRunning).cb)

	require.Equal(t, StatusRunning, root.Tick())
	require.Equal(t, StatusRunning, leaf.Status())
	require.Equal(t, StatusRunning, inner.Status())

	root.Halt()
	for _, n := range []Node{root, seq, inner, leaf} {
		assert.Equal(t, StatusIdle, n.Status(), n.Name())
	}
}

func TestHaltDoesNotNotifyCallback(t *testing.T) {
	s := returns(StatusRunning)
	a := NewAction("walk", NewBlackboard(), s.cb)
	a.Tick()
	a.Halt()
	a.Halt()
	assert.Equal(t, 0, s.halts)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, StatusIdle, a.Status())
}

func TestLeafBuildersReturnNil(t *testing.T) {
	bb := NewBlackboard()
	for _, leaf := range []Node{
		NewAction("a", bb, returns(StatusSuccess).cb),
		NewConditional("c", bb, returns(StatusSuccess).cb),
	} {
		assert.Nil(t, leaf.AddSequence("x"))
		assert.Nil(t, leaf.AddSequenceStar("x"))
		assert.Nil(t, leaf.AddFallback("x"))
		assert.Nil(t, leaf.AddFallbackStar("x"))
		assert.Nil(t, leaf.AddInverter("x"))
		assert.Nil(t, leaf.AddForceFailure())
		assert.Nil(t, leaf.AddForceSuccess())
		assert.Nil(t, leaf.AddRepeat("x", 1))
		assert.Nil(t, leaf.AddRepeatUntilSuccess("x", 1))
		assert.Nil(t, leaf.AddBBPrecondition("x", "k", "v"))
		assert.Nil(t, leaf.AddConditional("x", returns(StatusSuccess).cb))
		assert.Nil(t, leaf.AddAction("x", returns(StatusSuccess).cb))
		leaf.AddTree(NewSequence("graft", bb))
		assert.Empty(t, leaf.Children())
	}
}

func TestBuildersChainAndShareBlackboard(t *testing.T) {
	bb := NewBlackboard()
	root := NewSequence("root", bb)
	retry := root.AddRepeatUntilSuccess("retry", 4)
	require.NotNil(t, retry)
	gate := retry.AddBBPrecondition("gate", "Mood", "calm")
	gate.AddAction("graze", returns(StatusSuccess).cb)

	sub := NewFallback("sub", bb)
	sub.AddConditional("check", returns(StatusSuccess).cb)
	root.AddTree(sub)
	root.AddTree(nil)

	require.Len(t, root.Children(), 2)
	assert.Same(t, sub, root.Children()[1])
	assert.Equal(t, KindRepeatUntilSuccess, retry.Kind())
	assert.Equal(t, 4, retry.(*RepeatUntilSuccess).Num())
	for _, n := range []Node{root, retry, gate, sub} {
		assert.Same(t, bb, n.core().bb)
	}

	bb.Set("Mood", "calm")
	assert.Equal(t, StatusSuccess, root.Tick())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "FAILURE", StatusFailure.String())
	assert.Equal(t, "SUCCESS", StatusSuccess.String())
	assert.Equal(t, "RUNNING", StatusRunning.String())
	assert.Equal(t, "IDLE", StatusIdle.String())
	assert.Equal(t, "UNKNOWN", Status(42).String())
	assert.True(t, StatusSuccess.Resolved())
	assert.False(t, StatusRunning.Resolved())
	assert.Equal(t, "RetryUntilSuccesful", KindRepeatUntilSuccess.String())
}
