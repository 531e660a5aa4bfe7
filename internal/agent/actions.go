package agent

import (
	"context"
	"time"

	"example.com/colony-brain/internal/agent/behavior"
	"example.com/colony-brain/internal/world"
)

// Actions returns the leaf callbacks a tree file may reference by ID, bound
// to this animal and to bb.
func (a *Animal) Actions(bb *behavior.Blackboard) behavior.ActionMap {
	return behavior.ActionMap{
		"IsDay":                  func(bool) behavior.Status { return check(a.world.IsDay()) },
		"IsNight":                func(bool) behavior.Status { return check(!a.world.IsDay()) },
		"IsInShed":               func(bool) behavior.Status { return check(a.state.InShed) },
		"IsOnPasture":            func(bool) behavior.Status { return check(a.world.OnPasture(a.state.Position)) },
		"IsHungry":               func(bool) behavior.Status { return check(a.hungry()) },
		"FindShed":               func(bool) behavior.Status { return a.setTarget(bb, a.world.Shed()) },
		"FindRandomPastureField": func(bool) behavior.Status { return a.setTarget(bb, a.world.RandomPasturePoint()) },
		"Move":                   func(bool) behavior.Status { return a.move(bb) },
		"EnterShed":              func(bool) behavior.Status { return a.enterShed() },
		"LeaveShed":              func(bool) behavior.Status { return a.leaveShed() },
		"RandomMove":             func(bool) behavior.Status { return a.randomMove() },
		"Eat":                    func(bool) behavior.Status { return a.eat() },
	}
}

func check(ok bool) behavior.Status {
	if ok {
		return behavior.StatusSuccess
	}
	return behavior.StatusFailure
}

func (a *Animal) setTarget(bb *behavior.Blackboard, p world.Point) behavior.Status {
	bb.Set(KeyTarget, p.String())
	return behavior.StatusSuccess
}

// move walks one cell per tick toward the blackboard target.
func (a *Animal) move(bb *behavior.Blackboard) behavior.Status {
	raw := bb.GetString(KeyTarget)
	if raw == "" || a.state.InShed {
		return behavior.StatusFailure
	}
	target, err := world.ParsePoint(raw)
	if err != nil {
		a.log.Warn("invalid move target", "target", raw, "err", err)
		bb.Delete(KeyTarget)
		return behavior.StatusFailure
	}
	if a.state.Position != target {
		a.state.Position = world.StepToward(a.state.Position, target)
	}
	if a.state.Position == target {
		bb.Delete(KeyTarget)
		return behavior.StatusSuccess
	}
	return behavior.StatusRunning
}

func (a *Animal) enterShed() behavior.Status {
	if a.state.InShed || a.state.Position != a.world.Shed() {
		return behavior.StatusFailure
	}
	a.state.InShed = true
	return behavior.StatusSuccess
}

func (a *Animal) leaveShed() behavior.Status {
	if !a.state.InShed {
		return behavior.StatusFailure
	}
	a.state.InShed = false
	return behavior.StatusSuccess
}

// randomMove takes one step to a random neighbouring pasture cell. Staying
// put because every neighbour is off the pasture still counts as success.
func (a *Animal) randomMove() behavior.Status {
	if a.state.InShed {
		return behavior.StatusFailure
	}
	next := a.world.RandomNeighbor(a.state.Position)
	if a.world.OnPasture(next) || !a.world.OnPasture(a.state.Position) {
		a.state.Position = next
	}
	return behavior.StatusSuccess
}

// eat grazes for eatDuration on a job so the tick never blocks. It reports
// RUNNING until the job finishes.
func (a *Animal) eat() behavior.Status {
	job, ok := a.jobs.CurrentFor(a.ID)
	if !ok {
		if a.state.InShed {
			return behavior.StatusFailure
		}
		d := a.eatDuration
		_, err := a.jobs.StartJob(a.ID, "eat", func(ctx context.Context) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			a.log.Warn("start eat job", "err", err)
			return behavior.StatusFailure
		}
		return behavior.StatusRunning
	}

	switch job.Status {
	case JobStatusRunning:
		return behavior.StatusRunning
	case JobStatusSuccess:
		a.jobs.Forget(job.ID)
		a.state.Hunger = 0
		a.refreshHunger()
		return behavior.StatusSuccess
	default:
		a.jobs.Forget(job.ID)
		return behavior.StatusFailure
	}
}
