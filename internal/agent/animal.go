package agent

import (
	"time"

	"example.com/colony-brain/internal/agent/behavior"
	"example.com/colony-brain/internal/logging"
	"example.com/colony-brain/internal/world"
)

// Blackboard keys written by the engine and the animal callbacks.
const (
	KeyTarget = "Target" // "x,y" of the cell Move walks to
	KeyHungry = "Hungry" // "yes" or "no", refreshed every tick
)

// Animal is one creature driven by its own behavior tree and blackboard.
// It is only touched from the engine loop.
type Animal struct {
	ID   string
	Tree *behavior.Tree

	state       AnimalState
	world       *world.World
	jobs        *JobManager
	eatDuration time.Duration
	hungerLimit int
	log         logging.Logger
	published   statusKey
}

type animalEnv struct {
	world       *world.World
	jobs        *JobManager
	eatDuration time.Duration
	hungerLimit int
	log         logging.Logger
}

// newAnimal builds the animal's tree from def. treeID selects a tree other
// than the definition's main one.
func newAnimal(id, treeID string, def behavior.Definition, state AnimalState, initial map[string]any, env animalEnv) (*Animal, error) {
	a := &Animal{
		ID:          id,
		state:       state,
		world:       env.world,
		jobs:        env.jobs,
		eatDuration: env.eatDuration,
		hungerLimit: env.hungerLimit,
		log:         env.log.With("animal", id),
	}
	bb := behavior.NewBlackboardFrom(initial)
	if treeID == "" {
		treeID = def.Main
	}
	root, err := def.BuildTree(treeID, a.Actions(bb), bb)
	if err != nil {
		return nil, err
	}
	a.Tree = behavior.NewTree(root, bb, behavior.WithLogger(a.log))
	a.refreshHunger()
	return a, nil
}

func (a *Animal) State() AnimalState { return a.state }

// advance applies one world tick to the animal before its tree runs.
func (a *Animal) advance() {
	a.state.Hunger++
	a.refreshHunger()
}

func (a *Animal) hungry() bool { return a.state.Hunger >= a.hungerLimit }

func (a *Animal) refreshHunger() {
	v := "no"
	if a.hungry() {
		v = "yes"
	}
	a.Tree.Blackboard.Set(KeyHungry, v)
}

// checkJob halts the tree when the animal's job was cancelled from outside,
// so the tree starts over instead of waiting on work that will never finish.
func (a *Animal) checkJob() {
	job, ok := a.jobs.CurrentFor(a.ID)
	if !ok || job.Status != JobStatusCancelled {
		return
	}
	a.jobs.Forget(job.ID)
	a.Tree.Halt()
	a.log.Info("job cancelled, behavior tree halted", "job_id", job.ID, "job_type", job.Type)
}

func (a *Animal) cancelJob() bool {
	job, ok := a.jobs.CurrentFor(a.ID)
	if !ok {
		return false
	}
	return a.jobs.Cancel(job.ID)
}

// Halt drops any job in flight and returns every node to IDLE.
func (a *Animal) Halt() {
	if job, ok := a.jobs.CurrentFor(a.ID); ok {
		a.jobs.Forget(job.ID)
	}
	a.Tree.Halt()
}

func (a *Animal) Save(agentID string, worldTick uint64) SavePayload {
	return SavePayload{
		Agent:     agentID,
		Animal:    a.ID,
		WorldTick: worldTick,
		SavedAt:   time.Now().UTC(),
		State:     a.state,
		Tree:      a.Tree.Save(),
	}
}

// Restore puts the animal back into a saved state. A job that was running
// when the save was taken is not resumed; the leaf that owned it will start
// a new one on its next tick.
func (a *Animal) Restore(p SavePayload) []behavior.Mismatch {
	if job, ok := a.jobs.CurrentFor(a.ID); ok {
		a.jobs.Forget(job.ID)
	}
	a.state = p.State
	mismatches := a.Tree.Load(p.Tree)
	a.refreshHunger()
	return mismatches
}

type statusKey struct {
	status    string
	position  world.Point
	inShed    bool
	day       bool
	jobStatus string
}

func (a *Animal) statusPayload(agentID string, worldTick uint64, day bool) StatusPayload {
	p := StatusPayload{
		Agent:     agentID,
		Animal:    a.ID,
		Status:    a.Tree.Status().String(),
		Ticks:     a.Tree.Ticks(),
		WorldTick: worldTick,
		Day:       day,
		Position:  a.state.Position,
		InShed:    a.state.InShed,
		Hunger:    a.state.Hunger,
		TS:        time.Now().Format(time.RFC3339),
	}
	if job, ok := a.jobs.CurrentFor(a.ID); ok {
		p.JobID = job.ID
		p.JobStatus = string(job.Status)
	}
	return p
}

// changed reports whether p differs from the last published status in a way
// worth publishing, and records it.
func (a *Animal) changed(p StatusPayload) bool {
	key := statusKey{
		status:    p.Status,
		position:  p.Position,
		inShed:    p.InShed,
		day:       p.Day,
		jobStatus: p.JobStatus,
	}
	if key == a.published {
		return false
	}
	a.published = key
	return true
}
