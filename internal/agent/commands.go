package agent

import (
	"encoding/json"
	"time"

	"example.com/colony-brain/internal/agent/behavior"
	"example.com/colony-brain/internal/world"
	"github.com/google/uuid"
)

const (
	CommandHalt          = "halt"
	CommandSave          = "save"
	CommandLoad          = "load"
	CommandSetBlackboard = "set_blackboard"
	CommandCancelJob     = "cancel_job"
)

// Command represents a controller-issued instruction handled by an agent.
// An empty Animal addresses every animal the agent runs.
type Command struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Animal string          `json:"animal,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// NewCommand builds a Command with a fresh id and the JSON form of data.
func NewCommand(cmdType, animal string, data any) (Command, error) {
	cmd := Command{ID: uuid.NewString(), Type: cmdType, Animal: animal}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Command{}, err
		}
		cmd.Data = raw
	}
	return cmd, nil
}

// LoadData carries a save produced by an earlier "save" command.
type LoadData struct {
	Save SavePayload `json:"save"`
}

// SetBlackboardData writes one blackboard entry. A nil Value deletes the key.
type SetBlackboardData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// AnimalState is the simulation side of an animal that a save must carry
// next to the tree state.
type AnimalState struct {
	Position world.Point `json:"position"`
	InShed   bool        `json:"in_shed"`
	Hunger   int         `json:"hunger"`
}

// SavePayload is published on the saves topic and sent back in a "load".
type SavePayload struct {
	Agent     string             `json:"agent"`
	Animal    string             `json:"animal"`
	WorldTick uint64             `json:"world_tick"`
	SavedAt   time.Time          `json:"saved_at"`
	State     AnimalState        `json:"state"`
	Tree      behavior.SaveState `json:"tree"`
}

// StatusPayload is published retained on the status topic after each tick.
type StatusPayload struct {
	Agent     string      `json:"agent"`
	Animal    string      `json:"animal"`
	Status    string      `json:"status"`
	Ticks     uint64      `json:"ticks"`
	WorldTick uint64      `json:"world_tick"`
	Day       bool        `json:"day"`
	Position  world.Point `json:"position"`
	InShed    bool        `json:"in_shed"`
	Hunger    int         `json:"hunger"`
	JobID     string      `json:"job_id,omitempty"`
	JobStatus string      `json:"job_status,omitempty"`
	TS        string      `json:"ts"`
}
