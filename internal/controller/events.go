package controller

import (
	"encoding/json"
)

// Event is what the SSE and websocket streams carry.
type Event struct {
	Type   string          `json:"type"` // "status" or "save"
	Agent  string          `json:"agent"`
	Animal string          `json:"animal"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (c *Controller) publishEvent(ev Event) {
	if c.Events == nil {
		return
	}
	buf, err := json.Marshal(ev)
	if err != nil {
		c.Log.Error("marshal event", "type", ev.Type, "err", err)
		return
	}
	c.Events.Broadcast(string(buf))
}

// matches reports whether an encoded event belongs to agent (and animal,
// when set).
func matches(msg, agentID, animalID string) bool {
	var ev Event
	if err := json.Unmarshal([]byte(msg), &ev); err != nil {
		return false
	}
	if agentID != "" && ev.Agent != agentID {
		return false
	}
	return animalID == "" || ev.Animal == animalID
}
