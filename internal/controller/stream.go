package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"example.com/colony-brain/internal/agent"
	mqttc "example.com/colony-brain/internal/mqtt"
	"github.com/gorilla/websocket"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamReply is written back when a client sends a command over the socket.
type streamReply struct {
	Type      string `json:"type"` // "ack" or "error"
	CommandID string `json:"command_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStream upgrades to a websocket that carries the agent's status and
// save events. Clients may send commands on the same socket.
func (c *Controller) HandleStream(w http.ResponseWriter, r *http.Request) {
	agentID, _, err := animalPath(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if c.Events == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	animalID := r.URL.Query().Get("animal")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.Log.Warn("websocket upgrade", "err", err)
		return
	}
	defer ws.Close()

	events := c.Events.Subscribe()
	defer c.Events.Unsubscribe(events)

	out := make(chan []byte, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			reply := c.streamCommand(r, agentID, animalID, msg)
			buf, _ := json.Marshal(reply)
			select {
			case out <- buf:
			default:
			}
		}
	}()

	log := c.Log.With("agent", agentID, "animal", animalID)
	log.Debug("stream opened")
	for {
		var msg []byte
		select {
		case <-done:
			log.Debug("stream closed")
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !matches(ev, agentID, animalID) {
				continue
			}
			msg = []byte(ev)
		case msg = <-out:
		}
		_ = ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug("stream write", "err", err)
			return
		}
	}
}

func (c *Controller) streamCommand(r *http.Request, agentID, animalID string, msg []byte) streamReply {
	var req commandRequest
	if err := json.Unmarshal(msg, &req); err != nil || req.Type == "" {
		return streamReply{Type: "error", Error: "invalid command payload"}
	}
	if !directCommands[req.Type] {
		return streamReply{Type: "error", Error: "unsupported command type " + req.Type}
	}
	rec, err := c.sendCommand(r.Context(), mqttc.CommandTopic(agentID), agentID, agent.Command{Type: req.Type, Animal: animalID, Data: req.Data})
	if err != nil {
		c.Log.Error("stream command", "err", err)
		return streamReply{Type: "error", Error: "failed to queue command"}
	}
	return streamReply{Type: "ack", CommandID: rec.CommandID}
}
