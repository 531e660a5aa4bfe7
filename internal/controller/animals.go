package controller

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"example.com/colony-brain/internal/agent"
	"example.com/colony-brain/internal/db"
	mqttc "example.com/colony-brain/internal/mqtt"
)

type commandRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Commands the HTTP API may send directly. Loads go through the restore
// endpoints so they always carry a stored save.
var directCommands = map[string]bool{
	agent.CommandHalt:          true,
	agent.CommandSave:          true,
	agent.CommandSetBlackboard: true,
	agent.CommandCancelJob:     true,
}

func (c *Controller) ListAnimals(w http.ResponseWriter, r *http.Request) {
	animals, err := c.DB.ListAnimals(r.Context(), r.URL.Query().Get("agent"))
	if err != nil {
		c.Log.Error("list animals", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to list animals")
		return
	}
	respondJSON(w, http.StatusOK, animals)
}

func (c *Controller) GetAnimal(w http.ResponseWriter, r *http.Request) {
	agentID, animalID, err := animalPath(r)
	if err != nil || animalID == "" {
		respondError(w, http.StatusBadRequest, "invalid animal path")
		return
	}
	a, err := c.DB.GetAnimal(r.Context(), agentID, animalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "animal not found")
			return
		}
		c.Log.Error("get animal", "agent", agentID, "animal", animalID, "err", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch animal")
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// AnimalCommand sends a command to one animal, or to every animal of the
// agent when the path has no animal.
func (c *Controller) AnimalCommand(w http.ResponseWriter, r *http.Request) {
	agentID, animalID, err := animalPath(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if animalID != "" {
		if _, err := c.DB.GetAnimal(r.Context(), agentID, animalID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				respondError(w, http.StatusNotFound, "animal not found")
				return
			}
			c.Log.Error("fetch animal for command", "err", err)
			respondError(w, http.StatusInternalServerError, "failed to fetch animal")
			return
		}
	}
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	rec, err := c.sendCommand(r.Context(), mqttc.CommandTopic(agentID), agentID, agent.Command{Type: req.Type, Animal: animalID, Data: req.Data})
	if err != nil {
		c.Log.Error("queue command", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to queue command")
		return
	}
	respondJSON(w, http.StatusAccepted, rec)
}

// BroadcastCommand sends a command to every animal on every agent.
func (c *Controller) BroadcastCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	rec, err := c.sendCommand(r.Context(), mqttc.CommandTopicAll, "all", agent.Command{Type: req.Type, Data: req.Data})
	if err != nil {
		c.Log.Error("broadcast command", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to queue command")
		return
	}
	respondJSON(w, http.StatusAccepted, rec)
}

func (c *Controller) ListCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := c.DB.ListCommands(r.Context(), r.URL.Query().Get("agent"))
	if err != nil {
		c.Log.Error("list commands", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to list commands")
		return
	}
	respondJSON(w, http.StatusOK, cmds)
}

func decodeCommand(w http.ResponseWriter, r *http.Request) (commandRequest, bool) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid command payload")
		return req, false
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, "command type required")
		return req, false
	}
	if !directCommands[req.Type] {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported command type %q", req.Type))
		return req, false
	}
	return req, true
}

// sendCommand assigns an id, records the command and publishes it.
func (c *Controller) sendCommand(ctx context.Context, topic, agentID string, cmd agent.Command) (db.CommandRecord, error) {
	if cmd.ID == "" {
		fresh, err := agent.NewCommand(cmd.Type, cmd.Animal, nil)
		if err != nil {
			return db.CommandRecord{}, err
		}
		cmd.ID = fresh.ID
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return db.CommandRecord{}, fmt.Errorf("marshal command: %w", err)
	}
	rec := db.CommandRecord{
		CommandID:   cmd.ID,
		Type:        cmd.Type,
		AgentID:     agentID,
		AnimalID:    cmd.Animal,
		PayloadJSON: string(payload),
		CreatedAt:   time.Now().UTC(),
	}
	id, err := c.DB.CreateCommand(ctx, rec)
	if err != nil {
		return db.CommandRecord{}, fmt.Errorf("record command: %w", err)
	}
	rec.ID = id
	c.Log.Info("command queued", "command_id", cmd.ID, "type", cmd.Type, "agent", agentID, "animal", cmd.Animal, "topic", topic)
	if c.MQTT != nil {
		c.MQTT.Publish(topic, payload)
	}
	return rec, nil
}
