package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/colony-brain/internal/agent"
	"example.com/colony-brain/internal/db"
	mqttc "example.com/colony-brain/internal/mqtt"
)

// Ingest handles a status or save message published by an agent.
func (c *Controller) Ingest(ctx context.Context, topic string, payload []byte) error {
	kind, agentID, animalID, ok := mqttc.ParseAnimalTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	switch kind {
	case "status":
		return c.ingestStatus(ctx, agentID, animalID, payload)
	default:
		return c.ingestSave(ctx, agentID, animalID, payload)
	}
}

func (c *Controller) ingestStatus(ctx context.Context, agentID, animalID string, payload []byte) error {
	var s agent.StatusPayload
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	seen := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, s.TS); err == nil {
		seen = ts.UTC()
	}
	err := c.DB.UpsertAnimalStatus(ctx, db.Animal{
		AgentID:   agentID,
		Name:      animalID,
		Status:    s.Status,
		X:         s.Position.X,
		Y:         s.Position.Y,
		InShed:    s.InShed,
		Hunger:    s.Hunger,
		JobStatus: s.JobStatus,
		WorldTick: int64(s.WorldTick),
		LastSeen:  seen,
	})
	if err != nil {
		return fmt.Errorf("store status: %w", err)
	}
	c.publishEvent(Event{Type: "status", Agent: agentID, Animal: animalID, Data: payload})
	return nil
}

func (c *Controller) ingestSave(ctx context.Context, agentID, animalID string, payload []byte) error {
	var s agent.SavePayload
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("decode save: %w", err)
	}
	if s.Animal != "" && s.Animal != animalID {
		return fmt.Errorf("save for %q published on topic of %q", s.Animal, animalID)
	}
	id, err := c.DB.SaveState(ctx, db.Save{
		AgentID:    agentID,
		AnimalID:   animalID,
		RootStatus: s.Tree.Tree.Status.String(),
		WorldTick:  int64(s.WorldTick),
		SavedAt:    s.SavedAt,
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("store save: %w", err)
	}
	if _, err := c.DB.PruneSaves(ctx, agentID, animalID, c.KeepSaves); err != nil {
		c.Log.Warn("prune saves", "agent", agentID, "animal", animalID, "err", err)
	}
	data, err := json.Marshal(map[string]any{"id": id, "saved_at": s.SavedAt})
	if err != nil {
		return fmt.Errorf("encode save event: %w", err)
	}
	c.publishEvent(Event{Type: "save", Agent: agentID, Animal: animalID, Data: data})
	c.Log.Info("save stored", "agent", agentID, "animal", animalID, "save_id", id)
	return nil
}
