package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"example.com/colony-brain/internal/db"
	"example.com/colony-brain/internal/logging"
	sshc "example.com/colony-brain/internal/ssh"
)

// DefaultKeepSaves is how many saves per animal are kept after ingest.
const DefaultKeepSaves = 20

// Publisher sends MQTT messages to agents.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// EventSource fans out controller events to streaming clients.
type EventSource interface {
	Subscribe() chan string
	Unsubscribe(ch chan string)
	Broadcast(msg string)
}

// ExportFunc uploads a save file and returns where it was written.
type ExportFunc func(h sshc.HostSpec, dir, name string, data []byte) (string, error)

// ListExportsFunc lists exported save files on the export host.
type ListExportsFunc func(h sshc.HostSpec, dir string) ([]string, error)

// Controller holds shared dependencies for HTTP handlers.
type Controller struct {
	DB         *db.DB
	MQTT       Publisher
	Events     EventSource
	Export     ExportFunc
	ListRemote ListExportsFunc
	KeepSaves  int
	Log        logging.Logger
}

func New(dbConn *db.DB, mqttClient Publisher, events EventSource, log logging.Logger) *Controller {
	if log == nil {
		log = logging.Nop()
	}
	return &Controller{
		DB:         dbConn,
		MQTT:       mqttClient,
		Events:     events,
		Export:     sshc.ExportSave,
		ListRemote: sshc.ListExports,
		KeepSaves:  DefaultKeepSaves,
		Log:        log,
	}
}

func (c *Controller) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func parseIDValue(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// animalPath returns the agent and animal path values, either of which may
// be required.
func animalPath(r *http.Request) (agentID, animalID string, err error) {
	agentID = strings.TrimSpace(r.PathValue("agent"))
	animalID = strings.TrimSpace(r.PathValue("animal"))
	if agentID == "" {
		return "", "", fmt.Errorf("missing agent id")
	}
	return agentID, animalID, nil
}
