package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"example.com/colony-brain/internal/controller"
	"example.com/colony-brain/internal/db"
	"example.com/colony-brain/internal/logging"
	mqttc "example.com/colony-brain/internal/mqtt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Server struct {
	DB         *db.DB
	MQTT       *mqttc.Client
	Events     *SSEBroker
	Controller *controller.Controller
	log        logging.Logger
}

// NewServer opens the database and connects to the broker. Status and save
// subscriptions are renewed on every reconnect.
func NewServer(dbPath, broker string, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	dbConn, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	s := newServer(dbConn, nil, log)
	s.MQTT = mqttc.NewClientWithHandler("colony-controller", broker, s.onConnect, log)
	s.Controller.MQTT = s.MQTT
	return s, nil
}

func newServer(dbConn *db.DB, pub controller.Publisher, log logging.Logger) *Server {
	events := NewSSEBroker(log)
	return &Server{
		DB:         dbConn,
		Events:     events,
		Controller: controller.New(dbConn, pub, events, log),
		log:        log,
	}
}

func (s *Server) onConnect(c mqtt.Client) {
	for _, topic := range []string{mqttc.StatusWildcard, mqttc.SaveWildcard} {
		s.log.Info("controller subscribing", "topic", topic)
		if token := c.Subscribe(topic, 0, s.handleMessage); token.Wait() && token.Error() != nil {
			s.log.Error("mqtt subscribe", "topic", topic, "err", token.Error())
		}
	}
}

func (s *Server) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	s.ingest(msg.Topic(), msg.Payload())
}

func (s *Server) ingest(topic string, payload []byte) {
	if err := s.Controller.Ingest(context.Background(), topic, payload); err != nil {
		s.log.Warn("ingest", "topic", topic, "err", err)
	}
}

func (s *Server) routes() http.Handler {
	c := s.Controller
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", c.Health)

	mux.HandleFunc("GET /api/animals", c.ListAnimals)
	mux.HandleFunc("GET /api/animals/{agent}/{animal}", c.GetAnimal)
	mux.HandleFunc("POST /api/animals/{agent}/{animal}/command", c.AnimalCommand)
	mux.HandleFunc("POST /api/animals/{agent}/{animal}/restore", c.RestoreLatest)

	mux.HandleFunc("POST /api/agents/{agent}/command", c.AnimalCommand)
	mux.HandleFunc("GET /api/agents/{agent}/ws", c.HandleStream)

	mux.HandleFunc("GET /api/commands", c.ListCommands)
	mux.HandleFunc("POST /api/commands/broadcast", c.BroadcastCommand)

	mux.HandleFunc("GET /api/saves", c.ListSaves)
	mux.HandleFunc("GET /api/saves/{id}", c.GetSave)
	mux.HandleFunc("DELETE /api/saves/{id}", c.DeleteSave)
	mux.HandleFunc("POST /api/saves/{id}/restore", c.RestoreSave)
	mux.HandleFunc("POST /api/saves/{id}/export", c.ExportSave)
	mux.HandleFunc("GET /api/exports", c.ListExports)

	mux.HandleFunc("GET /api/settings/export", c.GetExportTarget)
	mux.HandleFunc("PUT /api/settings/export", c.UpdateExportTarget)

	mux.Handle("GET /api/events", s.Events)
	return mux
}

// Run serves HTTP on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("controller listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// SSE handlers only return once their channel closes.
	s.Events.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close releases the broker connection, event stream and database.
func (s *Server) Close() error {
	s.Events.Close()
	s.MQTT.Disconnect()
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
