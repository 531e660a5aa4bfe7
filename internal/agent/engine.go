package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/colony-brain/internal/agent/behavior"
	"example.com/colony-brain/internal/logging"
	mqttc "example.com/colony-brain/internal/mqtt"
	"example.com/colony-brain/internal/scenario"
	"example.com/colony-brain/internal/world"
	mqttlib "github.com/eclipse/paho.mqtt.golang"
)

var (
	ErrAnimalNotFound = errors.New("animal not found")
	ErrUnknownCommand = errors.New("unknown command type")
)

// Publisher is the part of the MQTT client the engine needs.
type Publisher interface {
	Publish(topic string, payload []byte)
	PublishRetained(topic string, payload []byte)
}

// AgentEngine runs every animal of a scenario on one shared world clock.
// Commands arrive on a queue and are applied between ticks, so trees are
// only ever touched from the engine loop.
type AgentEngine struct {
	Config     Config
	MQTTClient *mqttc.Client
	Publisher  Publisher
	JobManager *JobManager
	World      *world.World

	log                logging.Logger
	animals            map[string]*Animal
	order              []string
	cmdChan            chan Command
	lastSave           time.Time
	lastConnectAttempt time.Time
}

// NewAgentEngine builds the world and one tree per animal of spec from def.
func NewAgentEngine(cfg Config, spec scenario.Spec, def behavior.Definition, log logging.Logger) (*AgentEngine, error) {
	if log == nil {
		log = logging.Nop()
	}
	w, err := world.New(spec.World)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	e := &AgentEngine{
		Config:     cfg,
		JobManager: NewJobManager(),
		World:      w,
		log:        log.With("agent", cfg.AgentID),
		animals:    make(map[string]*Animal, len(spec.Animals)),
		cmdChan:    make(chan Command, 32),
		lastSave:   time.Now(),
	}
	env := animalEnv{
		world:       w,
		jobs:        e.JobManager,
		eatDuration: spec.EatDuration,
		hungerLimit: spec.HungerLimit,
		log:         e.log,
	}
	for _, as := range spec.Animals {
		state := AnimalState{Position: as.Position, InShed: as.InShed}
		a, err := newAnimal(as.ID, as.Tree, def, state, as.Blackboard, env)
		if err != nil {
			return nil, fmt.Errorf("animal %s: %w", as.ID, err)
		}
		e.animals[as.ID] = a
		e.order = append(e.order, as.ID)
	}
	return e, nil
}

// Animal looks up an animal by id.
func (e *AgentEngine) Animal(id string) (*Animal, bool) {
	a, ok := e.animals[id]
	return a, ok
}

// Animals returns the animals in scenario order.
func (e *AgentEngine) Animals() []*Animal {
	out := make([]*Animal, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.animals[id])
	}
	return out
}

func (e *AgentEngine) Start(ctx context.Context) {
	if e.Publisher == nil {
		e.connectMQTT()
	}

	interval := e.Config.TickInterval
	if interval <= 0 {
		interval = DefaultConfig().TickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("agent engine started", "animals", len(e.order), "tick_interval", interval)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-ticker.C:
			e.maintainConnection()
			e.Step()
		}
	}
}

func (e *AgentEngine) shutdown() {
	e.JobManager.CancelAll()
	e.SaveAll()
	if e.MQTTClient != nil {
		e.MQTTClient.Disconnect()
	}
	e.log.Info("agent engine stopped")
}

// Step applies queued commands, advances the world one tick and ticks every
// animal's tree once.
func (e *AgentEngine) Step() {
	e.drainCommands()

	tick := e.World.Advance()
	day := e.World.IsDay()
	for _, id := range e.order {
		a := e.animals[id]
		a.advance()
		a.checkJob()
		a.Tree.Tick()

		status := a.statusPayload(e.Config.AgentID, tick, day)
		if a.changed(status) {
			e.publishJSON(mqttc.StatusTopic(e.Config.AgentID, a.ID), status, true)
		}
	}

	if e.Config.SaveInterval > 0 && time.Since(e.lastSave) >= e.Config.SaveInterval {
		e.SaveAll()
	}
}

// SaveAll publishes a save snapshot for every animal.
func (e *AgentEngine) SaveAll() {
	for _, a := range e.Animals() {
		e.publishSave(a)
	}
	e.lastSave = time.Now()
}

func (e *AgentEngine) publishSave(a *Animal) {
	e.publishJSON(mqttc.SaveTopic(e.Config.AgentID, a.ID), a.Save(e.Config.AgentID, e.World.Tick()), false)
}

func (e *AgentEngine) publishJSON(topic string, v any, retained bool) {
	if e.Publisher == nil {
		return
	}
	buf, err := json.Marshal(v)
	if err != nil {
		e.log.Error("marshal payload", "topic", topic, "err", err)
		return
	}
	if retained {
		e.Publisher.PublishRetained(topic, buf)
	} else {
		e.Publisher.Publish(topic, buf)
	}
}

// Enqueue hands a command to the engine loop without blocking. It reports
// false when the queue is full.
func (e *AgentEngine) Enqueue(cmd Command) bool {
	select {
	case e.cmdChan <- cmd:
		return true
	default:
		return false
	}
}

func (e *AgentEngine) drainCommands() {
	for {
		select {
		case cmd := <-e.cmdChan:
			if err := e.Apply(cmd); err != nil {
				e.log.Warn("command failed", "command_id", cmd.ID, "type", cmd.Type, "animal", cmd.Animal, "err", err)
			}
		default:
			return
		}
	}
}

// Apply executes one command right away. It must be called from the
// goroutine that calls Step.
func (e *AgentEngine) Apply(cmd Command) error {
	if cmd.Type == CommandLoad {
		return e.applyLoad(cmd)
	}
	targets, err := e.targets(cmd.Animal)
	if err != nil {
		return err
	}

	switch cmd.Type {
	case CommandHalt:
		for _, a := range targets {
			a.Halt()
		}
	case CommandSave:
		for _, a := range targets {
			e.publishSave(a)
		}
	case CommandSetBlackboard:
		var data SetBlackboardData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return fmt.Errorf("decode set_blackboard: %w", err)
		}
		if data.Key == "" {
			return errors.New("set_blackboard: key is required")
		}
		for _, a := range targets {
			if data.Value == nil {
				a.Tree.Blackboard.Delete(data.Key)
			} else {
				a.Tree.Blackboard.Set(data.Key, data.Value)
			}
		}
	case CommandCancelJob:
		for _, a := range targets {
			a.cancelJob()
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	e.log.Info("command applied", "command_id", cmd.ID, "type", cmd.Type, "animals", len(targets))
	return nil
}

func (e *AgentEngine) applyLoad(cmd Command) error {
	var data LoadData
	if err := json.Unmarshal(cmd.Data, &data); err != nil {
		return fmt.Errorf("decode load: %w", err)
	}
	id := cmd.Animal
	if id == "" {
		id = data.Save.Animal
	}
	a, ok := e.animals[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAnimalNotFound, id)
	}
	mismatches := a.Restore(data.Save)
	e.log.Info("save restored", "command_id", cmd.ID, "animal", a.ID, "saved_at", data.Save.SavedAt, "mismatches", len(mismatches))
	return nil
}

func (e *AgentEngine) targets(id string) ([]*Animal, error) {
	if id == "" {
		return e.Animals(), nil
	}
	a, ok := e.animals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAnimalNotFound, id)
	}
	return []*Animal{a}, nil
}

func (e *AgentEngine) connectMQTT() {
	onConnect := func(c mqttlib.Client) {
		e.log.Info("mqtt connected")
		for _, topic := range []string{mqttc.CommandTopic(e.Config.AgentID), mqttc.CommandTopicAll} {
			if token := c.Subscribe(topic, 0, e.mqttHandler); token.Wait() && token.Error() != nil {
				e.log.Error("mqtt subscribe", "topic", topic, "err", token.Error())
			}
		}
	}

	client := mqttc.NewClientWithHandler("colony-agent-"+e.Config.AgentID, e.Config.MQTTBroker, onConnect, e.log)
	e.MQTTClient = client
	e.Publisher = client
}

func (e *AgentEngine) maintainConnection() {
	if e.MQTTClient == nil || e.MQTTClient.Client == nil || e.MQTTClient.Connected() {
		return
	}
	if time.Since(e.lastConnectAttempt) < 5*time.Second {
		return
	}
	e.lastConnectAttempt = time.Now()
	e.log.Warn("mqtt disconnected, attempting reconnect")
	go func() {
		token := e.MQTTClient.Client.Connect()
		if token.Wait() && token.Error() != nil {
			e.log.Warn("mqtt reconnect failed", "err", token.Error())
		}
	}()
}

func (e *AgentEngine) mqttHandler(_ mqttlib.Client, msg mqttlib.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		e.log.Warn("invalid command JSON", "topic", msg.Topic(), "err", err)
		return
	}
	if e.Enqueue(cmd) {
		e.log.Debug("queued command", "command_id", cmd.ID, "type", cmd.Type)
	} else {
		e.log.Warn("command queue full, dropping command", "command_id", cmd.ID, "type", cmd.Type)
	}
}
