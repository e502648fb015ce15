package mqttrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/findmy-core/internal/device"
	"github.com/nerrad567/findmy-core/internal/fleet"
	"github.com/nerrad567/findmy-core/internal/infrastructure/mqtt"
)

// defaultCommandTimeout bounds one remote action, latency included.
const defaultCommandTimeout = 10 * time.Second

// MQTTClient is the subset of *mqtt.Client the relay uses.
// This allows mocking in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Actions performs remote actions. Satisfied by *fleet.Service.
type Actions interface {
	PlaySound(ctx context.Context, id string) (device.Device, error)
	ToggleLostMode(ctx context.Context, id string, desired bool) (device.Device, error)
	Wipe(ctx context.Context, id string) (device.Device, error)
}

// SnapshotSource delivers fleet snapshots. Satisfied by *fleet.Broker.
type SnapshotSource interface {
	Subscribe(l fleet.Listener) (*fleet.Subscription, error)
}

// Logger defines the logging interface used by the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the dependencies for a Relay.
type Options struct {
	// MQTT is the connected client. Required.
	MQTT MQTTClient

	// Topics builds topic names. The zero value uses the default prefix.
	Topics mqtt.Topics

	// Source supplies snapshots. Required.
	Source SnapshotSource

	// Actions executes commands. Required.
	Actions Actions

	// QoS for state and ack publishes.
	QoS byte

	// CommandTimeout bounds each action. Zero selects 10s.
	CommandTimeout time.Duration

	// Logger is optional.
	Logger Logger
}

// Stats contains relay counters for the API metrics endpoint.
type Stats struct {
	Connected       bool   `json:"connected"`
	StatesPublished uint64 `json:"states_published"`
	CommandsHandled uint64 `json:"commands_handled"`
	CommandsFailed  uint64 `json:"commands_failed"`
}

// Relay mirrors fleet snapshots to retained MQTT state topics and turns
// command messages into remote actions.
//
// Snapshots are coalesced: OnSnapshot never blocks the broadcasting
// goroutine, and the publisher always sends the latest state of every
// device that changed since it was last published.
//
// Thread Safety: All methods are safe for concurrent use.
type Relay struct {
	mqtt    MQTTClient
	topics  mqtt.Topics
	source  SnapshotSource
	actions Actions
	qos     byte
	timeout time.Duration
	logger  Logger

	now   func() time.Time
	newID func() string

	sub *fleet.Subscription

	// Latest undelivered snapshot; wake has capacity one.
	pendingMu sync.Mutex
	pending   []device.Device
	wake      chan struct{}

	// published is owned by the publisher goroutine.
	published map[string]device.Device

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	stopMu  sync.RWMutex
	stopped bool

	statesPublished atomic.Uint64
	commandsHandled atomic.Uint64
	commandsFailed  atomic.Uint64
}

// New creates a relay. Call Start to begin operation.
func New(opts Options) (*Relay, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("%w: mqtt client", ErrMissingDependency)
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: snapshot source", ErrMissingDependency)
	}
	if opts.Actions == nil {
		return nil, fmt.Errorf("%w: actions", ErrMissingDependency)
	}

	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Relay{
		mqtt:      opts.MQTT,
		topics:    opts.Topics,
		source:    opts.Source,
		actions:   opts.Actions,
		qos:       opts.QoS,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		wake:      make(chan struct{}, 1),
		published: make(map[string]device.Device),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start subscribes to commands and to fleet snapshots. The current fleet is
// published immediately.
func (r *Relay) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	r.wg.Add(1)
	go r.publishLoop()

	sub, err := r.source.Subscribe(r)
	if err != nil {
		r.cancel()
		r.wg.Wait()
		return fmt.Errorf("subscribe to fleet: %w", err)
	}
	r.sub = sub

	commandTopic := r.topics.AllDeviceCommands()
	if err := r.mqtt.Subscribe(commandTopic, r.qos, r.handleMessage); err != nil {
		sub.Unsubscribe()
		r.cancel()
		r.wg.Wait()
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	r.logger.Info("mqtt relay started", "commands", commandTopic)
	return nil
}

// Stop unsubscribes from everything and waits for in-flight commands.
func (r *Relay) Stop() {
	r.stopMu.Lock()
	if r.stopped {
		r.stopMu.Unlock()
		return
	}
	r.stopped = true
	r.stopMu.Unlock()

	if r.sub != nil {
		r.sub.Unsubscribe()
	}
	if r.started.Load() && r.mqtt.IsConnected() {
		if err := r.mqtt.Unsubscribe(r.topics.AllDeviceCommands()); err != nil {
			r.logger.Warn("unsubscribe from commands failed", "error", err)
		}
	}

	r.cancel()
	r.wg.Wait()
	r.logger.Info("mqtt relay stopped")
}

// OnSnapshot implements fleet.Listener. It only records the snapshot; the
// publisher goroutine does the MQTT work.
func (r *Relay) OnSnapshot(devices []device.Device) {
	r.pendingMu.Lock()
	r.pending = devices
	r.pendingMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Relay) publishLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
			r.pendingMu.Lock()
			snapshot := r.pending
			r.pending = nil
			r.pendingMu.Unlock()

			r.publishChanged(snapshot)
		}
	}
}

// publishChanged publishes every device that differs from what was last
// published. A failed publish is retried with the next snapshot.
func (r *Relay) publishChanged(devices []device.Device) {
	for _, d := range devices {
		if prev, ok := r.published[d.ID]; ok && prev == d {
			continue
		}

		payload, err := json.Marshal(StateMessage{Device: d, Timestamp: r.now().UTC()})
		if err != nil {
			r.logger.Error("failed to marshal state", "device_id", d.ID, "error", err)
			continue
		}

		if err := r.mqtt.Publish(r.topics.DeviceState(d.ID), payload, r.qos, true); err != nil {
			r.logger.Warn("failed to publish state", "device_id", d.ID, "error", err)
			continue
		}

		r.published[d.ID] = d
		r.statesPublished.Add(1)
	}
}

// handleMessage receives a command and runs it in the background so paho's
// delivery goroutine is not held for the action latency.
func (r *Relay) handleMessage(topic string, payload []byte) error {
	id, ok := r.topics.DeviceIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		r.commandsFailed.Add(1)
		r.publishAck(id, newAckError(r.newID(), id, "", ErrCodeInvalidCommand,
			"payload is not a command object", r.now()))
		return fmt.Errorf("parse command: %w", err)
	}
	if cmd.RequestID == "" {
		cmd.RequestID = r.newID()
	}

	r.stopMu.RLock()
	defer r.stopMu.RUnlock()
	if r.stopped {
		return nil
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(id, cmd)
	}()
	return nil
}

// execute runs one command and publishes its ack.
func (r *Relay) execute(id string, cmd CommandMessage) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	r.logger.Info("received command", "request_id", cmd.RequestID, "device_id", id, "action", cmd.Action)

	d, err := r.dispatch(ctx, id, cmd)
	if err != nil {
		r.commandsFailed.Add(1)
		code := errorCode(err)
		r.logger.Warn("command failed", "request_id", cmd.RequestID, "device_id", id, "code", code, "error", err)
		r.publishAck(id, newAckError(cmd.RequestID, id, cmd.Action, code, err.Error(), r.now()))
		return
	}

	r.commandsHandled.Add(1)
	r.publishAck(id, newAck(cmd.RequestID, id, cmd.Action, d, r.now()))
}

func (r *Relay) dispatch(ctx context.Context, id string, cmd CommandMessage) (device.Device, error) {
	switch cmd.Action {
	case ActionPlaySound:
		return r.actions.PlaySound(ctx, id)
	case ActionLostMode:
		if cmd.Enabled == nil {
			return device.Device{}, ErrMissingEnabled
		}
		return r.actions.ToggleLostMode(ctx, id, *cmd.Enabled)
	case ActionWipe:
		return r.actions.Wipe(ctx, id)
	default:
		return device.Device{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// errorCode maps an action error onto an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrUnknownAction):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrMissingEnabled):
		return ErrCodeInvalidParameters
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCancelled
	default:
		return ErrCodeInternal
	}
}

func (r *Relay) publishAck(id string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		r.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := r.mqtt.Publish(r.topics.DeviceAck(id), payload, r.qos, false); err != nil {
		r.logger.Error("failed to publish ack", "device_id", id, "error", err)
	}
}

// Stats returns current relay counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Connected:       r.mqtt.IsConnected(),
		StatesPublished: r.statesPublished.Load(),
		CommandsHandled: r.commandsHandled.Load(),
		CommandsFailed:  r.commandsFailed.Load(),
	}
}
