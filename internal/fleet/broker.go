package fleet

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/findmy-core/internal/device"
)

// Logger defines the logging interface used by the fleet components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener receives fleet snapshots.
//
// Each call gets its own deep copy of the registry, which the listener may
// keep or modify. OnSnapshot runs on the broadcasting goroutine and must not
// block.
type Listener interface {
	OnSnapshot(devices []device.Device)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(devices []device.Device)

// OnSnapshot implements Listener.
func (f ListenerFunc) OnSnapshot(devices []device.Device) {
	f(devices)
}

// Subscription is the handle returned by Broker.Subscribe.
type Subscription struct {
	broker   *Broker
	listener Listener
	once     sync.Once
}

// Unsubscribe removes the listener. It is idempotent and may be called from
// inside the listener itself; a broadcast already in progress still completes
// its pass over the listeners it started with.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

// simLoop is one running instance of the simulation ticker.
type simLoop struct {
	stop chan struct{}
	done chan struct{}
}

// Broker fans registry snapshots out to listeners and owns the lifecycle of
// the simulation loop.
//
// Lock ordering: stepMu is always acquired before subsMu.
type Broker struct {
	registry *device.Registry
	sim      *Simulator
	logger   Logger

	// stepMu serializes every mutate+broadcast step and every delivery.
	stepMu sync.Mutex

	// subsMu protects subs, loop, and closed. subs is copy-on-write so a
	// broadcast can iterate a stable slice while listeners come and go.
	subsMu sync.Mutex
	subs   []*Subscription
	loop   *simLoop
	closed bool

	ticks      atomic.Uint64
	broadcasts atomic.Uint64
}

// NewBroker creates a broker over the given registry. The simulator drives
// the periodic loop that runs while at least one listener is subscribed.
func NewBroker(registry *device.Registry, sim *Simulator) *Broker {
	return &Broker{
		registry: registry,
		sim:      sim,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the broker.
func (b *Broker) SetLogger(logger Logger) {
	b.logger = logger
}

// Registry returns the registry the broker publishes.
func (b *Broker) Registry() *device.Registry {
	return b.registry
}

// Subscribe registers a listener and delivers the current snapshot to it
// before returning. The first subscriber starts the simulation loop.
func (b *Broker) Subscribe(l Listener) (*Subscription, error) {
	if l == nil {
		return nil, ErrNilListener
	}

	b.stepMu.Lock()
	defer b.stepMu.Unlock()

	b.subsMu.Lock()
	if b.closed {
		b.subsMu.Unlock()
		return nil, ErrBrokerClosed
	}
	sub := &Subscription{broker: b, listener: l}
	next := make([]*Subscription, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, sub)
	count := len(b.subs)
	if b.loop == nil {
		b.startLoopLocked()
	}
	b.subsMu.Unlock()

	b.logger.Debug("listener subscribed", "subscribers", count)
	b.deliver(sub, b.registry.GetAll())
	return sub, nil
}

// remove drops a subscription and stops the loop if it was the last one.
func (b *Broker) remove(target *Subscription) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	next := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s != target {
			next = append(next, s)
		}
	}
	b.subs = next

	if len(b.subs) == 0 {
		b.stopLoopLocked()
	}
	b.logger.Debug("listener unsubscribed", "subscribers", len(b.subs))
}

// Broadcast delivers a fresh snapshot to every listener in subscription order.
func (b *Broker) Broadcast() {
	b.stepMu.Lock()
	defer b.stepMu.Unlock()
	b.broadcastLocked()
}

// Commit runs mutate against the registry and, if it succeeds, broadcasts the
// resulting snapshot as part of the same step. A failing mutate broadcasts
// nothing and its error is returned unchanged.
func (b *Broker) Commit(mutate func(r *device.Registry) error) error {
	b.stepMu.Lock()
	defer b.stepMu.Unlock()

	if b.isClosed() {
		return ErrBrokerClosed
	}
	if err := mutate(b.registry); err != nil {
		return err
	}
	b.broadcastLocked()
	return nil
}

// broadcastLocked must be called with stepMu held.
func (b *Broker) broadcastLocked() {
	b.subsMu.Lock()
	subs := b.subs
	b.subsMu.Unlock()

	if len(subs) == 0 {
		return
	}

	snapshot := b.registry.GetAll()
	for _, s := range subs {
		b.deliver(s, device.CloneAll(snapshot))
	}
	b.broadcasts.Add(1)
}

// deliver invokes one listener, containing any panic it raises.
func (b *Broker) deliver(s *Subscription, devices []device.Device) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panic recovered", "panic", r)
		}
	}()
	s.listener.OnSnapshot(devices)
}

// startLoopLocked must be called with subsMu held.
func (b *Broker) startLoopLocked() {
	l := &simLoop{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	b.loop = l
	go b.runLoop(l)
	b.logger.Info("simulation loop started", "interval", b.sim.Interval())
}

// stopLoopLocked must be called with subsMu held. It does not wait for the
// loop goroutine because it may be running on it (Unsubscribe from inside a
// listener during a tick).
func (b *Broker) stopLoopLocked() {
	if b.loop == nil {
		return
	}
	close(b.loop.stop)
	b.loop = nil
	b.logger.Info("simulation loop stopped")
}

func (b *Broker) runLoop(l *simLoop) {
	defer close(l.done)

	ticker := time.NewTicker(b.sim.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			b.tick(l)
		}
	}
}

// tick runs one simulation step. A loop that has been stopped while waiting
// for the step lock does nothing.
func (b *Broker) tick(l *simLoop) {
	b.stepMu.Lock()
	defer b.stepMu.Unlock()

	b.subsMu.Lock()
	current := b.loop == l
	b.subsMu.Unlock()
	if !current {
		return
	}

	changed := b.sim.Tick(b.registry)
	b.ticks.Add(1)
	b.logger.Debug("simulation tick", "changed", changed)
	b.broadcastLocked()
}

// Close stops the simulation loop and drops every listener. It waits for the
// loop goroutine to exit and must not be called from inside a listener.
func (b *Broker) Close() {
	b.subsMu.Lock()
	if b.closed {
		b.subsMu.Unlock()
		return
	}
	b.closed = true
	l := b.loop
	b.stopLoopLocked()
	b.subs = nil
	b.subsMu.Unlock()

	if l != nil {
		<-l.done
	}
}

func (b *Broker) isClosed() bool {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	return b.closed
}

// SubscriberCount returns the number of active listeners.
func (b *Broker) SubscriberCount() int {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	return len(b.subs)
}

// Running reports whether the simulation loop is active.
func (b *Broker) Running() bool {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	return b.loop != nil
}

// Ticks returns the number of simulation ticks executed so far.
func (b *Broker) Ticks() uint64 {
	return b.ticks.Load()
}

// Broadcasts returns the number of broadcast passes delivered so far.
func (b *Broker) Broadcasts() uint64 {
	return b.broadcasts.Load()
}
