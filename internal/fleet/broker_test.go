package fleet

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/findmy-core/internal/device"
)

// recorder is a Listener that keeps every snapshot it receives.
type recorder struct {
	mu        sync.Mutex
	snapshots [][]device.Device
}

func (r *recorder) OnSnapshot(devices []device.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, devices)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() []device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

// newIdleBroker returns a broker whose loop never ticks during a test.
func newIdleBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker(testRegistry(t), testSimulator(time.Hour))
	t.Cleanup(b.Close)
	return b
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestBroker_SubscribeDeliversImmediately(t *testing.T) {
	b := newIdleBroker(t)
	rec := &recorder{}

	sub, err := b.Subscribe(rec)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	if rec.count() != 1 {
		t.Fatalf("snapshots after Subscribe = %d, want 1", rec.count())
	}
	if got := len(rec.last()); got != 7 {
		t.Errorf("initial snapshot has %d devices, want 7", got)
	}
	if !b.Running() {
		t.Error("Running() = false after first Subscribe")
	}
}

func TestBroker_SubscribeNil(t *testing.T) {
	b := newIdleBroker(t)
	if _, err := b.Subscribe(nil); !errors.Is(err, ErrNilListener) {
		t.Errorf("Subscribe(nil) error = %v, want ErrNilListener", err)
	}
}

func TestBroker_SnapshotsAreIndependent(t *testing.T) {
	b := newIdleBroker(t)
	first, second := &recorder{}, &recorder{}

	sub1, _ := b.Subscribe(first)
	defer sub1.Unsubscribe()
	sub2, _ := b.Subscribe(second)
	defer sub2.Unsubscribe()

	b.Broadcast()

	first.last()[0].Name = "tampered"
	if second.last()[0].Name == "tampered" {
		t.Error("listeners share snapshot backing array")
	}
	d, _ := b.Registry().GetByID("1")
	if d.Name == "tampered" {
		t.Error("listener mutation reached the registry")
	}
}

func TestBroker_BroadcastOrder(t *testing.T) {
	b := newIdleBroker(t)

	var mu sync.Mutex
	var order []string
	listen := func(name string) ListenerFunc {
		return func([]device.Device) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	for _, name := range []string{"a", "b", "c"} {
		sub, err := b.Subscribe(listen(name))
		if err != nil {
			t.Fatalf("Subscribe(%s) error = %v", name, err)
		}
		defer sub.Unsubscribe()
	}

	mu.Lock()
	order = nil
	mu.Unlock()

	b.Broadcast()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestBroker_LoopLifecycle(t *testing.T) {
	b := NewBroker(testRegistry(t), testSimulator(10*time.Millisecond))
	defer b.Close()

	if b.Running() {
		t.Fatal("Running() = true before any subscriber")
	}

	rec := &recorder{}
	sub1, _ := b.Subscribe(rec)
	sub2, _ := b.Subscribe(ListenerFunc(func([]device.Device) {}))

	// Initial snapshot plus one per tick.
	waitFor(t, 2*time.Second, func() bool { return rec.count() >= 4 })
	if b.Ticks() < 3 {
		t.Errorf("Ticks() = %d, want at least 3", b.Ticks())
	}

	sub1.Unsubscribe()
	if !b.Running() {
		t.Error("Running() = false while a subscriber remains")
	}

	sub2.Unsubscribe()
	sub2.Unsubscribe() // idempotent
	if b.Running() {
		t.Error("Running() = true after last Unsubscribe")
	}

	// Broadcast takes the step lock, so any tick in flight has finished.
	b.Broadcast()
	ticks := b.Ticks()
	snapshots := rec.count()

	time.Sleep(60 * time.Millisecond)
	if b.Ticks() != ticks {
		t.Errorf("Ticks() advanced from %d to %d with no subscribers", ticks, b.Ticks())
	}
	if rec.count() != snapshots {
		t.Error("unsubscribed listener still receives snapshots")
	}

	// A new subscriber restarts the loop.
	sub3, _ := b.Subscribe(ListenerFunc(func([]device.Device) {}))
	defer sub3.Unsubscribe()
	waitFor(t, 2*time.Second, func() bool { return b.Ticks() > ticks })
}

func TestBroker_UnsubscribeFromListener(t *testing.T) {
	b := NewBroker(testRegistry(t), testSimulator(5*time.Millisecond))
	defer b.Close()

	subCh := make(chan *Subscription, 1)
	done := make(chan struct{})
	calls := 0
	listener := ListenerFunc(func([]device.Device) {
		calls++
		if calls == 3 {
			(<-subCh).Unsubscribe()
			close(done)
		}
	})

	sub, err := b.Subscribe(listener)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	subCh <- sub

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never unsubscribed itself")
	}

	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", b.SubscriberCount())
	}
}

func TestBroker_ListenerPanicContained(t *testing.T) {
	b := newIdleBroker(t)

	subPanic, err := b.Subscribe(ListenerFunc(func([]device.Device) { panic("boom") }))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer subPanic.Unsubscribe()

	rec := &recorder{}
	sub, _ := b.Subscribe(rec)
	defer sub.Unsubscribe()

	b.Broadcast()
	if rec.count() != 2 {
		t.Errorf("snapshots = %d, want 2 despite panicking neighbour", rec.count())
	}
}

func TestBroker_Commit(t *testing.T) {
	b := newIdleBroker(t)
	rec := &recorder{}
	sub, _ := b.Subscribe(rec)
	defer sub.Unsubscribe()

	t.Run("success broadcasts", func(t *testing.T) {
		before := rec.count()
		err := b.Commit(func(r *device.Registry) error {
			_, err := r.Update("3", func(d *device.Device) { d.LostMode = true })
			return err
		})
		if err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if rec.count() != before+1 {
			t.Errorf("snapshots = %d, want %d", rec.count(), before+1)
		}
		if !rec.last()[2].LostMode {
			t.Error("broadcast snapshot missing committed change")
		}
	})

	t.Run("failure broadcasts nothing", func(t *testing.T) {
		before := rec.count()
		err := b.Commit(func(r *device.Registry) error {
			_, err := r.Update("missing", func(*device.Device) {})
			return err
		})
		if !errors.Is(err, device.ErrDeviceNotFound) {
			t.Errorf("Commit() error = %v, want ErrDeviceNotFound", err)
		}
		if rec.count() != before {
			t.Errorf("snapshots = %d, want %d", rec.count(), before)
		}
	})
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker(testRegistry(t), testSimulator(5*time.Millisecond))
	rec := &recorder{}
	if _, err := b.Subscribe(rec); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	b.Close()
	b.Close() // idempotent

	if b.Running() {
		t.Error("Running() = true after Close")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after Close, want 0", b.SubscriberCount())
	}
	if _, err := b.Subscribe(rec); !errors.Is(err, ErrBrokerClosed) {
		t.Errorf("Subscribe() after Close error = %v, want ErrBrokerClosed", err)
	}
	if err := b.Commit(func(*device.Registry) error { return nil }); !errors.Is(err, ErrBrokerClosed) {
		t.Errorf("Commit() after Close error = %v, want ErrBrokerClosed", err)
	}
}
