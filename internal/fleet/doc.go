// Package fleet runs the live side of the Find-My core: the subscription
// broker, the simulation loop that drifts device telemetry, and the action
// service that performs remote actions on a single device.
//
// # Architecture
//
//	  Service.ToggleLostMode / Wipe           Simulator (every tick)
//	              │                                   │
//	              ▼                                   ▼
//	┌──────────────────────────────────────────────────────────────┐
//	│                     Broker.Commit (step lock)                │
//	│   1. mutate device.Registry                                  │
//	│   2. broadcast fresh snapshot to listeners, in order         │
//	└──────────────────────────────────────────────────────────────┘
//	              │
//	              ▼
//	  WebSocket clients · MQTT relay · telemetry recorder
//
// The simulation loop is reference counted by the broker: it starts when the
// first listener subscribes and stops when the last one leaves, so an idle
// process does no work.
//
// # Usage
//
//	broker := fleet.NewBroker(registry, fleet.NewSimulator(fleet.DefaultSimulationConfig()))
//	defer broker.Close()
//
//	sub, err := broker.Subscribe(fleet.ListenerFunc(func(devices []device.Device) {
//	    // render devices
//	}))
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
//	svc := fleet.NewService(broker, fleet.DefaultLatency())
//	dev, err := svc.ToggleLostMode(ctx, "3", true)
//
// # Thread Safety
//
// Every mutation and the broadcast that follows it run as one serialized
// step, so a listener never runs concurrently with itself and never sees a
// registry change that has not been broadcast. Listeners must not block and
// must not call Subscribe or Commit synchronously; Unsubscribe is safe.
package fleet
