// Package device provides the Device Registry for the Find-My fleet core.
//
// The registry is the single source of truth for the fleet: a fixed, ordered
// list of user devices (phones, tablets, trackers) with their last known
// battery, connectivity, and location. It is mutated by the simulation loop
// and by remote actions, and read by everything else through snapshots.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                        Device Registry                            │
//	│                                                                   │
//	│  ┌────────────────┐   ┌────────────────┐   ┌────────────────┐    │
//	│  │    Registry    │   │      Seed      │   │     Filter     │    │
//	│  │  (registry.go) │   │   (seed.go)    │   │  (filter.go)   │    │
//	│  │                │   │                │   │                │    │
//	│  │ • Snapshots    │   │ • Built-in 7   │   │ • Name search  │    │
//	│  │ • Replace      │   │ • YAML file    │   │ • Online only  │    │
//	│  │ • Atomic update│   │ • Validation   │   │ • Selection    │    │
//	│  └────────────────┘   └────────────────┘   └────────────────┘    │
//	└──────────────────────────────────────────────────────────────────┘
//	            │
//	            ▼
//	┌──────────────────────────┐
//	│  fleet.Broker / Service  │
//	│  • simulation ticks      │
//	│  • remote actions        │
//	└──────────────────────────┘
//
// # Usage
//
//	registry, err := device.NewRegistry(device.SeedDevices(time.Now()))
//	if err != nil {
//	    return err
//	}
//
//	all := registry.GetAll()             // deep copies, registry order
//	dev, err := registry.GetByID("3")    // ErrDeviceNotFound if absent
//
//	// Atomic read-modify-write (id is preserved)
//	updated, err := registry.Update("3", func(d *device.Device) {
//	    d.LostMode = true
//	})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by a
// mutex and every read returns an independent copy, so callers can never hold
// a writable alias to registry state.
package device
