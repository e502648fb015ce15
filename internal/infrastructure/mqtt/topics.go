package mqtt

import "strings"

// DefaultTopicPrefix is the root of every find-my topic.
const DefaultTopicPrefix = "findmy"

// Topics builds the find-my MQTT topic tree under a configurable prefix.
// Using these helpers keeps topic naming consistent between the relay and
// anything that talks to it.
//
//	topics := mqtt.NewTopics("findmy")
//	topics.DeviceState("3")   // "findmy/state/3"
//	topics.AllDeviceCommands() // "findmy/command/+"
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder rooted at prefix. An empty prefix
// selects DefaultTopicPrefix; trailing slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// DeviceState returns the retained state topic for one device.
//
// Example: findmy/state/3
func (t Topics) DeviceState(deviceID string) string {
	return t.Prefix() + "/state/" + deviceID
}

// DeviceCommand returns the topic remote actions for one device arrive on.
//
// Example: findmy/command/3
func (t Topics) DeviceCommand(deviceID string) string {
	return t.Prefix() + "/command/" + deviceID
}

// DeviceAck returns the topic command results for one device are published on.
//
// Example: findmy/ack/3
func (t Topics) DeviceAck(deviceID string) string {
	return t.Prefix() + "/ack/" + deviceID
}

// SystemStatus returns the online/offline status topic, also used for the LWT.
//
// Example: findmy/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// AllDeviceStates matches every device state topic.
//
// Pattern: findmy/state/+
func (t Topics) AllDeviceStates() string {
	return t.Prefix() + "/state/+"
}

// AllDeviceCommands matches every device command topic.
//
// Pattern: findmy/command/+
func (t Topics) AllDeviceCommands() string {
	return t.Prefix() + "/command/+"
}

// AllTopics matches the whole tree. Use with caution.
//
// Pattern: findmy/#
func (t Topics) AllTopics() string {
	return t.Prefix() + "/#"
}

// DeviceIDFromTopic extracts the device ID from a state, command, or ack
// topic. ok is false when topic is not a per-device topic under this prefix.
func (t Topics) DeviceIDFromTopic(topic string) (id string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix()+"/")
	if !found {
		return "", false
	}
	kind, id, found := strings.Cut(rest, "/")
	if !found || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	switch kind {
	case "state", "command", "ack":
		return id, true
	default:
		return "", false
	}
}

// validPublishTopic reports whether topic can be published to.
// Wildcards are only legal in subscriptions.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
