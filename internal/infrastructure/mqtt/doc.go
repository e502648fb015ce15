// Package mqtt provides MQTT connectivity for the find-my core.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect
//   - Message publishing with QoS and retain control
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic tree
//
//	findmy/state/{id}      retained device record (JSON)
//	findmy/command/{id}    remote action requests
//	findmy/ack/{id}        action results
//	findmy/system/status   retained online/offline status, also the LWT
//
// The prefix is configurable via mqtt.topic_prefix.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(client.Topics().DeviceState("3"), payload)
package mqtt
