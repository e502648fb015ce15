// Package mqttrelay bridges the fleet core to an MQTT broker.
//
// Outbound, every device whose record changed is published retained on
// findmy/state/{id}, so a late subscriber always sees the current fleet.
// Inbound, JSON commands on findmy/command/{id} are executed through the
// action service and answered on findmy/ack/{id}:
//
//	→ findmy/command/3  {"action":"lost_mode","enabled":true,"request_id":"r-1"}
//	← findmy/ack/3      {"request_id":"r-1","device_id":"3","action":"lost_mode","status":"accepted",...}
//
// A failed command carries an error code: NOT_FOUND, INVALID_COMMAND,
// INVALID_PARAMETERS, CANCELLED, or INTERNAL_ERROR.
package mqttrelay
