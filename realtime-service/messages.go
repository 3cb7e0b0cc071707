package main

import "encoding/json"

// Statuses a client may set through presence_update. Anything else leaves the
// stored record untouched.
var allowedStatuses = map[string]bool{
	"lux":              true,
	"projecto-playing": true,
}

// clientMessage is the only inbound frame shape: {action, data}.
type clientMessage struct {
	Action string `json:"action"`
	Data   struct {
		Status string `json:"status"`
	} `json:"data"`
}

// serverMessage is every outbound frame shape: {event, data}.
type serverMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// statusUpdate parses an inbound frame and returns the validated status of a
// presence_update action. Unparseable frames, unknown actions, and statuses
// outside the allow-list all return ok=false and are otherwise ignored; a bad
// frame must never surface an error to the client.
func statusUpdate(raw []byte) (string, bool) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", false
	}
	if msg.Action != "presence_update" {
		return "", false
	}
	if !allowedStatuses[msg.Data.Status] {
		return "", false
	}
	return msg.Data.Status, true
}
