package main

import (
	"encoding/json"
	"testing"
)

func TestStatusUpdate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"valid lux", `{"action":"presence_update","data":{"status":"lux"}}`, "lux", true},
		{"valid playing", `{"action":"presence_update","data":{"status":"projecto-playing"}}`, "projecto-playing", true},
		{"status not in allow-list", `{"action":"presence_update","data":{"status":"invalid-status"}}`, "", false},
		{"empty status", `{"action":"presence_update","data":{"status":""}}`, "", false},
		{"missing data", `{"action":"presence_update"}`, "", false},
		{"unknown action", `{"action":"do_something","data":{"status":"lux"}}`, "", false},
		{"missing action", `{"data":{"status":"lux"}}`, "", false},
		{"not json", `this is not json`, "", false},
		{"empty payload", ``, "", false},
		{"wrong status type", `{"action":"presence_update","data":{"status":42}}`, "", false},
		{"json array", `[1,2,3]`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := statusUpdate([]byte(tt.raw))
			if ok != tt.ok || got != tt.want {
				t.Errorf("statusUpdate(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFriendPresenceUpdateWireShape(t *testing.T) {
	raw, err := json.Marshal(serverMessage{
		Event: "friend_presence_update",
		Data:  friendSnapshot{FriendID: "abc123", Online: true, Status: "lux"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"event":"friend_presence_update","data":{"friend_id":"abc123","online":true,"status":"lux"}}`
	if string(raw) != want {
		t.Errorf("wire form = %s, want %s", raw, want)
	}
}

func TestListeningWireShape(t *testing.T) {
	raw, err := json.Marshal(serverMessage{Event: "listening", Data: struct{}{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"event":"listening","data":{}}` {
		t.Errorf("wire form = %s", raw)
	}
}
