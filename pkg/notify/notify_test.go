package notify

import (
	"encoding/json"
	"testing"
)

func TestEncodeEvent(t *testing.T) {
	body, err := encodeEvent(KindFriendRequest, map[string]string{
		"public_id":    "abc123",
		"display_name": "Maciej",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		t.Fatalf("wire form is not valid JSON: %v", err)
	}
	if evt.Event != KindFriendRequest {
		t.Errorf("event kind = %q, want %q", evt.Event, KindFriendRequest)
	}

	var data map[string]string
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}
	if data["public_id"] != "abc123" {
		t.Errorf("data payload not forwarded verbatim: %v", data)
	}
}

func TestEncodeEvent_UnmarshalableData(t *testing.T) {
	if _, err := encodeEvent(KindFriendDeleted, make(chan int)); err == nil {
		t.Fatal("expected an error for unmarshalable data")
	}
}
