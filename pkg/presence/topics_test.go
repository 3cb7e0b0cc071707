package presence

import "testing"

func testStore() *Store {
	return &Store{namespace: "lux"}
}

func TestTopicNaming(t *testing.T) {
	s := testStore()

	if got, want := s.PresenceTopic("abc123"), "lux:user_presence:abc123"; got != want {
		t.Errorf("PresenceTopic = %q, want %q", got, want)
	}
	if got, want := s.NotificationTopic("abc123"), "lux:user_notifications:abc123"; got != want {
		t.Errorf("NotificationTopic = %q, want %q", got, want)
	}
}

func TestFriendFromPresenceTopic(t *testing.T) {
	s := testStore()

	tests := []struct {
		name  string
		topic string
		want  string
		ok    bool
	}{
		{"presence topic", "lux:user_presence:abc123", "abc123", true},
		{"notification topic", "lux:user_notifications:abc123", "", false},
		{"wrong namespace", "other:user_presence:abc123", "", false},
		{"empty id", "lux:user_presence:", "", false},
		{"unrelated subject", "chat.general", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.FriendFromPresenceTopic(tt.topic)
			if ok != tt.ok || got != tt.want {
				t.Errorf("FriendFromPresenceTopic(%q) = (%q, %v), want (%q, %v)",
					tt.topic, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRecordKey(t *testing.T) {
	// KV keys cannot contain ':'; the mapping must be stable because every
	// writer and reader derives the key from the same topic string.
	if got, want := recordKey("lux:user_presence:abc123"), "lux.user_presence.abc123"; got != want {
		t.Errorf("recordKey = %q, want %q", got, want)
	}
}
