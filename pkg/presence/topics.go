package presence

import "strings"

// Topic naming is a deployment-wide contract shared with every producer:
// <namespace>:user_presence:<publicId> and <namespace>:user_notifications:<publicId>.

// PresenceTopic returns the presence topic for a user's public id.
func (s *Store) PresenceTopic(publicID string) string {
	return s.namespace + ":user_presence:" + publicID
}

// NotificationTopic returns the personal notification topic for a user's public id.
func (s *Store) NotificationTopic(publicID string) string {
	return s.namespace + ":user_notifications:" + publicID
}

// FriendFromPresenceTopic extracts the public id from a presence topic.
// Returns false for subjects outside the presence namespace.
func (s *Store) FriendFromPresenceTopic(topic string) (string, bool) {
	prefix := s.namespace + ":user_presence:"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := topic[len(prefix):]
	if id == "" {
		return "", false
	}
	return id, true
}
