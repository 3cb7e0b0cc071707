package main

import (
	"log/slog"

	"github.com/MaciejkaG/lux-backend/pkg/identity"
	"github.com/MaciejkaG/lux-backend/pkg/presence"
)

// recordReader reads stored presence records. Satisfied by *presence.Store.
type recordReader interface {
	GetJSON(topic string, out any) (bool, error)
}

// topicClient issues subscribe/unsubscribe operations for one session.
// Satisfied by *presence.Subscriber.
type topicClient interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
}

// friendSnapshot is one entry of a full_friend_presence event.
type friendSnapshot struct {
	FriendID string `json:"friend_id"`
	Online   bool   `json:"online"`
	Status   string `json:"status"`
}

// subscriptionManager owns one session's topic set and reconciles it against
// the current friend list. Driven from a single goroutine; the map is never
// shared across sessions.
type subscriptionManager struct {
	records       recordReader
	topics        topicClient
	ownTopic      string
	presenceTopic func(publicID string) string
	current       map[string]bool
}

func newSubscriptionManager(records recordReader, topics topicClient, ownTopic string, presenceTopic func(string) string) *subscriptionManager {
	return &subscriptionManager{
		records:       records,
		topics:        topics,
		ownTopic:      ownTopic,
		presenceTopic: presenceTopic,
		current:       make(map[string]bool),
	}
}

// reconcile recomputes the desired topic set from the friend list, applies the
// difference, and returns the presence snapshot for every friend, additions
// and holdovers alike, so the aggregate always reflects the store's state at
// reconciliation time. Individual subscribe/unsubscribe failures are logged
// and skipped; a failed subscribe is not tracked, so the next pass retries it.
func (m *subscriptionManager) reconcile(friends []identity.Friend) []friendSnapshot {
	desired := make(map[string]bool, len(friends)+1)
	desired[m.ownTopic] = true
	for _, f := range friends {
		desired[m.presenceTopic(f.PublicID)] = true
	}

	for topic := range m.current {
		if desired[topic] {
			continue
		}
		if err := m.topics.Unsubscribe(topic); err != nil {
			slog.Warn("Failed to unsubscribe stale topic", "topic", topic, "error", err)
		}
		delete(m.current, topic)
	}

	if !m.current[m.ownTopic] {
		if err := m.topics.Subscribe(m.ownTopic); err != nil {
			slog.Warn("Failed to subscribe to own notification topic", "topic", m.ownTopic, "error", err)
		} else {
			m.current[m.ownTopic] = true
		}
	}

	snapshots := make([]friendSnapshot, 0, len(friends))
	for _, f := range friends {
		topic := m.presenceTopic(f.PublicID)

		// Snapshot first so the client state starts from the store, then
		// subscribe so future changes stream in.
		var rec presence.Record
		found, err := m.records.GetJSON(topic, &rec)
		if err != nil {
			slog.Warn("Failed to read friend presence", "friend", f.PublicID, "error", err)
			rec = presence.Record{}
		} else if !found {
			rec = presence.Record{}
		}
		snapshots = append(snapshots, friendSnapshot{
			FriendID: f.PublicID,
			Online:   rec.Online,
			Status:   rec.Status,
		})

		if !m.current[topic] {
			if err := m.topics.Subscribe(topic); err != nil {
				slog.Warn("Failed to subscribe to friend presence", "friend", f.PublicID, "error", err)
			} else {
				m.current[topic] = true
			}
		}
	}

	return snapshots
}

// drop immediately unsubscribes a single topic, ahead of the next
// reconciliation pass. The session's own notification topic is never dropped.
func (m *subscriptionManager) drop(topic string) {
	if topic == m.ownTopic || !m.current[topic] {
		return
	}
	delete(m.current, topic)
	if err := m.topics.Unsubscribe(topic); err != nil {
		slog.Warn("Failed to unsubscribe dropped topic", "topic", topic, "error", err)
	}
}

// unsubscribeAll empties the topic set during teardown. Failures are logged
// and do not stop the remaining topics from being released.
func (m *subscriptionManager) unsubscribeAll() {
	for topic := range m.current {
		if err := m.topics.Unsubscribe(topic); err != nil {
			slog.Warn("Failed to unsubscribe during teardown", "topic", topic, "error", err)
		}
		delete(m.current, topic)
	}
}
