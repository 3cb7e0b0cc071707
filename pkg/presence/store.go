// Package presence is the shared presence store: one JSON record per user in
// a NATS KV bucket, plus pub/sub topics carrying presence changes and
// notification events. Writes to a record are last-write-wins; two sessions
// for the same user can race and the later write sticks.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/MaciejkaG/lux-backend/pkg/otelhelper"
)

const bucketName = "PRESENCE"

// Record is the stored presence value for one user, keyed by public id.
type Record struct {
	Online bool   `json:"online"`
	Status string `json:"status"`
}

// Store wraps the shared NATS connection with the presence KV bucket and the
// deployment-wide topic namespace.
type Store struct {
	nc        *nats.Conn
	kv        nats.KeyValue
	namespace string
}

// NewStore binds to NATS and creates (or re-binds to) the presence KV bucket.
// The bucket uses memory storage: presence does not survive a broker restart,
// which pairs with the cold-start sweep in ClearNamespace.
func NewStore(nc *nats.Conn, namespace string) (*Store, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	kv, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  bucketName,
		History: 1,
		Storage: nats.MemoryStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s KV bucket: %w", bucketName, err)
	}
	return &Store{nc: nc, kv: kv, namespace: namespace}, nil
}

// SetJSON stores a JSON-encoded value under the topic's record key.
func (s *Store) SetJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.kv.Put(recordKey(topic), data)
	return err
}

// GetJSON loads the value stored under the topic's record key into out.
// Returns false with a nil error when no record exists.
func (s *Store) GetJSON(topic string, out any) (bool, error) {
	entry, err := s.kv.Get(recordKey(topic))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(entry.Value(), out)
}

// Publish sends a payload to every current subscriber of the topic. Publishing
// with no listeners delivers nothing and is not an error.
func (s *Store) Publish(topic string, payload []byte) error {
	return s.nc.Publish(topic, payload)
}

// PublishTraced is Publish with trace context propagated in message headers.
func (s *Store) PublishTraced(ctx context.Context, topic string, payload []byte) error {
	return otelhelper.TracedPublish(ctx, s.nc, topic, payload)
}

// ClearNamespace deletes every presence record under the configured namespace.
// Called once at process startup: presence state never survives a restart, and
// every reconnecting client re-establishes its own entry. Entries for clients
// that never reconnect are left to future writers to overwrite.
func (s *Store) ClearNamespace() (int, error) {
	keys, err := s.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	prefix := recordKey(s.PresenceTopic(""))
	deleted := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := s.kv.Delete(key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// NewSubscriber creates this session's own subscription channel. Publish
// traffic goes through the Store's shared connection; each session reads its
// subscribed topics from its own channel so the two never interleave.
func (s *Store) NewSubscriber() *Subscriber {
	return &Subscriber{
		nc:   s.nc,
		ch:   make(chan *nats.Msg, 64),
		subs: make(map[string]*nats.Subscription),
	}
}

// recordKey maps a topic to its KV key. KV keys cannot contain ':', so the
// separators become '.'; the wire-level topic names are unaffected.
func recordKey(topic string) string {
	return strings.ReplaceAll(topic, ":", ".")
}
