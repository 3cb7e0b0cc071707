package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MaciejkaG/lux-backend/pkg/notify"
	"github.com/MaciejkaG/lux-backend/pkg/otelhelper"
	"github.com/MaciejkaG/lux-backend/pkg/presence"
	"github.com/MaciejkaG/lux-backend/pkg/token"
)

// closeCodeAuthFailed is the only defined abnormal closure code; everything
// else a client observes is a normal close.
const closeCodeAuthFailed = 3000

const (
	authFailReason = "Invalid token provided in Authorization header"
	writeWait      = 10 * time.Second
)

// sessionStore is the slice of the presence store one session drives.
// Satisfied by *presence.Store.
type sessionStore interface {
	SetJSON(topic string, v any) error
	GetJSON(topic string, out any) (bool, error)
	PublishTraced(ctx context.Context, topic string, payload []byte) error
	PresenceTopic(publicID string) string
	NotificationTopic(publicID string) string
	FriendFromPresenceTopic(topic string) (string, bool)
}

// storeSubscriber is the per-session subscription channel. Satisfied by
// *presence.Subscriber.
type storeSubscriber interface {
	Messages() <-chan *nats.Msg
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Close()
}

// session owns one live client connection: auth, presence publishing,
// subscription reconciliation, both message pumps, and teardown. Exactly one
// session exists per physical connection.
type session struct {
	id    string
	gw    *gateway
	store sessionStore
	conn  *websocket.Conn
	sub   storeSubscriber

	subject    string
	publicID   string
	notifTopic string
	subs       *subscriptionManager

	writeMu  sync.Mutex
	cancel   context.CancelFunc
	teardown sync.Once
}

// run drives the session through its lifecycle. authHeader is the
// Authorization value captured at the handshake.
func (s *session) run(ctx context.Context, authHeader string) {
	defer s.conn.Close()

	// Authenticating. One failed attempt terminates the connection; no state
	// beyond the sub-channel has been touched yet.
	credential, err := token.ExtractBearer(authHeader)
	if err == nil {
		s.subject, err = s.gw.verifier.Verify(credential)
	}
	if err != nil {
		s.gw.metrics.authFailures.Add(ctx, 1)
		slog.Warn("WebSocket auth failed", "session", s.id)
		s.closeWithCode(closeCodeAuthFailed, authFailReason)
		s.sub.Close()
		return
	}

	user, err := s.gw.dir.GetUser(ctx, s.subject)
	if err != nil {
		slog.Error("Failed to resolve user for session", "session", s.id, "error", err)
		s.sub.Close()
		return
	}
	s.publicID = user.PublicID
	s.notifTopic = s.store.NotificationTopic(s.publicID)
	s.subs = newSubscriptionManager(s.store, s.sub, s.notifTopic, s.store.PresenceTopic)

	ctx, s.cancel = context.WithCancel(ctx)
	defer s.close()

	s.gw.metrics.connections.Add(ctx, 1)
	s.gw.sessions.Add(1)
	defer s.gw.sessions.Add(-1)
	slog.Info("WebSocket client connected and authenticated", "session", s.id, "user", s.publicID)

	// Active: initial presence, first reconciliation, then steady state.
	if err := s.setPresence(ctx, true, ""); err != nil {
		slog.Warn("Failed to write initial presence", "session", s.id, "error", err)
	}
	s.reconcile(ctx)
	s.sendJSON(serverMessage{Event: "listening", Data: struct{}{}})

	go s.readPump()

	ticker := time.NewTicker(s.gw.reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.sub.Messages():
			if !ok {
				return
			}
			s.handleStoreMessage(msg)
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// readPump consumes inbound client frames until the connection drops, then
// stops the event loop.
func (s *session) readPump() {
	defer s.cancel()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleClientMessage(raw)
	}
}

// handleClientMessage processes one inbound frame. Unparseable or unrecognized
// frames are discarded without a response.
func (s *session) handleClientMessage(raw []byte) {
	status, ok := statusUpdate(raw)
	if !ok {
		return
	}
	// A client-set status always implies online.
	if err := s.setPresence(context.Background(), true, status); err != nil {
		slog.Warn("Failed to apply presence update", "session", s.id, "error", err)
		return
	}
	s.gw.metrics.presenceUpdates.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)))
}

// handleStoreMessage processes one message from the session's subscribed
// topics. A bad payload is logged and skipped, never fatal to the pump.
func (s *session) handleStoreMessage(msg *nats.Msg) {
	_, span := otelhelper.StartConsumerSpan(context.Background(), msg, "deliver to client")
	defer span.End()

	if msg.Subject == s.notifTopic {
		var evt notify.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			slog.Warn("Discarding malformed notification", "session", s.id, "error", err)
			return
		}
		if evt.Event == "" {
			return
		}
		if evt.Event == notify.KindFriendDeleted {
			s.dropDeletedFriend(evt.Data)
		}
		s.sendJSON(serverMessage{Event: evt.Event, Data: evt.Data})
		return
	}

	friendID, ok := s.store.FriendFromPresenceTopic(msg.Subject)
	if !ok {
		return
	}
	var rec presence.Record
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		slog.Warn("Discarding malformed presence message", "session", s.id, "topic", msg.Subject, "error", err)
		return
	}
	s.sendJSON(serverMessage{Event: "friend_presence_update", Data: friendSnapshot{
		FriendID: friendID,
		Online:   rec.Online,
		Status:   rec.Status,
	}})
}

// dropDeletedFriend unsubscribes a removed friend's presence topic right away
// instead of waiting for the next reconciliation pass.
func (s *session) dropDeletedFriend(data json.RawMessage) {
	var payload struct {
		PublicID string `json:"public_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.PublicID == "" {
		return
	}
	s.subs.drop(s.store.PresenceTopic(payload.PublicID))
}

// reconcile refreshes the topic set from the current friend list and sends the
// aggregated snapshot. Any lookup failure skips the whole pass and the next
// tick retries; no partial update is ever applied.
func (s *session) reconcile(ctx context.Context) {
	start := time.Now()
	friends, err := s.gw.dir.GetActiveFriends(ctx, s.subject)
	if err != nil {
		slog.Warn("Skipping reconciliation pass", "session", s.id, "error", err)
		return
	}

	snapshots := s.subs.reconcile(friends)
	s.sendJSON(serverMessage{Event: "full_friend_presence", Data: snapshots})

	s.gw.metrics.reconciles.Add(ctx, 1)
	s.gw.metrics.reconcileDuration.Record(ctx, time.Since(start).Seconds())
}

// setPresence writes the record to the store and publishes the change on the
// session's presence topic.
func (s *session) setPresence(ctx context.Context, online bool, status string) error {
	rec := presence.Record{Online: online, Status: status}
	topic := s.store.PresenceTopic(s.publicID)
	if err := s.store.SetJSON(topic, rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.store.PublishTraced(ctx, topic, data)
}

// close tears the session down exactly once, on every exit path: stop the
// reconciliation timer (the ticker stops with the event loop), release every
// subscription, close the sub-channel, then the best-effort offline write.
// Each step runs even if an earlier one fails.
func (s *session) close() {
	s.teardown.Do(func() {
		s.cancel()
		s.subs.unsubscribeAll()
		s.sub.Close()
		if err := s.setPresence(context.Background(), false, ""); err != nil {
			slog.Warn("Failed to publish offline presence", "session", s.id, "error", err)
		}
		slog.Info("WebSocket client disconnected", "session", s.id, "user", s.publicID)
	})
}

// sendJSON writes one frame, serialized across the pumps. Write failures are
// not fatal here; the read side notices the dead connection and ends the session.
func (s *session) sendJSON(msg serverMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		slog.Debug("WebSocket write failed", "session", s.id, "error", err)
		return
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		slog.Debug("WebSocket write failed", "session", s.id, "error", err)
	}
}

// closeWithCode sends a close frame with the given code and reason before the
// deferred connection close.
func (s *session) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		slog.Debug("Failed to write close frame", "session", s.id, "error", err)
	}
}
