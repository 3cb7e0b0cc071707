package presence

import "github.com/nats-io/nats.go"

// Subscriber is one session's private subscription channel. All subscribed
// topics deliver into a single buffered message channel owned by the session.
// Not safe for concurrent use: a session drives it from one goroutine, which
// is the single-writer assumption the engine is built on.
type Subscriber struct {
	nc   *nats.Conn
	ch   chan *nats.Msg
	subs map[string]*nats.Subscription
}

// Messages returns the inbound message channel. The channel is never closed;
// after Close no further messages arrive on it.
func (sub *Subscriber) Messages() <-chan *nats.Msg {
	return sub.ch
}

// Subscribe adds a topic to the channel. Subscribing to an already-subscribed
// topic is a no-op.
func (sub *Subscriber) Subscribe(topic string) error {
	if _, ok := sub.subs[topic]; ok {
		return nil
	}
	ns, err := sub.nc.ChanSubscribe(topic, sub.ch)
	if err != nil {
		return err
	}
	sub.subs[topic] = ns
	return nil
}

// Unsubscribe removes a topic. Unknown topics are a no-op.
func (sub *Subscriber) Unsubscribe(topic string) error {
	ns, ok := sub.subs[topic]
	if !ok {
		return nil
	}
	delete(sub.subs, topic)
	return ns.Unsubscribe()
}

// Close unsubscribes every topic, releasing the channel. Errors on individual
// topics are ignored; by the time Close matters the connection is going away.
func (sub *Subscriber) Close() {
	for topic, ns := range sub.subs {
		_ = ns.Unsubscribe()
		delete(sub.subs, topic)
	}
}
