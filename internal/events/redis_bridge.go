package events

import (
	"context"
	"encoding/json"

	"github.com/brickly26/iMessage/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher is the write side of the bus. Managers publish through this
// interface so a deployment can swap in the redis-bridged publisher
// without the managers noticing.
type Publisher interface {
	Publish(topic string, ev Event)
}

const channelPrefix = "channel:"

// Envelope is the wire form an event takes on a redis channel. Origin
// identifies the publishing instance so it can skip its own envelopes;
// local delivery already happened before the republish.
type Envelope struct {
	Type    Type            `json:"type"`
	Topic   string          `json:"topic"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge fans local events out to redis pub/sub and injects events
// published by other instances into the local bus. Delivery stays
// best-effort: a redis failure never fails the originating mutation.
type Bridge struct {
	client *redis.Client
	bus    *Bus
	log    *logger.Logger
	id     string
}

func NewBridge(client *redis.Client, bus *Bus, log *logger.Logger) *Bridge {
	return &Bridge{client: client, bus: bus, log: log, id: uuid.New().String()}
}

// Publish delivers ev to the local bus, then republishes it so other
// instances see it too.
func (b *Bridge) Publish(topic string, ev Event) {
	b.bus.Publish(topic, ev)

	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Errorf("bridge: marshal %s: %v", ev.EventType(), err)
		return
	}
	env, err := json.Marshal(Envelope{Type: ev.EventType(), Topic: topic, Origin: b.id, Payload: payload})
	if err != nil {
		return
	}
	if err := b.client.Publish(context.Background(), channelPrefix+topic, env).Err(); err != nil {
		b.log.Warnf("bridge: publish to %s failed: %v", topic, err)
	}
}

// Run subscribes to the shared channel pattern and pumps remote events
// into the local bus until ctx is cancelled. Remote events go to the bus
// only, never back to redis, so they cannot loop.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.inject([]byte(msg.Payload))
		}
	}
}

func (b *Bridge) inject(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		b.log.Warnf("bridge: bad envelope: %v", err)
		return
	}
	if env.Origin == b.id {
		return
	}
	ev := decodeEvent(env.Type, env.Payload)
	if ev == nil {
		return
	}
	b.bus.Publish(env.Topic, ev)
}

func decodeEvent(t Type, payload []byte) Event {
	switch t {
	case TypeConversationCreated:
		var e ConversationCreated
		if err := json.Unmarshal(payload, &e); err == nil {
			return &e
		}
	case TypeConversationUpdated:
		var e ConversationUpdated
		if err := json.Unmarshal(payload, &e); err == nil {
			return &e
		}
	case TypeConversationDeleted:
		var e ConversationDeleted
		if err := json.Unmarshal(payload, &e); err == nil {
			return &e
		}
	case TypeMessageSent:
		var e MessageSent
		if err := json.Unmarshal(payload, &e); err == nil {
			return &e
		}
	case TypeFriendRequestSent:
		var e FriendRequestSent
		if err := json.Unmarshal(payload, &e); err == nil {
			return &e
		}
	case TypeFriendRequestAccepted:
		var e FriendRequestAccepted
		if err := json.Unmarshal(payload, &e); err == nil {
			return &e
		}
	case TypeFriendRequestDeclined:
		var e FriendRequestDeclined
		if err := json.Unmarshal(payload, &e); err == nil {
			return &e
		}
	}
	return nil
}
