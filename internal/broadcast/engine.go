// Package broadcast delivers room events to every connection attached to a
// resume room, across all server processes, through Redis pub/sub.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message is one outbound event as written to a connection.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data into a Message.
func NewMessage(event string, data any) (Message, error) {
	if data == nil {
		return Message{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Message{Event: event, Data: raw}, nil
}

type envelope struct {
	Room    string  `json:"room"`
	Except  string  `json:"except,omitempty"`
	Message Message `json:"message"`
}

var ErrNotStarted = errors.New("broadcast engine not started")

// Engine publishes room messages to Redis and relays everything it receives
// on the room channels to its local Hub. Local recipients are reached through
// the same subscription as remote ones, so each publisher's messages arrive
// in publish order everywhere.
type Engine struct {
	client *redis.Client
	prefix string
	hub    *Hub

	mu      sync.Mutex
	pubsub  *redis.PubSub
	done    chan struct{}
	started bool
}

// NewEngine builds an engine publishing on channels named
// <prefix>:room:<id>. It relays nothing until Start is called.
func NewEngine(client *redis.Client, prefix string) *Engine {
	if strings.TrimSpace(prefix) == "" {
		prefix = "resumebuilder"
	}
	return &Engine{
		client: client,
		prefix: prefix,
		hub:    NewHub(),
	}
}

func (e *Engine) channel(room string) string {
	return e.prefix + ":room:" + room
}

// Hub is the set of connections attached in this process.
func (e *Engine) Hub() *Hub {
	return e.hub
}

// Start subscribes to every room channel and begins relaying. It returns
// once Redis has confirmed the subscription.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}

	ps := e.client.PSubscribe(ctx, e.prefix+":room:*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe room channels: %w", err)
	}
	e.pubsub = ps
	e.started = true
	e.done = make(chan struct{})
	go e.run(ps.Channel(), e.done)
	return nil
}

func (e *Engine) run(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for m := range messages {
		var env envelope
		if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
			log.Printf("broadcast: discard malformed message on %s: %v", m.Channel, err)
			continue
		}
		if env.Room == "" {
			env.Room = strings.TrimPrefix(m.Channel, e.prefix+":room:")
		}
		for _, id := range e.hub.deliver(env.Room, env.Except, env.Message) {
			log.Printf("broadcast: dropped %s for conn %s in room %s", env.Message.Event, id, env.Room)
		}
	}
}

// Close stops the subscription and waits for the relay loop to exit.
// Publishing afterwards fails with ErrNotStarted.
func (e *Engine) Close() error {
	e.mu.Lock()
	ps := e.pubsub
	started := e.started
	done := e.done
	e.pubsub = nil
	e.started = false
	e.mu.Unlock()
	if !started || ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}

// Attach adds sub to room in this process.
func (e *Engine) Attach(room string, sub Subscriber) {
	e.hub.Attach(room, sub)
}

// Detach removes the connection with id from room in this process.
func (e *Engine) Detach(room, id string) {
	e.hub.Detach(room, id)
}

// ToRoomExcept delivers msg to every connection in room other than the one
// identified by except, on every process.
func (e *Engine) ToRoomExcept(ctx context.Context, room, except string, msg Message) error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	payload, err := json.Marshal(envelope{Room: room, Except: except, Message: msg})
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}
	if err := e.client.Publish(ctx, e.channel(room), payload).Err(); err != nil {
		return fmt.Errorf("publish %s to room %s: %w", msg.Event, room, err)
	}
	return nil
}

// ToRoom delivers msg to every connection in room.
func (e *Engine) ToRoom(ctx context.Context, room string, msg Message) error {
	return e.ToRoomExcept(ctx, room, "", msg)
}
