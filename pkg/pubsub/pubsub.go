package pubsub

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
)

// Topics a subscriber receives. A nil Topics receives every topic.
type Topics map[string]struct{}

func NewTopics(names ...string) Topics {
	t := make(Topics, len(names))
	for _, n := range names {
		t[n] = struct{}{}
	}
	return t
}

type Subscriber struct {
	ch     chan []byte
	closed chan struct{}
	once   sync.Once
}

// NewSubscriber writes published messages to conn until done is closed, a write fails
// or the subscriber is closed. conn is closed when it stops.
func NewSubscriber(done <-chan struct{}, conn io.WriteCloser) *Subscriber {
	s := &Subscriber{
		ch:     make(chan []byte, 10),
		closed: make(chan struct{}),
	}
	go func() {
		defer func() { _ = conn.Close() }()
		for {
			select {
			// For incoming server requests, the context is canceled when the client's connection closes,
			// the request is canceled (with HTTP/2), or when the ServeHTTP method returns.
			case <-done:
				return
			case <-s.closed:
				return
			case b := <-s.ch:
				if _, err := conn.Write(b); err != nil {
					return
				}
			}
		}
	}()
	return s
}

func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.closed) })
}

type PubSub struct {
	subscribers sync.Map
	count       atomic.Int64
}

func NewPubSub() *PubSub {
	return new(PubSub)
}

// Subscribe adds the subscriber or replaces its topics.
func (p *PubSub) Subscribe(s *Subscriber, topics Topics) {
	if _, loaded := p.subscribers.Swap(s, topics); !loaded {
		p.count.Add(1)
	}
}

func (p *PubSub) Evict(s *Subscriber) {
	if _, loaded := p.subscribers.LoadAndDelete(s); loaded {
		p.count.Add(-1)
	}
}

func (p *PubSub) EvictAndClose(s *Subscriber) {
	p.Evict(s)
	s.Close()
}

// Len returns the number of subscribers.
func (p *PubSub) Len() int {
	return int(p.count.Load())
}

// Publish sends data as JSON to the subscribers of topic. An empty topic reaches every
// subscriber. A subscriber that can not keep up is evicted and closed.
func (p *PubSub) Publish(data any, topic string) (err error) {
	var mb []byte
	p.subscribers.Range(func(key, value any) bool {
		if topic != "" {
			if topics := value.(Topics); topics != nil {
				if _, ok := topics[topic]; !ok {
					return true
				}
			}
		}
		if mb == nil {
			if mb, err = json.Marshal(data); err != nil {
				return false
			}
		}
		s := key.(*Subscriber)
		select {
		case s.ch <- mb:
		default:
			p.EvictAndClose(s)
		}
		return true
	})
	return err
}
