package app

import (
	"fmt"
	"sync"
)

// SignalKind distinguishes inbound signals routed through the Bus.
type SignalKind int

const (
	SignalReady SignalKind = iota + 1
	SignalAnswer
	SignalDeparture
)

// Signal is an inbound participant event delivered to a listening scope.
type Signal struct {
	Kind   SignalKind
	UserID string
	Answer string
}

// Bus routes signals to short-lived scopes. A scope exists only while a
// barrier or round is listening; signals for a key with no open scope are
// dropped, which is how late answers and stray ready acks are ignored.
type Bus struct {
	mu     sync.Mutex
	scopes map[string]*Scope
}

func NewBus() *Bus {
	return &Bus{scopes: make(map[string]*Scope)}
}

// Scope is one owned publish/subscribe channel set. Close tears it down.
type Scope struct {
	key     string
	partyID string
	bus     *Bus
	signals chan Signal
	done    chan struct{}
	once    sync.Once
}

// Open registers a scope under key. It reports false if one is already open.
func (b *Bus) Open(key, partyID string) (*Scope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.scopes[key]; ok {
		return nil, false
	}
	s := &Scope{
		key:     key,
		partyID: partyID,
		bus:     b,
		signals: make(chan Signal, 32),
		done:    make(chan struct{}),
	}
	b.scopes[key] = s
	return s, true
}

// Publish delivers sig to the scope under key and reports whether anyone was listening.
func (b *Bus) Publish(key string, sig Signal) bool {
	b.mu.Lock()
	s, ok := b.scopes[key]
	b.mu.Unlock()
	if !ok {
		return false
	}
	return s.deliver(sig)
}

// PublishParty delivers sig to every open scope of partyID and returns how many received it.
func (b *Bus) PublishParty(partyID string, sig Signal) int {
	b.mu.Lock()
	targets := make([]*Scope, 0, 2)
	for _, s := range b.scopes {
		if s.partyID == partyID {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	n := 0
	for _, s := range targets {
		if s.deliver(sig) {
			n++
		}
	}
	return n
}

// IsOpen reports whether a scope is registered under key.
func (b *Bus) IsOpen(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.scopes[key]
	return ok
}

func (s *Scope) deliver(sig Signal) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.signals <- sig:
		return true
	case <-s.done:
		return false
	}
}

// Signals is the receive side of the scope. It is never closed; use Done.
func (s *Scope) Signals() <-chan Signal {
	return s.signals
}

// Done is closed once the scope is torn down.
func (s *Scope) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the scope and releases any blocked publishers.
func (s *Scope) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if s.bus.scopes[s.key] == s {
			delete(s.bus.scopes, s.key)
		}
		s.bus.mu.Unlock()
		close(s.done)
	})
}

func readyScopeKey(partyID string) string {
	return "ready:" + partyID
}

func roundScopeKey(partyID, quizID string, number int) string {
	return fmt.Sprintf("round:%s:%s:%d", partyID, quizID, number)
}
