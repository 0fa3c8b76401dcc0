package store

import (
	"sync/atomic"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// Publisher holds the currently published store. Readers always see either
// the previous store or a completely built new one.
type Publisher struct {
	current atomic.Pointer[Store]
}

// NewPublisher creates a publisher holding an empty store.
func NewPublisher(settings domain.EngineSettings) *Publisher {
	p := &Publisher{}
	p.current.Store(Empty(settings))
	return p
}

// Load returns the published store.
func (p *Publisher) Load() *Store {
	return p.current.Load()
}

// Publish replaces the published store.
func (p *Publisher) Publish(s *Store) {
	if s != nil {
		p.current.Store(s)
	}
}
