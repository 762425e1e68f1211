// Package bootstrap provides the connection acceptance and dialing
// machinery around transport-backed pipelines.
package bootstrap

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/orian/wangle/pipeline"
	"github.com/orian/wangle/transport"
)

// Pipe is the pipeline surface the bootstrap machinery works with: the
// inbound byte interface a transport drives, plus the lifecycle hooks needed
// to register the pipeline with a manager and tear it down. Any pipeline
// whose inbound edge reads []byte satisfies it.
type Pipe interface {
	transport.Receiver

	// Base returns the pipeline's identity and management handle
	Base() *pipeline.Base

	// SetManager registers the manager notified on DeletePipeline
	SetManager(m pipeline.Manager)

	// Destroy detaches the pipeline's handlers
	Destroy()
}

// member pairs a live pipeline with the transport that feeds it
type member struct {
	pipe Pipe
	tr   *transport.TCP
}

// Group tracks the live pipelines of a server or client and owns their
// teardown. It implements pipeline.Manager, so a handler calling
// DeletePipeline through its pipeline's Base removes the connection from
// the group, closes its transport and detaches its handlers.
type Group struct {
	mu      sync.RWMutex
	members map[*pipeline.Base]*member
	logger  zerolog.Logger
}

// NewGroup creates an empty group
func NewGroup(logger zerolog.Logger) *Group {
	return &Group{
		members: make(map[*pipeline.Base]*member),
		logger:  logger,
	}
}

// Add registers a pipeline and its transport with the group and installs
// the group as the pipeline's manager.
func (g *Group) Add(p Pipe, tr *transport.TCP) {
	p.SetManager(g)

	g.mu.Lock()
	g.members[p.Base()] = &member{pipe: p, tr: tr}
	g.mu.Unlock()
}

// DeletePipeline removes the pipeline from the group, closes its transport
// and destroys it. Unknown pipelines are ignored, so the call is safe to
// repeat. Implements pipeline.Manager.
func (g *Group) DeletePipeline(b *pipeline.Base) {
	g.mu.Lock()
	m := g.members[b]
	delete(g.members, b)
	g.mu.Unlock()

	if m == nil {
		return
	}

	if err := m.tr.Close(); err != nil {
		g.logger.Debug().Err(err).Msg("transport close during pipeline removal")
	}
	m.pipe.Destroy()
}

// Count returns the number of live pipelines
func (g *Group) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// CloseAll tears down every pipeline in the group
func (g *Group) CloseAll() {
	g.mu.Lock()
	members := make([]*member, 0, len(g.members))
	for _, m := range g.members {
		members = append(members, m)
	}
	g.members = make(map[*pipeline.Base]*member)
	g.mu.Unlock()

	for _, m := range members {
		if err := m.tr.Close(); err != nil {
			g.logger.Debug().Err(err).Msg("transport close during group shutdown")
		}
		m.tr.Wait()
		m.pipe.Destroy()
	}
}

// ForEach calls fn for every live pipeline. The snapshot is taken under
// the lock, the calls are not.
func (g *Group) ForEach(fn func(p Pipe, tr *transport.TCP)) {
	g.mu.RLock()
	members := make([]*member, 0, len(g.members))
	for _, m := range g.members {
		members = append(members, m)
	}
	g.mu.RUnlock()

	for _, m := range members {
		fn(m.pipe, m.tr)
	}
}
