package session

import (
	"context"
	"sync"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/obs"
	"merosamaj.org/internal/stream"
)

// Source delivers identity change notifications.
type Source interface {
	Subscribe(ctx context.Context) <-chan stream.Event
}

// Lookup reloads an identity by id. A nil identity with no error means
// the account no longer exists.
type Lookup interface {
	Lookup(ctx context.Context, id string) (*identity.Identity, error)
}

// Provider follows one identity and republishes its State whenever the
// identity signs out or its profile changes. It holds exactly one
// subscription for its lifetime and is the only writer of its state.
type Provider struct {
	resolver *Resolver
	lookup   Lookup

	mu      sync.RWMutex
	state   State
	tracked string

	updates chan State
	ready   chan struct{}
	once    sync.Once
	cancel  context.CancelFunc
	done    chan struct{}
}

// Open subscribes to src and starts resolving initial. The returned
// provider reports Loading until the first resolution completes.
func Open(ctx context.Context, src Source, resolver *Resolver, lookup Lookup, initial *identity.Identity) *Provider {
	ctx, cancel := context.WithCancel(ctx)
	p := &Provider{
		resolver: resolver,
		lookup:   lookup,
		state:    Pending(),
		updates:  make(chan State, 1),
		ready:    make(chan struct{}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if initial != nil {
		p.tracked = initial.ID
	}
	events := src.Subscribe(ctx)
	go p.run(ctx, events, initial)
	return p
}

// State returns the latest snapshot.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Updates yields each newly published state. Only the most recent
// unread state is kept. The channel closes when the provider stops.
func (p *Provider) Updates() <-chan State {
	return p.updates
}

// Wait blocks until the first resolution completes or ctx ends.
func (p *Provider) Wait(ctx context.Context) (State, error) {
	select {
	case <-p.ready:
		return p.State(), nil
	case <-ctx.Done():
		return p.State(), ctx.Err()
	}
}

// Close releases the subscription and waits for the worker to exit.
func (p *Provider) Close() {
	p.cancel()
	<-p.done
}

func (p *Provider) run(ctx context.Context, events <-chan stream.Event, initial *identity.Identity) {
	defer close(p.done)
	defer close(p.updates)

	p.publish(p.resolver.Resolve(ctx, initial))

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			p.handle(ctx, evt)
		}
	}
}

func (p *Provider) handle(ctx context.Context, evt stream.Event) {
	p.mu.RLock()
	tracked := p.tracked
	p.mu.RUnlock()
	if tracked == "" || evt.IdentityID != tracked {
		return
	}

	if evt.Kind == stream.KindSignedOut {
		p.mu.Lock()
		p.tracked = ""
		p.mu.Unlock()
		p.publish(p.resolver.Resolve(ctx, nil))
		return
	}

	ident, err := p.lookup.Lookup(ctx, tracked)
	if err != nil {
		obs.Error("session identity reload failed", map[string]any{"identity_id": tracked, "err": err})
		return
	}
	if ident == nil {
		p.mu.Lock()
		p.tracked = ""
		p.mu.Unlock()
	}
	p.publish(p.resolver.Resolve(ctx, ident))
}

func (p *Provider) publish(st State) {
	st.Loading = false
	p.mu.Lock()
	p.state = st
	p.mu.Unlock()
	p.once.Do(func() { close(p.ready) })

	select {
	case p.updates <- st:
	default:
		select {
		case <-p.updates:
		default:
		}
		select {
		case p.updates <- st:
		default:
		}
	}
}
