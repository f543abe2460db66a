package ai

import (
	"context"
	"sync"
)

// Factory builds a client from params. It exists so tests can substitute
// a fake provider.
type Factory func(ctx context.Context, params Params) (Client, error)

// Pool holds one lazily built client for the current parameters. When a
// credential or endpoint changes the cached client is dropped, not
// rebuilt; the next request constructs a fresh one. A request already in
// flight keeps the client it started with.
type Pool struct {
	mu      sync.Mutex
	params  Params
	client  Client
	factory Factory
}

// NewPool creates a pool using the default provider factory.
func NewPool() *Pool {
	return &Pool{factory: New}
}

// NewPoolWithFactory creates a pool with a custom client factory.
func NewPoolWithFactory(factory Factory) *Pool {
	return &Pool{factory: factory}
}

// Configure sets the parameters for future clients and drops any cached
// client built from the old ones.
func (p *Pool) Configure(params Params) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if params == p.params {
		return
	}
	p.params = params
	p.dropLocked()
}

// Get returns the cached client, building one if needed.
func (p *Pool) Get(ctx context.Context) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	client, err := p.factory(ctx, p.params)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

// Invalidate drops the cached client.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked()
}

// Close drops the cached client and releases its resources.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.client != nil {
		err = p.client.Close()
		p.client = nil
	}
	return err
}

func (p *Pool) dropLocked() {
	if p.client != nil {
		_ = p.client.Close()
		p.client = nil
	}
}
