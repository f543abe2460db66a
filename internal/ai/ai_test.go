package ai

import (
	"context"
	"errors"
	"testing"
)

type fakeClient struct {
	id     int
	closed bool
}

func (f *fakeClient) Complete(_ context.Context, _ Request) (Response, error) {
	return Response{Text: "ok"}, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestPoolReusesClient(t *testing.T) {
	built := 0
	p := NewPoolWithFactory(func(_ context.Context, _ Params) (Client, error) {
		built++
		return &fakeClient{id: built}, nil
	})
	p.Configure(Params{Provider: ProviderOpenAI, APIKey: "sk-1"})

	c1, err := p.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c2, err := p.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Error("pool should reuse the cached client")
	}
	if built != 1 {
		t.Errorf("built %d clients, want 1", built)
	}
}

func TestPoolDropsClientOnReconfigure(t *testing.T) {
	built := 0
	var clients []*fakeClient
	p := NewPoolWithFactory(func(_ context.Context, _ Params) (Client, error) {
		built++
		c := &fakeClient{id: built}
		clients = append(clients, c)
		return c, nil
	})

	p.Configure(Params{APIKey: "sk-1"})
	if _, err := p.Get(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Same params: cached client survives.
	p.Configure(Params{APIKey: "sk-1"})
	if _, err := p.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if built != 1 {
		t.Fatalf("built %d clients after no-op reconfigure, want 1", built)
	}

	// Changed credential: cached client is dropped and closed.
	p.Configure(Params{APIKey: "sk-2"})
	if !clients[0].closed {
		t.Error("old client should be closed on reconfigure")
	}
	if _, err := p.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if built != 2 {
		t.Errorf("built %d clients, want 2", built)
	}
}

func TestPoolInvalidate(t *testing.T) {
	built := 0
	p := NewPoolWithFactory(func(_ context.Context, _ Params) (Client, error) {
		built++
		return &fakeClient{id: built}, nil
	})
	p.Configure(Params{APIKey: "sk-1"})

	if _, err := p.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	p.Invalidate()
	if _, err := p.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if built != 2 {
		t.Errorf("built %d clients, want 2 after invalidate", built)
	}
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Params{Provider: ProviderOpenAI})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("want ErrNoAPIKey, got %v", err)
	}
}

func TestFactoryUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Params{Provider: "cohere", APIKey: "k"})
	if err == nil {
		t.Error("unknown provider should error")
	}
}
