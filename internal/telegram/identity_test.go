package telegram

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-telegram/bot/models"
)

type fakeAPI struct {
	calls    atomic.Int32
	gate     chan struct{}
	username string
	err      error
}

func (f *fakeAPI) GetMe(context.Context) (*models.User, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{Username: f.username}, nil
}

func TestIdentityMemoizes(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{username: "IrenOrderBot"}
	id := NewIdentity(api)

	for i := 0; i < 3; i++ {
		name, err := id.Username(context.Background())
		if err != nil {
			t.Fatalf("Username: %v", err)
		}
		if name != "IrenOrderBot" {
			t.Fatalf("username = %q", name)
		}
	}
	if got := api.calls.Load(); got != 1 {
		t.Fatalf("getMe called %d times, want 1", got)
	}
}

func TestIdentitySingleFlight(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{username: "IrenOrderBot", gate: make(chan struct{})}
	id := NewIdentity(api)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := id.Username(context.Background())
			if err != nil {
				t.Errorf("Username: %v", err)
				return
			}
			results <- name
		}()
	}
	close(api.gate)
	wg.Wait()
	close(results)

	for name := range results {
		if name != "IrenOrderBot" {
			t.Fatalf("username = %q", name)
		}
	}
	if got := api.calls.Load(); got != 1 {
		t.Fatalf("getMe called %d times, want 1", got)
	}
}

func TestIdentityRetriesAfterFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{err: errors.New("network down")}
	id := NewIdentity(api)

	if _, err := id.Username(context.Background()); err == nil {
		t.Fatal("expected error while API is down")
	}

	api.err = nil
	api.username = "IrenOrderBot"
	link, err := id.DeepLink(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("DeepLink: %v", err)
	}
	if link != "https://t.me/IrenOrderBot?start=abc123" {
		t.Fatalf("link = %q", link)
	}
}
