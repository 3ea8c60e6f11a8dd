package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/singleflight"
)

var errNoUsername = errors.New("telegram: getMe returned no username")

// userFetcher is the slice of the bot API that identity resolution
// needs; *bot.Bot satisfies it.
type userFetcher interface {
	GetMe(ctx context.Context) (*models.User, error)
}

// Identity resolves and caches the bot's username. Resolution is lazy
// so the HTTP intake comes up even while Telegram is unreachable, and
// single-flight so concurrent intakes share one getMe call.
type Identity struct {
	api userFetcher

	group    singleflight.Group
	mu       sync.RWMutex
	username string
}

func NewIdentity(api userFetcher) *Identity {
	return &Identity{api: api}
}

// Username returns the memoized bot username, resolving it on first
// use. Failures are not cached; the next caller retries.
func (id *Identity) Username(ctx context.Context) (string, error) {
	id.mu.RLock()
	cached := id.username
	id.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	v, err, _ := id.group.Do("getme", func() (any, error) {
		// Recheck under the flight: a caller that raced a completed
		// resolution must not trigger a second getMe.
		id.mu.RLock()
		cached := id.username
		id.mu.RUnlock()
		if cached != "" {
			return cached, nil
		}
		me, err := id.api.GetMe(ctx)
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(me.Username)
		if name == "" {
			return "", errNoUsername
		}
		id.mu.Lock()
		id.username = name
		id.mu.Unlock()
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// DeepLink builds the t.me start link carrying a handoff token.
func (id *Identity) DeepLink(ctx context.Context, token string) (string, error) {
	name, err := id.Username(ctx)
	if err != nil {
		return "", err
	}
	return "https://t.me/" + name + "?start=" + token, nil
}
