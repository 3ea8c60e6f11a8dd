package handoff

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TakeOutcome classifies a Take call. Miss and Expired are presented
// identically to the redeemer; the distinction only reaches logs.
type TakeOutcome int

const (
	TakeMiss TakeOutcome = iota
	TakeExpired
	TakeHit
)

type record struct {
	payload   InquiryPayload
	expiresAt time.Time
}

// Store owns the token -> inquiry mapping. Records live in memory only
// and die on first redemption, on expiry, or with the process. All
// access goes through Put, Take and Sweep under one mutex.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]record
}

// DefaultTTL matches the original deployment: a visitor has half an
// hour to open the deep link before the inquiry lapses.
const DefaultTTL = 30 * time.Minute

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]record),
	}
}

// Put stores the payload under a fresh token and returns the token.
// It only fails when the entropy source does.
func (s *Store) Put(p InquiryPayload) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.records[token] = record{payload: p, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return token, nil
}

// Take redeems a token at most once. The record is removed before its
// expiry is inspected, so a second Take with the same token can never
// succeed regardless of timing.
func (s *Store) Take(token string) (InquiryPayload, TakeOutcome) {
	s.mu.Lock()
	rec, ok := s.records[token]
	if ok {
		delete(s.records, token)
	}
	now := s.now()
	s.mu.Unlock()

	if !ok {
		return InquiryPayload{}, TakeMiss
	}
	if !now.Before(rec.expiresAt) {
		return InquiryPayload{}, TakeExpired
	}
	return rec.payload, TakeHit
}

// Sweep drops every record whose expiry has passed and returns how
// many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, rec := range s.records {
		if rec.expiresAt.Before(now) {
			delete(s.records, token)
			removed++
		}
	}
	return removed
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Run sweeps on a fixed interval until ctx is canceled. Expired tokens
// are already unredeemable before the sweep reclaims them; the sweep
// only bounds memory.
func (s *Store) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := s.Sweep(now); removed > 0 {
				logger.Info("store_sweep", "removed", removed, "live", s.Len())
			}
		}
	}
}
