package handoff

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func testPayload(name string) InquiryPayload {
	return InquiryPayload{
		ID:      "test-" + name,
		Name:    name,
		Contact: name + "@example.com",
		Date:    "2025-01-01",
		Guests:  "2",
		Message: "hi",
	}
}

// fakeClock lets tests move store time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(ttl time.Duration) (*Store, *fakeClock) {
	s := NewStore(ttl)
	clock := newFakeClock()
	s.now = clock.Now
	return s, clock
}

func TestPutTakeRoundtrip(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(30 * time.Minute)

	want := testPayload("anna")
	token, err := s.Put(want)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}

	got, outcome := s.Take(token)
	if outcome != TakeHit {
		t.Fatalf("outcome = %v, want TakeHit", outcome)
	}
	if got != want {
		t.Fatalf("payload = %+v, want %+v", got, want)
	}
	if s.Len() != 0 {
		t.Fatalf("Len after take = %d, want 0", s.Len())
	}
}

func TestTakeIsSingleUse(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(30 * time.Minute)

	token, err := s.Put(testPayload("anna"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, outcome := s.Take(token); outcome != TakeHit {
		t.Fatalf("first take outcome = %v, want TakeHit", outcome)
	}
	if _, outcome := s.Take(token); outcome != TakeMiss {
		t.Fatalf("second take outcome = %v, want TakeMiss", outcome)
	}
}

func TestTakeUnknownToken(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(30 * time.Minute)

	if _, outcome := s.Take("no-such-token"); outcome != TakeMiss {
		t.Fatalf("outcome = %v, want TakeMiss", outcome)
	}
}

func TestTakeAfterTTLWithoutSweep(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(30 * time.Minute)

	token, err := s.Put(testPayload("anna"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Expiry is enforced by Take itself, even when no sweep has run.
	clock.Advance(31 * time.Minute)
	if _, outcome := s.Take(token); outcome != TakeExpired {
		t.Fatalf("outcome = %v, want TakeExpired", outcome)
	}
	// Expired take still consumed the record.
	if _, outcome := s.Take(token); outcome != TakeMiss {
		t.Fatalf("outcome after expired take = %v, want TakeMiss", outcome)
	}
}

func TestTakeAtExactTTLBoundary(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(30 * time.Minute)

	token, err := s.Put(testPayload("anna"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	clock.Advance(30 * time.Minute)
	if _, outcome := s.Take(token); outcome != TakeExpired {
		t.Fatalf("outcome = %v, want TakeExpired", outcome)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(30 * time.Minute)

	oldToken, err := s.Put(testPayload("old"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	clock.Advance(20 * time.Minute)
	freshToken, err := s.Put(testPayload("fresh"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	clock.Advance(11 * time.Minute)
	if removed := s.Sweep(clock.Now()); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}

	if _, outcome := s.Take(oldToken); outcome != TakeMiss {
		t.Fatalf("old token outcome = %v, want TakeMiss", outcome)
	}
	got, outcome := s.Take(freshToken)
	if outcome != TakeHit {
		t.Fatalf("fresh token outcome = %v, want TakeHit", outcome)
	}
	if got.Name != "fresh" {
		t.Fatalf("fresh payload name = %q", got.Name)
	}
}

func TestSweepEmptyStore(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(30 * time.Minute)
	if removed := s.Sweep(clock.Now()); removed != 0 {
		t.Fatalf("Sweep removed %d, want 0", removed)
	}
}

func TestConcurrentPutTake(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(30 * time.Minute)

	const n = 64
	tokens := make([]string, n)
	var putWG sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		putWG.Add(1)
		go func() {
			defer putWG.Done()
			token, err := s.Put(testPayload("p"))
			if err != nil {
				t.Errorf("Put: %v", err)
				return
			}
			tokens[i] = token
		}()
	}
	putWG.Wait()

	// Every token redeems exactly once even with a concurrent sweep.
	hits := make(chan int, n+1)
	var takeWG sync.WaitGroup
	takeWG.Add(1)
	go func() {
		defer takeWG.Done()
		// No record is expired at this point; a concurrent sweep must
		// not eat live records.
		s.Sweep(clock.Now())
	}()
	for i := 0; i < n; i++ {
		i := i
		takeWG.Add(1)
		go func() {
			defer takeWG.Done()
			count := 0
			if _, outcome := s.Take(tokens[i]); outcome == TakeHit {
				count++
			}
			if _, outcome := s.Take(tokens[i]); outcome == TakeHit {
				count++
			}
			hits <- count
		}()
	}
	takeWG.Wait()
	close(hits)

	total := 0
	for c := range hits {
		if c > 1 {
			t.Fatalf("token redeemed %d times", c)
		}
		total += c
	}
	if total != n {
		t.Fatalf("total hits = %d, want %d", total, n)
	}
}

func TestNewTokenShape(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken: %v", err)
		}
		if len(token) != 12 {
			t.Fatalf("token %q has length %d, want 12", token, len(token))
		}
		const urlSafe = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
		for _, ch := range token {
			if !strings.ContainsRune(urlSafe, ch) {
				t.Fatalf("token %q contains non URL-safe char %q", token, ch)
			}
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}
