package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/ghevents/internal/config"
	"github.com/user/ghevents/internal/pipeline"
	"github.com/user/ghevents/internal/storage"
)

func eventJSON(id int64, kind, repo, action string) string {
	return fmt.Sprintf(`{
		"id": "%d",
		"type": "%s",
		"actor": {"id": %d},
		"repo": {"id": %d, "name": "%s"},
		"payload": {"action": "%s"},
		"created_at": "2024-06-01T10:00:0%dZ"
	}`, id, kind, id*10, id*100, repo, action, id%10)
}

func newTestClient(url string) *Client {
	return NewClient(config.GitHubConfig{
		URL:     url,
		Accept:  "application/vnd.github+json",
		PerPage: 100,
	})
}

func getBatch(t *testing.T, q *pipeline.Queue, timeout time.Duration) []storage.Event {
	t.Helper()

	ch := make(chan []storage.Event, 1)
	go func() {
		if b, ok := q.Get(); ok {
			ch <- b
		}
	}()

	select {
	case b := <-ch:
		return b
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for batch")
		return nil
	}
}

// Two-page cycle: page 1 carries a rel="next" link and two recognized events
// (plus one unknown kind that must be dropped), page 2 carries one event and
// no link. The poller must enqueue both batches back-to-back, then sleep the
// base interval and start over at the base endpoint.
func TestPoller_FollowsPaginationThenSleepsBaseInterval(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []string
		stamps   []time.Time
		baseURL  string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.RequestURI())
		stamps = append(stamps, time.Now())
		mu.Unlock()

		w.Header().Set("X-RateLimit-Remaining", "55")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprintf(w, "[%s]", eventJSON(3, "IssuesEvent", "Owner/Gamma", "closed"))
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/?page=2>; rel="next"`, baseURL))
		fmt.Fprintf(w, "[%s,%s,%s]",
			eventJSON(1, "WatchEvent", "Owner/Alpha", "started"),
			eventJSON(2, "PullRequestEvent", "Owner/Beta", "OPENED"),
			eventJSON(9, "ForkEvent", "Owner/Alpha", ""),
		)
	}))
	defer srv.Close()
	baseURL = srv.URL

	queue := pipeline.NewQueue(4)
	policy := Policy{BaseInterval: 150 * time.Millisecond, HardLimit: time.Second}
	poller := NewPoller(newTestClient(srv.URL), policy, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	first := getBatch(t, queue, 2*time.Second)
	second := getBatch(t, queue, 2*time.Second)

	if len(first) != 2 {
		t.Fatalf("expected 2 events on page 1 (unknown kind dropped), got %d", len(first))
	}
	if len(second) != 1 {
		t.Fatalf("expected 1 event on page 2, got %d", len(second))
	}

	ids := map[int64]bool{}
	for _, e := range append(first, second...) {
		ids[e.EventID] = true
	}
	for _, want := range []int64{1, 2, 3} {
		if !ids[want] {
			t.Fatalf("missing event id %d", want)
		}
	}

	// Write-time normalization.
	if first[0].RepositoryName != "owner/alpha" {
		t.Fatalf("expected lowercased repository name, got %q", first[0].RepositoryName)
	}
	if first[1].Action != "opened" {
		t.Fatalf("expected lowercased action, got %q", first[1].Action)
	}

	// After the page set is exhausted the poller sleeps, then restarts at
	// the base endpoint.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(requests)
		mu.Unlock()
		if n >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("poller never returned to the base endpoint")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	third := requests[2]
	gap := stamps[2].Sub(stamps[1])
	mu.Unlock()

	if strings.Contains(third, "page=2") {
		t.Fatalf("expected base endpoint after sleep, got %q", third)
	}
	if gap < 100*time.Millisecond {
		t.Fatalf("expected ~base interval between cycles, got %v", gap)
	}
}

// A rate-limit signal must reset pagination even when a next link exists.
func TestPoller_RateLimitResetsPagination(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []string
		baseURL  string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.RequestURI())
		first := len(requests) == 1
		mu.Unlock()

		w.Header().Set("X-RateLimit-Remaining", "55")
		if first {
			w.Header().Set("Retry-After", "0")
			w.Header().Set("Link", fmt.Sprintf(`<%s/?page=2>; rel="next"`, baseURL))
		}
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()
	baseURL = srv.URL

	queue := pipeline.NewQueue(1)
	policy := Policy{BaseInterval: 0, HardLimit: time.Second}
	poller := NewPoller(newTestClient(srv.URL), policy, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(requests)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("poller never issued a second request")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	second := requests[1]
	mu.Unlock()

	if strings.Contains(second, "page=2") {
		t.Fatalf("stale pagination pointer followed across a rate-limit boundary: %q", second)
	}
}

// A non-2xx answer is an empty page, not a fatal fault.
func TestPoller_SurvivesUpstreamErrors(t *testing.T) {
	var mu sync.Mutex
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()

		w.Header().Set("X-RateLimit-Remaining", "55")
		if first {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, "[%s]", eventJSON(7, "WatchEvent", "Owner/Alpha", "started"))
	}))
	defer srv.Close()

	queue := pipeline.NewQueue(1)
	policy := Policy{BaseInterval: 10 * time.Millisecond, HardLimit: time.Second}
	poller := NewPoller(newTestClient(srv.URL), policy, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	batch := getBatch(t, queue, 2*time.Second)
	if len(batch) != 1 || batch[0].EventID != 7 {
		t.Fatalf("expected the post-error batch, got %+v", batch)
	}
}

// An undecodable payload is beyond per-item filtering: the poller task ends.
func TestPoller_DiesOnMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not json")
	}))
	defer srv.Close()

	queue := pipeline.NewQueue(1)
	policy := Policy{BaseInterval: 10 * time.Millisecond, HardLimit: time.Second}
	poller := NewPoller(newTestClient(srv.URL), policy, queue)

	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller kept running on an unrecoverable payload fault")
	}
}
