// Package github provides the upstream event feed client and polling loop.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/user/ghevents/internal/config"
	"github.com/user/ghevents/internal/storage"
)

// Client fetches pages of the public events feed.
type Client struct {
	http    *http.Client
	baseURL string
	accept  string
	perPage int
}

// NewClient creates a feed client. If a token is configured the transport is
// wrapped with oauth2 (higher rate limits); otherwise requests go out
// unauthenticated.
func NewClient(cfg config.GitHubConfig) *Client {
	hc := &http.Client{}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		)
		hc = oauth2.NewClient(context.Background(), ts)
	}

	return &Client{
		http:    hc,
		baseURL: cfg.URL,
		accept:  cfg.Accept,
		perPage: cfg.PerPage,
	}
}

// Page is the outcome of one fetch: the parsed batch plus the response
// metadata the policy consumes. A non-2xx response carries no events but
// keeps whatever headers arrived.
type Page struct {
	Events []storage.Event
	Status int
	Header http.Header
}

// OK reports whether the upstream answered with a 2xx status.
func (p *Page) OK() bool {
	return p.Status >= 200 && p.Status < 300
}

// FetchPage issues one GET against target; an empty target means the
// configured base endpoint. Transport and payload-decode failures are
// returned as errors; HTTP-level failures are not.
func (c *Client) FetchPage(ctx context.Context, target string) (*Page, error) {
	if target == "" {
		target = c.baseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", c.accept)

	// Pagination links already carry the original params.
	if c.perPage > 0 && req.URL.Query().Get("per_page") == "" {
		q := req.URL.Query()
		q.Set("per_page", strconv.Itoa(c.perPage))
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer res.Body.Close()

	page := &Page{Status: res.StatusCode, Header: res.Header}

	if !page.OK() {
		io.Copy(io.Discard, res.Body)
		return page, nil
	}

	var raw []*gh.Event
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode events payload: %w", err)
	}

	page.Events = parseEvents(raw)
	return page, nil
}
