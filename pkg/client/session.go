package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/ayandah-api/internal/catalog"
	"github.com/noah-isme/ayandah-api/internal/models"
)

// DefaultDebounce is the quiet period before free-text input hits the server.
const DefaultDebounce = 500 * time.Millisecond

// ErrNothingToRetry is returned by Retry before any server search has run.
var ErrNothingToRetry = errors.New("no search to retry")

// SearchSession drives one listing view. Dimension filters are applied
// locally through the FilterState; free-text search is debounced and only
// goes to the server when the text actually changed.
type SearchSession struct {
	client   *Client
	state    *catalog.FilterState
	delay    time.Duration
	onResult func(Result[[]models.Scholarship])

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	timer    *time.Timer
	lastText string
	gen      uint64
	last     Result[[]models.Scholarship]
}

// NewSearchSession creates a session. onResult, when set, is called after
// every server search with the outcome. Close releases the session.
func NewSearchSession(parent context.Context, c *Client, delay time.Duration, onResult func(Result[[]models.Scholarship])) *SearchSession {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(parent)
	return &SearchSession{
		client:   c,
		state:    catalog.NewFilterState(nil),
		delay:    delay,
		onResult: onResult,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State exposes the local filter state.
func (s *SearchSession) State() *catalog.FilterState {
	return s.state
}

// Load runs the initial unfiltered search synchronously.
func (s *SearchSession) Load(ctx context.Context) Result[[]models.Scholarship] {
	return s.search(ctx, "")
}

// SetSearchText schedules a search for text after the debounce delay.
// Calls within the delay replace the pending text.
func (s *SearchSession) SetSearchText(text string) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		unchanged := text == s.lastText
		s.mu.Unlock()
		if unchanged || s.ctx.Err() != nil {
			return
		}
		s.search(s.ctx, text)
	})
}

// Retry repeats the last server search, bypassing the client cache. The
// state is left untouched when no search has run yet.
func (s *SearchSession) Retry(ctx context.Context) Result[[]models.Scholarship] {
	s.mu.Lock()
	last := s.last
	if last.refetch == nil {
		s.mu.Unlock()
		return Result[[]models.Scholarship]{Err: ErrNothingToRetry}
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	return s.apply(gen, last.Refetch(ctx))
}

// Close cancels any pending search.
func (s *SearchSession) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *SearchSession) search(ctx context.Context, text string) Result[[]models.Scholarship] {
	s.mu.Lock()
	s.lastText = text
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	return s.apply(gen, s.client.Search(ctx, catalog.SearchParams{Search: text}))
}

// apply publishes res unless a newer search or retry started after it was
// issued; stale results are returned to the caller but never reach the state.
func (s *SearchSession) apply(gen uint64, res Result[[]models.Scholarship]) Result[[]models.Scholarship] {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return res
	}
	s.last = res
	s.mu.Unlock()
	if res.Err == nil {
		s.state.SetRecords(res.Data)
	}
	if s.onResult != nil {
		s.onResult(res)
	}
	return res
}
