package engine

import (
	"context"

	"github.com/templateschile/kalifinder-search/pkg/backend"
)

// Suggest fetches autocomplete suggestions for a partial query. Stale
// sessions are detected with a counter checked at resolution rather than
// true cancellation: a suggestion list has no side effects beyond
// display, so abort plumbing is unnecessary. The returned bool is false
// when a newer Suggest call superseded this one.
func (e *Engine) Suggest(ctx context.Context, query string) ([]string, bool, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, false, nil
	}
	e.suggestSession++
	session := e.suggestSession
	e.mu.Unlock()

	suggestions, err := e.client.Autocomplete(ctx, query)
	if err != nil {
		if backend.IsAbort(err) {
			return nil, false, nil
		}
		// Transient failure surfaces as an empty suggestion list.
		e.logger.Warnf("autocomplete failed: %v", err)
		return nil, true, nil
	}

	titles := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		titles = append(titles, s.Title)
	}

	e.mu.Lock()
	if session != e.suggestSession {
		e.mu.Unlock()
		return nil, false, nil
	}
	e.suggestions = titles
	e.mu.Unlock()
	e.publish()

	return titles, true, nil
}

// RecentSearches returns the persisted search history, most recent first.
func (e *Engine) RecentSearches() ([]string, error) {
	if e.recents == nil {
		return nil, nil
	}
	return e.recents.Recent()
}

// ClearRecentSearches empties the persisted search history.
func (e *Engine) ClearRecentSearches() error {
	if e.recents == nil {
		return nil
	}
	return e.recents.Clear()
}
