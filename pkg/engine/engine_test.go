package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/templateschile/kalifinder-search/pkg/backend"
	"github.com/templateschile/kalifinder-search/pkg/core"
)

func testConfig() Config {
	return Config{
		PageSize:          12,
		InitialFetchLimit: 100,
		DefaultMaxPrice:   1000,
		QueryDebounce:     20 * time.Millisecond,
		FilterDebounce:    10 * time.Millisecond,
	}
}

func newTestEngine(t *testing.T, handler http.HandlerFunc) *Engine {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := backend.NewClient(server.URL, "https://shop.example.com", 5*time.Second)
	e := New(testConfig(), client, nil, nil)
	t.Cleanup(e.Close)
	return e
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func makeProducts(prefix string, n int) []core.Product {
	products := make([]core.Product, n)
	for i := range products {
		products[i] = core.Product{
			ID:    fmt.Sprintf("%s-%d", prefix, i),
			Title: fmt.Sprintf("Product %s %d", prefix, i),
			Price: float64(10 + i),
		}
	}
	return products
}

func writeResponse(t *testing.T, w http.ResponseWriter, resp backend.SearchResponse) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func TestGenerationMonotonicity(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, backend.SearchResponse{
			Products: makeProducts(r.URL.Query().Get("q"), 2),
			Total:    2,
		})
	})

	e.mu.Lock()
	e.generation = 7
	e.mu.Unlock()

	// A response tagged with an older generation resolves late and must be
	// a no-op on state.
	e.runSearch(context.Background(), 3, backend.SearchRequest{Query: "stale", Page: 1, Limit: 12}, false)
	if got := e.Snapshot().Products; len(got) != 0 {
		t.Fatalf("stale response mutated state: %v", got)
	}

	// The response tagged with the current generation applies.
	e.runSearch(context.Background(), 7, backend.SearchRequest{Query: "fresh", Page: 1, Limit: 12}, false)
	snap := e.Snapshot()
	if len(snap.Products) != 2 || snap.Products[0].ID != "fresh-0" {
		t.Fatalf("current-generation response did not apply: %+v", snap.Products)
	}
}

func TestSupersededRequestNeverOverwrites(t *testing.T) {
	release := make(chan struct{})
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "slow" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		writeResponse(t, w, backend.SearchResponse{Products: makeProducts(q, 1), Total: 1})
	})

	e.SelectSuggestion("slow")
	e.SelectSuggestion("fast")

	waitFor(t, "fast result applied", func() bool {
		products := e.Snapshot().Products
		return len(products) == 1 && products[0].ID == "fast-0"
	})

	close(release)
	time.Sleep(50 * time.Millisecond)

	if got := e.Snapshot().Products; got[0].ID != "fast-0" {
		t.Errorf("earlier-issued request overwrote newer state: %v", got)
	}
}

func TestDedupIdempotence(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(t, w, backend.SearchResponse{Products: makeProducts("p", 1), Total: 1})
	})

	e.SelectSuggestion("shoes")
	waitFor(t, "first search applied", func() bool { return len(e.Snapshot().Products) == 1 })

	e.SelectSuggestion("shoes")
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("identical (query, filters) pair issued %d requests, want 1", got)
	}
}

func TestDedupSurvivesCeilingReclamp(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(t, w, backend.SearchResponse{Products: makeProducts("p", 2), Total: 2})
	})

	e.SelectSuggestion("shoes")
	waitFor(t, "first search", func() bool { return len(e.Snapshot().Products) == 2 })

	// The response re-clamped the untouched price range to the page
	// ceiling. A toggle-on-toggle-off that restores the identical
	// selection must still hit the dedup guard.
	e.ToggleFilter(core.DimBrands, "Nike")
	e.ToggleFilter(core.DimBrands, "Nike")
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("identical selection after ceiling reclamp issued %d requests, want 1", got)
	}
}

func TestClearAllForcesRefresh(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(t, w, backend.SearchResponse{Total: 0})
	})

	e.ClearAll()
	waitFor(t, "first clear applied", func() bool { return !e.Snapshot().IsLoading })
	e.ClearAll()
	waitFor(t, "second clear applied", func() bool { return calls.Load() == 2 })

	snap := e.Snapshot()
	if snap.Phase != core.PhaseActive {
		t.Errorf("phase after ClearAll: got %s, want %s", snap.Phase, core.PhaseActive)
	}
	if !snap.HasSearched {
		t.Error("ClearAll must mark the session as having searched")
	}
}

func TestClearAllDiscardsPendingQuery(t *testing.T) {
	var calls atomic.Int64
	var lastQuery atomic.Value
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		lastQuery.Store(r.URL.Query().Get("q"))
		writeResponse(t, w, backend.SearchResponse{Total: 0})
	})

	// Clearing before the typed text settles must not let the abandoned
	// text search later with a newer generation.
	e.Search("shoes")
	e.ClearAll()

	waitFor(t, "forced clear search", func() bool { return calls.Load() == 1 })
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("abandoned typed text searched after clear: %d requests", got)
	}
	if got := lastQuery.Load(); got != "" {
		t.Errorf("searched %q after clear, want empty query", got)
	}
	if got := e.Snapshot().Query; got != "" {
		t.Errorf("snapshot query after clear: %q", got)
	}
}

func TestSelectSuggestionDiscardsPendingPrefix(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(t, w, backend.SearchResponse{
			Products: makeProducts(r.URL.Query().Get("q"), 1),
			Total:    1,
		})
	})

	e.Search("sho")
	e.SelectSuggestion("shoes")

	waitFor(t, "suggestion search applied", func() bool {
		products := e.Snapshot().Products
		return len(products) == 1 && products[0].ID == "shoes-0"
	})
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("half-typed prefix issued its own search: %d requests", got)
	}
	if got := e.Snapshot().Products[0].ID; got != "shoes-0" {
		t.Errorf("prefix results replaced the suggestion's: %s", got)
	}
}

func TestDebouncedQueryIssuesSingleRequest(t *testing.T) {
	var calls atomic.Int64
	var lastQuery atomic.Value
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		lastQuery.Store(r.URL.Query().Get("q"))
		writeResponse(t, w, backend.SearchResponse{Total: 0})
	})

	e.Search("s")
	e.Search("sh")
	e.Search("shoes")

	waitFor(t, "debounced search", func() bool { return calls.Load() > 0 })
	time.Sleep(80 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("rapid typing issued %d requests, want 1", got)
	}
	if got := lastQuery.Load(); got != "shoes" {
		t.Errorf("searched %q, want the settled value %q", got, "shoes")
	}
}

func TestZeroResultFallback(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Query()["brands[]"]) > 0 {
			writeResponse(t, w, backend.SearchResponse{Products: []core.Product{}, Total: 0})
			return
		}
		// Fallback: unfiltered, popularity sorted.
		if got := r.URL.Query().Get("sort"); got != backend.SortFeatured {
			t.Errorf("fallback sort: got %q, want %q", got, backend.SortFeatured)
		}
		writeResponse(t, w, backend.SearchResponse{
			Products: []core.Product{{ID: "P1", Title: "Popular 1"}, {ID: "P2", Title: "Popular 2"}},
			Total:    5,
			HasMore:  true,
		})
	})

	e.ToggleFilter(core.DimBrands, "Nike")

	waitFor(t, "fallback applied", func() bool { return e.Snapshot().ShowingRecommended })

	snap := e.Snapshot()
	if len(snap.Products) != 2 || snap.Products[0].ID != "P1" {
		t.Errorf("fallback products: %+v", snap.Products)
	}
	if snap.Total != 0 {
		t.Errorf("total must stay 0 under fallback, got %d", snap.Total)
	}
	if snap.HasMore {
		t.Error("fallback must not report more pages")
	}
	want := `No results found for brand "Nike". Showing popular products instead.`
	if snap.Message != want {
		t.Errorf("message:\ngot  %q\nwant %q", snap.Message, want)
	}
}

func TestZeroResultFallbackEmptyLeavesState(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(t, w, backend.SearchResponse{Products: []core.Product{}, Total: 0})
	})

	e.ToggleFilter(core.DimBrands, "Nike")

	waitFor(t, "both requests resolved", func() bool { return calls.Load() == 2 })
	time.Sleep(30 * time.Millisecond)

	snap := e.Snapshot()
	if snap.ShowingRecommended {
		t.Error("empty fallback must leave the zero-result state as-is")
	}
	if len(snap.Products) != 0 || snap.Total != 0 {
		t.Errorf("unexpected state: %d products, total %d", len(snap.Products), snap.Total)
	}
	// No retry loop: exactly the primary request plus one fallback.
	if got := calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 requests, got %d", got)
	}
}

func TestZeroResultWithoutFiltersSkipsFallback(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(t, w, backend.SearchResponse{Total: 0})
	})

	e.SelectSuggestion("nonexistent product")
	waitFor(t, "search applied", func() bool { return !e.Snapshot().IsLoading })
	time.Sleep(30 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("query-only zero result must not trigger the fallback, got %d requests", got)
	}
}

func TestPaginationAccumulation(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			writeResponse(t, w, backend.SearchResponse{Products: makeProducts("a", 12), Total: 24, HasMore: true})
		case "2":
			writeResponse(t, w, backend.SearchResponse{Products: makeProducts("b", 12), Total: 24, HasMore: false})
		default:
			t.Errorf("unexpected page %q", page)
		}
	})

	e.SelectSuggestion("shoes")
	waitFor(t, "page 1", func() bool { return len(e.Snapshot().Products) == 12 })

	e.LoadMore()
	waitFor(t, "page 2 appended", func() bool { return len(e.Snapshot().Products) == 24 })

	snap := e.Snapshot()
	if snap.Products[0].ID != "a-0" || snap.Products[12].ID != "b-0" {
		t.Errorf("append order broken: first=%s, thirteenth=%s", snap.Products[0].ID, snap.Products[12].ID)
	}
	if snap.HasMore {
		t.Error("hasMore must reflect the latest page's response")
	}

	// Exhausted: LoadMore is a no-op now.
	e.LoadMore()
	time.Sleep(30 * time.Millisecond)
	if got := len(e.Snapshot().Products); got != 24 {
		t.Errorf("LoadMore past the end changed the list: %d products", got)
	}
}

func TestSearchErrorClearsResults(t *testing.T) {
	var fail atomic.Bool
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeResponse(t, w, backend.SearchResponse{Products: makeProducts("p", 3), Total: 3, HasMore: true})
	})

	e.SelectSuggestion("good")
	waitFor(t, "good search applied", func() bool { return len(e.Snapshot().Products) == 3 })

	fail.Store(true)
	e.SelectSuggestion("bad")
	waitFor(t, "failed search cleared results", func() bool {
		snap := e.Snapshot()
		return len(snap.Products) == 0 && !snap.IsLoading
	})

	if e.Snapshot().HasMore {
		t.Error("hasMore must be conservative after a failure")
	}
}

func TestPhaseTransitions(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, backend.SearchResponse{Products: makeProducts("p", 1), Total: 1})
	})

	if got := e.Snapshot().Phase; got != core.PhaseInitial {
		t.Fatalf("fresh engine phase: got %s, want %s", got, core.PhaseInitial)
	}

	// Clearing before ever searching stays Initial.
	e.Search("")
	if got := e.Snapshot().Phase; got != core.PhaseInitial {
		t.Errorf("empty query before searching: got %s, want %s", got, core.PhaseInitial)
	}

	e.Search("shoes")
	if got := e.Snapshot().Phase; got != core.PhaseActive {
		t.Errorf("typing a query: got %s, want %s", got, core.PhaseActive)
	}

	waitFor(t, "search applied", func() bool { return e.Snapshot().HasSearched })

	e.Search("")
	if got := e.Snapshot().Phase; got != core.PhaseCleared {
		t.Errorf("clearing after searching: got %s, want %s", got, core.PhaseCleared)
	}
}

func TestFiltersAloneActivate(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, backend.SearchResponse{Products: makeProducts("p", 2), Total: 2})
	})

	e.ToggleFilter(core.DimCategories, "Shoes")
	if got := e.Snapshot().Phase; got != core.PhaseActive {
		t.Errorf("filter from Initial: got %s, want %s", got, core.PhaseActive)
	}

	waitFor(t, "filter search applied", func() bool { return len(e.Snapshot().Products) == 2 })
}

func TestInitialFetchSeedsGlobalState(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/facets/configured" {
			_, _ = w.Write([]byte(`[{"field":"brands","visible":true},{"field":"tags","visible":false}]`))
			return
		}
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("initial fetch limit: got %q, want 100", got)
		}
		writeResponse(t, w, backend.SearchResponse{
			Products: makeProducts("rec", 30),
			Total:    30,
			Facets: map[string]json.RawMessage{
				"brands":       json.RawMessage(`{"buckets":[{"key":"Nike","doc_count":9}]}`),
				"stock_status": json.RawMessage(`{"buckets":[{"key":"in_stock","doc_count":25}]}`),
				"price":        json.RawMessage(`{"stats":{"max":742.5}}`),
			},
		})
	})

	e.Start()
	waitFor(t, "initial fetch applied", func() bool { return !e.Snapshot().IsLoading })
	waitFor(t, "configured facets applied", func() bool { return len(e.Snapshot().VisibleDimensions) > 0 })

	snap := e.Snapshot()
	if snap.Phase != core.PhaseInitial {
		t.Errorf("phase: got %s, want %s", snap.Phase, core.PhaseInitial)
	}
	if !snap.ShowingRecommended {
		t.Error("Initial phase should show recommendations")
	}
	if len(snap.Products) != 12 {
		t.Errorf("recommendations must be capped at page size, got %d", len(snap.Products))
	}
	if snap.MaxPrice != 800 {
		t.Errorf("max price: got %v, want 800", snap.MaxPrice)
	}
	if snap.PriceRange != [2]float64{0, 800} {
		t.Errorf("price range not re-clamped to ceiling: %v", snap.PriceRange)
	}
	if got := snap.Counts[core.DimBrands]["Nike"]; got != 9 {
		t.Errorf("brand count: got %d, want 9", got)
	}
	if got := snap.VisibleDimensions; len(got) != 1 || got[0] != "brands" {
		t.Errorf("visible dimensions: got %v, want [brands]", got)
	}
}

func TestStaticCountsSurviveFilteredSearches(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/facets/configured" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		if r.URL.Query().Get("limit") == "100" { // initial fetch
			writeResponse(t, w, backend.SearchResponse{
				Products: makeProducts("rec", 5),
				Total:    5,
				Facets: map[string]json.RawMessage{
					"stock_status": json.RawMessage(`{"buckets":[{"key":"in_stock","doc_count":40}]}`),
					"featured":     json.RawMessage(`{"buckets":[{"key":true,"doc_count":6},{"key":false,"doc_count":34}]}`),
					"insale":       json.RawMessage(`{"buckets":[{"key":1,"doc_count":11}]}`),
					"brands":       json.RawMessage(`{"buckets":[{"key":"Nike","doc_count":40}]}`),
				},
			})
			return
		}
		writeResponse(t, w, backend.SearchResponse{
			Products: makeProducts("hit", 2),
			Total:    2,
			Facets: map[string]json.RawMessage{
				"stock_status": json.RawMessage(`{"buckets":[{"key":"in_stock","doc_count":1}]}`),
				"featured":     json.RawMessage(`{"buckets":[{"key":true,"doc_count":1}]}`),
				"insale":       json.RawMessage(`{"buckets":[{"key":1,"doc_count":1}]}`),
				"brands":       json.RawMessage(`{"buckets":[{"key":"Nike","doc_count":2}]}`),
			},
		})
	})

	e.Start()
	waitFor(t, "initial fetch", func() bool {
		return e.Snapshot().Counts[core.DimStockStatus]["in_stock"] == 40
	})

	e.SelectSuggestion("shoes")
	waitFor(t, "filtered search", func() bool { return len(e.Snapshot().Products) == 2 })

	snap := e.Snapshot()
	if got := snap.Counts[core.DimStockStatus]["in_stock"]; got != 40 {
		t.Errorf("stock count drifted: got %d, want 40", got)
	}
	if got := snap.Counts[core.DimFeatured]["true"]; got != 6 {
		t.Errorf("featured count drifted: got %d, want 6", got)
	}
	if got := snap.Counts[core.DimSale]["true"]; got != 11 {
		t.Errorf("sale count drifted: got %d, want 11", got)
	}
	if got := snap.Counts[core.DimBrands]["Nike"]; got != 2 {
		t.Errorf("brand count must be reactive: got %d, want 2", got)
	}
}

func TestSuggestSupersededSession(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "slow" {
			close(started)
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		_, _ = fmt.Fprintf(w, `[{"title":"%s-suggestion"}]`, q)
	})

	type result struct {
		titles []string
		ok     bool
	}
	slowCh := make(chan result, 1)
	go func() {
		titles, ok, _ := e.Suggest(context.Background(), "slow")
		slowCh <- result{titles, ok}
	}()

	// The slow session must be registered before the superseding call.
	<-started

	titles, ok, err := e.Suggest(context.Background(), "fast")
	if err != nil || !ok {
		t.Fatalf("fast suggest: ok=%v err=%v", ok, err)
	}
	if len(titles) != 1 || titles[0] != "fast-suggestion" {
		t.Fatalf("fast suggestions: %v", titles)
	}

	close(release)
	slow := <-slowCh
	if slow.ok {
		t.Error("superseded suggest session must report ok=false")
	}

	if got := e.Snapshot().Suggestions; len(got) != 1 || got[0] != "fast-suggestion" {
		t.Errorf("stale session leaked into state: %v", got)
	}
}

func TestDescribeFilters(t *testing.T) {
	tests := []struct {
		name      string
		selection map[core.Dimension][]string
		want      string
	}{
		{
			name:      "single brand",
			selection: map[core.Dimension][]string{core.DimBrands: {"Nike"}},
			want:      `brand "Nike"`,
		},
		{
			name: "category plus brands plus sale",
			selection: map[core.Dimension][]string{
				core.DimCategories: {"Shoes"},
				core.DimBrands:     {"Nike", "Adidas"},
				core.DimSale:       {"true"},
			},
			want: `category "Shoes", 2 brands, on sale`,
		},
		{
			name:      "availability value humanized",
			selection: map[core.Dimension][]string{core.DimStockStatus: {"in_stock"}},
			want:      `availability "in stock"`,
		},
		{
			name:      "featured",
			selection: map[core.Dimension][]string{core.DimFeatured: {"true"}},
			want:      "featured",
		},
		{
			name:      "empty selection",
			selection: nil,
			want:      "the selected filters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescribeFilters(tt.selection); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCloseAbortsAndIgnoresIntents(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(t, w, backend.SearchResponse{Total: 0})
	})

	e.Close()
	e.Search("after close")
	e.ToggleFilter(core.DimBrands, "Nike")
	e.ClearAll()
	e.LoadMore()

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("closed engine issued %d requests", got)
	}
}
