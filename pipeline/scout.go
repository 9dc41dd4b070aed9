// ABOUTME: Scout phase: searches the niche with prioritized query strategies and scrapes top hits.
// ABOUTME: Every provider call is individually wrapped; failures degrade single data points only.
package pipeline

import (
	"context"
	"fmt"
	"time"
)

// minSearchResults is the threshold below which the next query strategy is tried.
const minSearchResults = 5

// maxScrapedDocs bounds how many result URLs get a full content fetch.
const maxScrapedDocs = 6

type scoutPhase struct {
	search      Searcher
	callTimeout time.Duration
	delay       time.Duration
}

func (p *scoutPhase) Name() string { return "scout" }

// scoutQueries returns the query strategies in priority order. Strategies are
// tried until the result threshold is met; results across strategies are
// deduplicated by URL before merging.
func scoutQueries(niche string) []string {
	return []string{
		fmt.Sprintf("%s problems", niche),
		fmt.Sprintf("%s pain points reddit", niche),
		fmt.Sprintf("%s complaints forum", niche),
	}
}

func (p *scoutPhase) Run(ctx context.Context, st *RunState, sink Sink) (Update, error) {
	update := Update{
		SearchResults: []SearchResult{},
		Documents:     []Document{},
	}
	if p.search == nil {
		update.Errors = append(update.Errors, RunError{Phase: p.Name(), Message: "search provider not configured"})
		return update, nil
	}

	for i, query := range scoutQueries(st.Niche) {
		if len(update.SearchResults) >= minSearchResults {
			break
		}
		if i > 0 {
			sleepWithContext(ctx, p.delay)
		}

		results, err := p.searchOnce(ctx, query)
		if err != nil {
			update.Errors = append(update.Errors, RunError{
				Phase:   p.Name(),
				Message: fmt.Sprintf("search %q: %v", query, err),
			})
			continue
		}
		update.SearchResults = mergeResults(update.SearchResults, results)
		sink.Emit(Event{Type: EventSearchComplete, Data: map[string]any{
			"query":   query,
			"results": len(update.SearchResults),
		}})
	}

	if len(update.SearchResults) == 0 {
		update.Errors = append(update.Errors, RunError{Phase: p.Name(), Message: "no search results for any query strategy"})
		return update, nil
	}

	for i, r := range update.SearchResults {
		if i >= maxScrapedDocs {
			break
		}
		if i > 0 {
			sleepWithContext(ctx, p.delay)
		}

		doc := Document{URL: r.URL, Title: r.Title, Snippet: r.Snippet}
		content, err := p.fetchOnce(ctx, r.URL)
		if err != nil {
			// Lower-fidelity fallback: the snippet stands in for full content.
			doc.Content = r.Snippet
			update.Errors = append(update.Errors, RunError{
				Phase:   p.Name(),
				Message: fmt.Sprintf("fetch %s: %v", r.URL, err),
			})
		} else {
			doc.Content = content
		}
		update.Documents = append(update.Documents, doc)
	}

	sink.Emit(Event{Type: EventScrapeComplete, Data: map[string]any{
		"documents": len(update.Documents),
	}})
	return update, nil
}

func (p *scoutPhase) searchOnce(ctx context.Context, query string) ([]SearchResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.search.Search(callCtx, query, 10)
}

func (p *scoutPhase) fetchOnce(ctx context.Context, url string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.search.FetchContent(callCtx, url)
}
