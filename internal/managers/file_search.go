package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

const (
	searchCachePrefix      = "file_search_"
	searchCacheTTL         = 600 * time.Second
	searchNegativeCacheTTL = 120 * time.Second

	searchItemTimeout  = 5 * time.Second
	batchSearchTimeout = 60 * time.Second

	batchSearchWorkers = 3
	fetchAllWorkers    = 4
)

// FileSearch looks up files by exact name across the Drive hierarchy,
// caching results and annotating each hit with its full folder path.
type FileSearch struct {
	store domain.DriveStore
	index *DriveIndex
	cache domain.Cache

	mu       sync.Mutex
	inFlight map[string]chan struct{}
}

type FileSearchDependencies struct {
	Store domain.DriveStore
	Index *DriveIndex
	Cache domain.Cache
}

func NewFileSearch(deps FileSearchDependencies) *FileSearch {
	return &FileSearch{
		store:    deps.Store,
		index:    deps.Index,
		cache:    deps.Cache,
		inFlight: map[string]chan struct{}{},
	}
}

// Search returns every non-folder file with the given exact name, each with
// its resolved full path. Results are cached; an upstream failure is cached
// briefly as an empty result so repeated misses do not hammer the API.
func (f *FileSearch) Search(ctx context.Context, name string) ([]domain.SearchResult, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "file name is required")
	}

	key := searchCachePrefix + name

	if results, ok := f.cached(ctx, key); ok {
		return results, nil
	}

	// Collapse concurrent lookups of the same name onto one upstream call.
	done, leader := f.claim(key)
	if !leader {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if results, ok := f.cached(ctx, key); ok {
			return results, nil
		}
	} else {
		defer f.release(key, done)
	}

	results, err := f.searchUpstream(ctx, name)
	if err != nil {
		if cacheErr := f.put(ctx, key, []domain.SearchResult{}, searchNegativeCacheTTL); cacheErr != nil {
			log.Warn().Err(cacheErr).Str("name", name).Msg("failed to cache negative search result")
		}

		return nil, err
	}

	if cacheErr := f.put(ctx, key, results, searchCacheTTL); cacheErr != nil {
		log.Warn().Err(cacheErr).Str("name", name).Msg("failed to cache search result")
	}

	return results, nil
}

func (f *FileSearch) searchUpstream(ctx context.Context, name string) ([]domain.SearchResult, error) {
	nodes, err := f.store.SearchFiles(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("searching files: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(nodes))

	for _, node := range nodes {
		fullPath, err := f.index.ResolveFullPath(ctx, node)
		if err != nil {
			log.Warn().Err(err).Str("file", node.Name).Msg("failed to resolve full path")

			fullPath = node.Name
		}

		results = append(results, domain.SearchResult{
			ID:       node.ID,
			Name:     node.Name,
			MimeType: node.MimeType,
			FullPath: fullPath,
		})
	}

	return results, nil
}

// BatchResult holds the outcome for one name in a batch search.
type BatchResult struct {
	Name    string
	Results []domain.SearchResult
	Err     error
}

// SearchBatch looks up many names concurrently. Duplicate names are
// collapsed while preserving first-seen order, and a per-name failure does
// not abort the rest of the batch.
func (f *FileSearch) SearchBatch(ctx context.Context, names []string) ([]BatchResult, error) {
	return f.searchMany(ctx, names, batchSearchWorkers)
}

// SearchAll is SearchBatch with a wider worker pool, used when fetching a
// user's full purchased-file set.
func (f *FileSearch) SearchAll(ctx context.Context, names []string) ([]BatchResult, error) {
	return f.searchMany(ctx, names, fetchAllWorkers)
}

func (f *FileSearch) searchMany(ctx context.Context, names []string, workers int) ([]BatchResult, error) {
	unique := dedupe(names)
	if len(unique) == 0 {
		return nil, domain.NewValidationError("names", "at least one file name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, batchSearchTimeout)
	defer cancel()

	jobs := make(chan int)
	results := make([]BatchResult, len(unique))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				results[i] = f.searchOne(ctx, unique[i])
			}
		}()
	}

	for i := range unique {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
	}
	close(jobs)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Items never scheduled report the batch timeout.
		for i := range results {
			if results[i].Name == "" {
				results[i] = BatchResult{Name: unique[i], Err: domain.NewTimeoutError("batch search")}
			}
		}
	}

	return results, nil
}

func (f *FileSearch) searchOne(ctx context.Context, name string) BatchResult {
	itemCtx, cancel := context.WithTimeout(ctx, searchItemTimeout)
	defer cancel()

	results, err := f.Search(itemCtx, name)
	if err != nil {
		if itemCtx.Err() != nil {
			err = domain.NewTimeoutError("file search")
		}

		return BatchResult{Name: name, Err: err}
	}

	return BatchResult{Name: name, Results: results}
}

func (f *FileSearch) cached(ctx context.Context, key string) ([]domain.SearchResult, bool) {
	data, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("search cache read failed")

		return nil, false
	}

	if !ok {
		return nil, false
	}

	var results []domain.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding corrupt search cache entry")

		return nil, false
	}

	return results, true
}

func (f *FileSearch) put(ctx context.Context, key string, results []domain.SearchResult, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding search results: %w", err)
	}

	return f.cache.Set(ctx, key, data, ttl)
}

func (f *FileSearch) claim(key string) (chan struct{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if done, ok := f.inFlight[key]; ok {
		return done, false
	}

	done := make(chan struct{})
	f.inFlight[key] = done

	return done, true
}

func (f *FileSearch) release(key string, done chan struct{}) {
	f.mu.Lock()
	delete(f.inFlight, key)
	f.mu.Unlock()

	close(done)
}

func dedupe(names []string) []string {
	seen := map[string]bool{}

	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}

	return out
}
