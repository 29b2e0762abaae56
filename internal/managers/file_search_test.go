package managers

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	value   []byte
	expires time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]memoryCacheEntry{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryCacheEntry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

type countingStore struct {
	*fakeDriveStore

	mu       sync.Mutex
	searches int
	err      error
}

func (s *countingStore) SearchFiles(ctx context.Context, name string) ([]domain.DriveNode, error) {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return s.fakeDriveStore.SearchFiles(ctx, name)
}

func (s *countingStore) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

func newSearchFixture(t *testing.T) (*FileSearch, *countingStore, *memoryCache) {
	t.Helper()

	inner := newFakeDriveStore()
	inner.add("", folder("root", "মৌজা ম্যাপ ফাইল"))
	inner.add("root", folder("dhaka", "Dhaka"))
	inner.add("dhaka", file("f1", "১_mouza_১_map.jpg"))

	store := &countingStore{fakeDriveStore: inner}
	cache := newMemoryCache()
	index := NewDriveIndex(DriveIndexDependencies{Store: store, RootFolder: "মৌজা ম্যাপ ফাইল"})

	search := NewFileSearch(FileSearchDependencies{Store: store, Index: index, Cache: cache})
	return search, store, cache
}

func TestFileSearch_Search(t *testing.T) {
	search, store, _ := newSearchFixture(t)

	results, err := search.Search(context.Background(), "১_mouza_১_map.jpg")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "f1", results[0].ID)
	assert.Equal(t, "মৌজা ম্যাপ ফাইল/Dhaka/১_mouza_১_map.jpg", results[0].FullPath)

	// Second lookup is served from cache.
	_, err = search.Search(context.Background(), "১_mouza_১_map.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1, store.searchCount())
}

func TestFileSearch_EmptyName(t *testing.T) {
	search, _, _ := newSearchFixture(t)

	_, err := search.Search(context.Background(), "")
	assert.True(t, domain.IsValidation(err))
}

func TestFileSearch_NegativeCaching(t *testing.T) {
	search, store, _ := newSearchFixture(t)
	store.err = errors.New("upstream down")

	_, err := search.Search(context.Background(), "missing.jpg")
	require.Error(t, err)

	// The failure left an empty cached entry, so the retry skips upstream.
	results, err := search.Search(context.Background(), "missing.jpg")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, store.searchCount())
}

func TestFileSearch_SearchBatch(t *testing.T) {
	search, store, _ := newSearchFixture(t)
	store.fakeDriveStore.add("dhaka", file("f2", "২_mouza_২_map.jpg"))

	results, err := search.SearchBatch(context.Background(), []string{
		"১_mouza_১_map.jpg",
		"২_mouza_২_map.jpg",
		"১_mouza_১_map.jpg", // duplicate, collapsed
		"nope.jpg",
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "১_mouza_১_map.jpg", results[0].Name)
	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Results, 1)

	assert.Equal(t, "২_mouza_২_map.jpg", results[1].Name)
	require.NoError(t, results[1].Err)

	assert.Equal(t, "nope.jpg", results[2].Name)
	require.NoError(t, results[2].Err)
	assert.Empty(t, results[2].Results)
}

func TestFileSearch_SearchBatchEmpty(t *testing.T) {
	search, _, _ := newSearchFixture(t)

	_, err := search.SearchBatch(context.Background(), []string{"", ""})
	assert.True(t, domain.IsValidation(err))
}

func TestFileSearch_ConcurrentDedup(t *testing.T) {
	inner := newFakeDriveStore()
	inner.add("", folder("root", "মৌজা ম্যাপ ফাইল"))
	inner.add("root", file("f1", "same.jpg"))

	store := &slowStore{fakeDriveStore: inner, delay: 50 * time.Millisecond}
	cache := newMemoryCache()
	index := NewDriveIndex(DriveIndexDependencies{Store: store, RootFolder: "মৌজা ম্যাপ ফাইল"})
	search := NewFileSearch(FileSearchDependencies{Store: store, Index: index, Cache: cache})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := search.Search(context.Background(), "same.jpg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.searchCount())
}

type slowStore struct {
	*fakeDriveStore

	mu       sync.Mutex
	delay    time.Duration
	searches int
}

func (s *slowStore) SearchFiles(ctx context.Context, name string) ([]domain.DriveNode, error) {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()

	time.Sleep(s.delay)
	return s.fakeDriveStore.SearchFiles(ctx, name)
}

func (s *slowStore) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

func (s *slowStore) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return s.fakeDriveStore.Download(ctx, id)
}
