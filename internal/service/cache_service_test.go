package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
)

type cacheRepoStub struct {
	data    map[string][]byte
	deleted []string
	getErr  error
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	raw, ok := s.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = raw
	return nil
}

func (s *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	repo := &cacheRepoStub{}
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var dest models.Request
	hit, err := cache.Get(ctx, "request:req-1", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "request:req-1", models.Request{ID: "req-1"}, 0))
	hit, err = cache.Get(ctx, "request:req-1", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "req-1", dest.ID)

	require.NoError(t, cache.Invalidate(ctx, "request:req-1"))
	assert.Equal(t, []string{"request:req-1"}, repo.deleted)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 1e-9)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilCache *CacheService
	hit, err := nilCache.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
	assert.NoError(t, nilCache.Set(context.Background(), "k", 1, 0))

	repo := &cacheRepoStub{getErr: errors.New("boom")}
	disabled := NewCacheService(repo, nil, 0, nil, false)
	hit, err = disabled.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
}

func TestCacheServiceEvictsUndecodableEntries(t *testing.T) {
	repo := &cacheRepoStub{data: map[string][]byte{"request:req-1": []byte(`{"id":42}`)}}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	var dest models.Request
	hit, err := cache.Get(context.Background(), "request:req-1", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"request:req-1"}, repo.deleted)

	repo.getErr = errors.New("connection refused")
	hit, err = cache.Get(context.Background(), "request:req-2", &dest)
	require.Error(t, err)
	assert.False(t, hit)
	assert.Len(t, repo.deleted, 1)
}

func TestWorkflowGetServesFromCache(t *testing.T) {
	repo := &cacheRepoStub{}
	f := newWorkflowFixture(t, nil, storedRequest())
	WithWorkflowCache(NewCacheService(repo, nil, time.Minute, nil, true), time.Minute)(f.svc)
	ctx := context.Background()

	first, err := f.svc.Get(ctx, "req-1")
	require.NoError(t, err)
	delete(f.store.records, "req-1")

	second, err := f.svc.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.LibraryStatus, second.LibraryStatus)
}

func TestWorkflowApplyInvalidatesCache(t *testing.T) {
	repo := &cacheRepoStub{}
	f := newWorkflowFixture(t, nil, storedRequest())
	WithWorkflowCache(NewCacheService(repo, nil, time.Minute, nil, true), time.Minute)(f.svc)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "req-1")
	require.NoError(t, err)
	_, err = f.svc.Apply(ctx, "req-1", libraryActor, map[models.Field]string{models.FieldLibraryStatus: "Clear"})
	require.NoError(t, err)

	assert.Contains(t, repo.deleted, "request:req-1")
	fresh, err := f.svc.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.LibraryClear, fresh.LibraryStatus)
}
