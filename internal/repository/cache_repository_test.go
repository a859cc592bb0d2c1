package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]string
	require.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "k", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.Delete(ctx, "k"))

	claimed, err := repo.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Close())
}
