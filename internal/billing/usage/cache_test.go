package usage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(db, time.Minute)
	ctx := context.Background()

	snap := &Snapshot{UserID: "u-1", Tier: "starter", EffectiveTier: "starter", InterviewsLimit: 15}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectGet("entitlement:u-1").RedisNil()
	mock.ExpectSet("entitlement:u-1", raw, time.Minute).SetVal("OK")
	mock.ExpectGet("entitlement:u-1").SetVal(string(raw))
	mock.ExpectDel("entitlement:u-1").SetVal(1)

	miss, err := cache.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.Set(ctx, snap))

	hit, err := cache.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, snap, hit)

	require.NoError(t, cache.Invalidate(ctx, "u-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
