package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAckLog_AckAndForget(t *testing.T) {
	mr, client := newTestClient(t)
	log := NewAckLog(client, "")
	ctx := context.Background()
	id := uuid.New()

	acked, err := log.IsAcked(ctx, id)
	require.NoError(t, err)
	assert.False(t, acked)

	require.NoError(t, log.Ack(ctx, id))
	acked, err = log.IsAcked(ctx, id)
	require.NoError(t, err)
	assert.True(t, acked)

	members, err := mr.Members(DefaultAckKey)
	require.NoError(t, err)
	assert.Equal(t, []string{id.String()}, members)

	require.NoError(t, log.Forget(ctx, id))
	acked, err = log.IsAcked(ctx, id)
	require.NoError(t, err)
	assert.False(t, acked)
}

func TestAckLog_CustomKey(t *testing.T) {
	mr, client := newTestClient(t)
	log := NewAckLog(client, "custom:acks")
	id := uuid.New()

	require.NoError(t, log.Ack(context.Background(), id))
	assert.True(t, mr.Exists("custom:acks"))
	assert.False(t, mr.Exists(DefaultAckKey))
}

func TestAckLog_ServerDown(t *testing.T) {
	mr, client := newTestClient(t)
	log := NewAckLog(client, "")
	mr.Close()

	id := uuid.New()
	assert.Error(t, log.Ack(context.Background(), id))
	_, err := log.IsAcked(context.Background(), id)
	assert.Error(t, err)
	assert.Error(t, log.Forget(context.Background(), id))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = Connect(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
