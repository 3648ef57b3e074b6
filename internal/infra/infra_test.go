package infra

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisClient(context.Background(), "")
	assert.Error(t, err)
	_, err = NewRedisClient(context.Background(), "::not a url")
	assert.Error(t, err)
}

func TestNewPostgresPoolRejectsBadConfig(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), "")
	assert.Error(t, err)
	_, err = NewPostgresPool(context.Background(), "postgres://%zz")
	assert.ErrorContains(t, err, "parse postgres config")
}
