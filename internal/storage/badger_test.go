// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.New().String()

	meta, err := s.Put(ctx, id, "order-log.jsonocel", []byte(`{"objectTypes":[]}`))
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, int64(18), meta.Size)
	assert.False(t, meta.UploadedAt.IsZero())

	data, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"objectTypes":[]}`), data)

	stat, err := s.Stat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "order-log.jsonocel", stat.Filename)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Stat(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPingReflectsStoreState(t *testing.T) {
	s, err := OpenBadgerStore("")
	require.NoError(t, err)

	assert.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestPutOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.New().String()

	_, err := s.Put(ctx, id, "a.jsonocel", []byte("first"))
	require.NoError(t, err)
	_, err = s.Put(ctx, id, "b.jsonocel", []byte("second"))
	require.NoError(t, err)

	data, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}
