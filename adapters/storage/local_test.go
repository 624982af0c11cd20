package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"dataportal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewLocalFileStorage(t.TempDir())

	key, err := s.Store(ctx, strings.NewReader("%PDF-1.4 body"), "Laporan Tahunan.PDF")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "Laporan_Tahunan_"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.GetReader(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4 body", string(body))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))

	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.GetReader(ctx, key)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestLocalFileStorageRejectsTraversal(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir())
	_, err := s.GetReader(context.Background(), "../etc/passwd")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestUniqueNamesDiffer(t *testing.T) {
	assert.NotEqual(t, uniqueName("a.pdf"), uniqueName("a.pdf"))
}
