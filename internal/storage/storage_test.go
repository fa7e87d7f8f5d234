package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "uploads"), "/uploads")
	require.NoError(t, err)

	url, err := store.Store(context.Background(), []byte("payload"), "report.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	name := strings.TrimPrefix(url, "/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, "uploads", name))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestLocalStoreUniqueNames(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	a, err := store.Store(context.Background(), []byte("one"), "same.txt")
	require.NoError(t, err)
	b, err := store.Store(context.Background(), []byte("two"), "same.txt")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
