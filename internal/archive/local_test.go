package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPut(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocal(base)
	require.NoError(t, err)

	uri, err := store.Put(context.Background(), "pages/abc123.html", "text/html", []byte("<html></html>"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(base, "pages", "abc123.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestLocalPutRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape.html", "", []byte("x"))
	require.Error(t, err)
}

func TestLocalPutRejectsEmptyPath(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "  ", "", []byte("x"))
	require.Error(t, err)
}

func TestNewLocalCreatesDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "archive")
	_, err := NewLocal(base)
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewLocalRequiresBaseDir(t *testing.T) {
	_, err := NewLocal("")
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	var n Noop
	uri, err := n.Put(context.Background(), "anything", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "noop://anything", uri)
	assert.NoError(t, n.Close())
}
