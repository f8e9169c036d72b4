package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreFromURL(t *testing.T) {
	imageBytes := []byte("fake png bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(imageBytes)
	}))
	defer server.Close()

	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	assert.NoError(t, err)

	path, err := store.StoreFromURL(context.Background(), server.URL)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, dir))
	assert.True(t, strings.HasSuffix(path, ".png"))

	stored, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, imageBytes, stored)
}

func TestStoreFromURLDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store, err := NewLocalStorage(t.TempDir())
	assert.NoError(t, err)

	_, err = store.StoreFromURL(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	assert.NoError(t, err)

	path := filepath.Join(dir, "room-test.png")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	assert.NoError(t, store.Delete(context.Background(), path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteRejectsPathOutsideOutputDir(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	assert.NoError(t, err)

	err = store.Delete(context.Background(), "/etc/passwd")
	assert.Error(t, err)
}
