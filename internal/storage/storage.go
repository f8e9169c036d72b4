package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Storage defines the interface for image storage operations
type Storage interface {
	// StoreFromURL downloads and stores an image from a URL
	StoreFromURL(ctx context.Context, url string) (string, error)

	// Delete removes a stored image
	Delete(ctx context.Context, path string) error
}

// LocalStorage implements Storage interface using the local filesystem.
// The worker uses it to keep a copy of each generated image so the
// download affordance keeps working after the provider's URL expires.
type LocalStorage struct {
	outputDir string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(outputDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &LocalStorage{outputDir: outputDir}, nil
}

func (s *LocalStorage) StoreFromURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	outFile, err := os.CreateTemp(s.outputDir, "room-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		os.Remove(outFile.Name()) // Clean up on error
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return outFile.Name(), nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	// Verify the path is within our output directory
	if !filepath.HasPrefix(path, s.outputDir) {
		return fmt.Errorf("invalid file path: must be within output directory")
	}
	return os.Remove(path)
}
