package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Accessor is the filesystem/network collaborator used to obtain source
// bytes and to copy files verbatim.
type Accessor interface {
	ReadFile(path string) ([]byte, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
	CopyFile(src, dst string) error
}

// AccessorConfig configures the default Accessor.
type AccessorConfig struct {
	// MaxBytes rejects sources larger than this (0 = unlimited).
	MaxBytes int64
	// Timeout bounds a single remote fetch.
	Timeout time.Duration
	// Client overrides the HTTP client.
	Client *http.Client
}

type fsAccessor struct {
	maxBytes int64
	client   *http.Client
}

// NewAccessor returns an Accessor backed by the local filesystem and an
// HTTP client.
func NewAccessor(cfg AccessorConfig) Accessor {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &fsAccessor{maxBytes: cfg.MaxBytes, client: client}
}

func (a *fsAccessor) ReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if a.maxBytes > 0 && info.Size() > a.maxBytes {
		return nil, fmt.Errorf("%s: %d bytes exceeds limit of %d", path, info.Size(), a.maxBytes)
	}
	return os.ReadFile(path)
}

func (a *fsAccessor) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	var body io.Reader = resp.Body
	if a.maxBytes > 0 {
		body = io.LimitReader(resp.Body, a.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if a.maxBytes > 0 && int64(len(data)) > a.maxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds limit of %d bytes", url, a.maxBytes)
	}
	return data, nil
}

// CopyFile duplicates src at dst byte for byte. The copy goes through a
// temp file in the destination directory and is renamed into place, so a
// concurrent reader never observes a partial file.
func (a *fsAccessor) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	return os.Rename(tmpPath, dst)
}
