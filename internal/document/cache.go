package document

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// CacheEnvVar overrides the cache directory.
	CacheEnvVar = "DOCSCOUT_CACHE_DIR"

	cacheSubdir     = "docscout/files"
	defaultCacheTTL = 7 * 24 * time.Hour
	partialSuffix   = ".part"
	metaSuffix      = ".meta"
	fetchTimeout    = 90 * time.Second
)

// FileCache keeps downloaded document files on disk keyed by document id.
// Signed file URLs change between sessions, so the id is the cache key and
// the URL is only used to fetch.
type FileCache struct {
	dir    string
	ttl    time.Duration
	client *http.Client
}

type fileMeta struct {
	DocumentID   string    `json:"document_id"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	CachedAt     time.Time `json:"cached_at"`
	Size         int64     `json:"size"`
}

// NewFileCache creates the cache under dir. An empty dir falls back to
// $DOCSCOUT_CACHE_DIR and then the user cache directory.
func NewFileCache(dir string, ttl time.Duration, client *http.Client) (*FileCache, error) {
	if dir == "" {
		dir = os.Getenv(CacheEnvVar)
	}
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "docscout-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &FileCache{dir: dir, ttl: ttl, client: client}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Fetch returns a local path holding the file for documentID, downloading
// it from fileURL when the cached copy is missing or stale. A stale copy is
// still returned when the refresh fails.
func (c *FileCache) Fetch(ctx context.Context, documentID, fileURL string) (string, error) {
	key := cacheKey(documentID)
	if key == "" {
		return "", fmt.Errorf("cache: empty document id")
	}
	dataPath, metaPath, partialPath := c.pathsFor(key)

	current, _ := os.Stat(dataPath)
	if current != nil && current.Size() > 0 && time.Since(current.ModTime()) < c.ttl {
		return dataPath, nil
	}
	if fileURL == "" {
		if current != nil && current.Size() > 0 {
			return dataPath, nil
		}
		return "", fmt.Errorf("cache: no file url for %s", documentID)
	}

	meta, _ := readMeta(metaPath)
	meta.DocumentID = documentID
	err := c.download(ctx, fileURL, dataPath, metaPath, partialPath, meta, current)
	if err == nil {
		return dataPath, nil
	}
	if current != nil && current.Size() > 0 {
		log.Printf("[cache] refresh %s failed, using stale copy: %v", documentID, err)
		return dataPath, nil
	}
	return "", err
}

func (c *FileCache) download(ctx context.Context, fileURL, dataPath, metaPath, partialPath string, meta fileMeta, current os.FileInfo) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	if current != nil && current.Size() > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	var resumeFrom int64
	if info, err := os.Stat(partialPath); err == nil && info.Size() > 0 && meta.ETag != "" {
		resumeFrom = info.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
		req.Header.Set("If-Range", meta.ETag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	log.Printf("[cache] GET %s status=%d", meta.DocumentID, resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusNotModified:
		if current == nil || current.Size() == 0 {
			return fmt.Errorf("cache: not modified but nothing cached")
		}
		now := time.Now()
		meta.CachedAt = now.UTC()
		_ = os.Chtimes(dataPath, now, now)
		return writeMeta(metaPath, meta)
	case http.StatusOK:
		return c.save(resp, dataPath, metaPath, partialPath, meta.DocumentID, false)
	case http.StatusPartialContent:
		return c.save(resp, dataPath, metaPath, partialPath, meta.DocumentID, resumeFrom > 0)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("file download failed: %s (%s)", resp.Status, strings.TrimSpace(string(body)))
	}
}

func (c *FileCache) save(resp *http.Response, dataPath, metaPath, partialPath, documentID string, resume bool) error {
	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(partialPath, flags, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if err := os.Rename(partialPath, dataPath); err != nil {
		return err
	}

	meta := fileMeta{
		DocumentID:   documentID,
		ETag:         resp.Header.Get("Etag"),
		LastModified: resp.Header.Get("Last-Modified"),
		CachedAt:     time.Now().UTC(),
	}
	if info, err := os.Stat(dataPath); err == nil {
		meta.Size = info.Size()
	}
	return writeMeta(metaPath, meta)
}

func (c *FileCache) pathsFor(key string) (string, string, string) {
	base := filepath.Join(c.dir, key)
	return base + ".pdf", base + metaSuffix, base + partialSuffix
}

func cacheKey(id string) string {
	id = strings.TrimSpace(id)
	r := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "..", "-")
	return r.Replace(id)
}

func readMeta(path string) (fileMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileMeta{}, err
	}
	var meta fileMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fileMeta{}, err
	}
	return meta, nil
}

func writeMeta(path string, meta fileMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
