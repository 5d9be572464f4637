package api

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Document processing states reported by the backend.
const (
	StatusReady  = "ready"
	StatusFailed = "error"
)

// PageInfo carries a page's intrinsic size in PDF points.
type PageInfo struct {
	Number int     `json:"page_number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DocumentInfo is the metadata endpoint response.
type DocumentInfo struct {
	ID        string     `json:"id"`
	Filename  string     `json:"filename"`
	Status    string     `json:"status"`
	PageCount int        `json:"page_count"`
	Pages     []PageInfo `json:"pages"`
}

// PageText is one entry of the text-content endpoint.
type PageText struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}

// FileURL is where the renderable source can be fetched.
type FileURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// Document fetches document metadata.
func (c *Client) Document(ctx context.Context, id string) (DocumentInfo, error) {
	var info DocumentInfo
	if err := c.getJSON(ctx, c.endpoint("documents", id), &info); err != nil {
		return DocumentInfo{}, err
	}
	return info, nil
}

// TextContent fetches per-page plain text, sorted by page number.
func (c *Client) TextContent(ctx context.Context, id string) ([]PageText, error) {
	var payload struct {
		Pages []PageText `json:"pages"`
	}
	if err := c.getJSON(ctx, c.endpoint("documents", id, "text-content"), &payload); err != nil {
		return nil, err
	}
	sort.SliceStable(payload.Pages, func(i, j int) bool {
		return payload.Pages[i].Number < payload.Pages[j].Number
	})
	return payload.Pages, nil
}

// FileURL fetches the renderable source location.
func (c *Client) FileURL(ctx context.Context, id string) (FileURL, error) {
	var out FileURL
	if err := c.getJSON(ctx, c.endpoint("documents", id, "file-url"), &out); err != nil {
		return FileURL{}, err
	}
	return out, nil
}

// WaitReady polls document metadata until the backend reports it ready. Polls
// are paced by the configured interval.
func (c *Client) WaitReady(ctx context.Context, id string) (DocumentInfo, error) {
	limiter := rate.NewLimiter(rate.Every(c.poll), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return DocumentInfo{}, err
		}
		info, err := c.Document(ctx, id)
		if err != nil {
			return DocumentInfo{}, err
		}
		switch info.Status {
		case StatusReady, "":
			return info, nil
		case StatusFailed:
			return info, fmt.Errorf("document %s: %w", id, ErrDocumentFailed)
		}
		log.Printf("[api] document %s is %s; waiting", id, info.Status)
	}
}

// LoadDocument waits for the document to be ready, then fetches its
// metadata, page text and file location concurrently.
func (c *Client) LoadDocument(ctx context.Context, id string) (DocumentInfo, []PageText, FileURL, error) {
	if _, err := c.WaitReady(ctx, id); err != nil {
		return DocumentInfo{}, nil, FileURL{}, err
	}

	var (
		info  DocumentInfo
		pages []PageText
		file  FileURL
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = c.Document(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		pages, err = c.TextContent(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		file, err = c.FileURL(gctx, id)
		if err != nil {
			// The renderable source is optional for the terminal client.
			log.Printf("[api] file-url for %s unavailable: %v", id, err)
			file = FileURL{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return DocumentInfo{}, nil, FileURL{}, err
	}
	return info, pages, file, nil
}
