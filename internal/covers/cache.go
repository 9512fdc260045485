package covers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxCoverBytes = 5 << 20

var ErrNotImage = errors.New("cover is not an image")

// Key is the object key a book's cover is stored under.
func Key(id string) string {
	return "covers/" + id + ".jpg"
}

// Cache copies cover images into an ObjectStore once per book.
type Cache struct {
	store  ObjectStore
	client *http.Client
	log    *zap.Logger
}

func NewCache(store ObjectStore, client *http.Client, log *zap.Logger) *Cache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Cache{store: store, client: client, log: log}
}

// Mirror downloads src into covers/<id>.jpg unless the object already
// exists. It reports whether a download happened.
func (c *Cache) Mirror(ctx context.Context, id, src string) (bool, error) {
	key := Key(id)
	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return false, fmt.Errorf("cover request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("download cover: HTTP %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return false, fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes+1))
	if err != nil {
		return false, fmt.Errorf("read cover: %w", err)
	}
	if len(body) > maxCoverBytes {
		return false, fmt.Errorf("cover larger than %d bytes", maxCoverBytes)
	}

	if err := c.store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return false, err
	}
	c.log.Info("cover mirrored", zap.String("book_id", id), zap.String("key", key), zap.Int("bytes", len(body)))
	return true, nil
}

// Remove deletes a book's mirrored cover.
func (c *Cache) Remove(ctx context.Context, id string) error {
	return c.store.Delete(ctx, Key(id))
}
