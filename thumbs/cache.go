// Package thumbs fetches and caches decoded thumbnail images keyed by URL.
package thumbs

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultFetchTimeout = 15 * time.Second

// Result is the outcome of an asynchronous thumbnail fetch.
type Result struct {
	URL   string
	Image image.Image
	Err   error
}

// Cache holds decoded images keyed by their source URL. Concurrent fetches of
// the same URL are collapsed into a single request; failures are not cached,
// so a later fetch retries.
type Cache struct {
	http  *http.Client
	group singleflight.Group

	mu     sync.RWMutex
	images map[string]image.Image
}

func NewCache(httpClient *http.Client) *Cache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Cache{
		http:   httpClient,
		images: make(map[string]image.Image),
	}
}

// Get returns the cached image for url, if present. Never blocks on network.
func (c *Cache) Get(url string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[url]
	return img, ok
}

// Fetch returns a channel that delivers exactly one Result for url. A cache
// hit is delivered immediately; otherwise the image is fetched and decoded in
// the background, with concurrent calls for the same URL sharing one request.
func (c *Cache) Fetch(url string) <-chan Result {
	out := make(chan Result, 1)
	if img, ok := c.Get(url); ok {
		out <- Result{URL: url, Image: img}
		return out
	}
	go func() {
		v, err, _ := c.group.Do(url, func() (interface{}, error) {
			return c.download(url)
		})
		if err != nil {
			zap.L().Warn("thumbnail fetch failed", zap.String("url", url), zap.Error(err))
			out <- Result{URL: url, Err: err}
			return
		}
		img := v.(image.Image)
		c.mu.Lock()
		c.images[url] = img
		c.mu.Unlock()
		out <- Result{URL: url, Image: img}
	}()
	return out
}

func (c *Cache) download(url string) (image.Image, error) {
	resp, err := c.http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

// Len reports the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}
