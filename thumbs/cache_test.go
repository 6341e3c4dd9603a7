package thumbs

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetchDecodesAndCaches(t *testing.T) {
	var requests int32
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write(body)
	}))
	defer srv.Close()

	cache := NewCache(srv.Client())
	url := srv.URL + "/thumb.png"

	_, ok := cache.Get(url)
	assert.False(t, ok)

	res := <-cache.Fetch(url)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Image)
	assert.Equal(t, 4, res.Image.Bounds().Dx())

	// Second fetch is served from memory.
	res = <-cache.Fetch(url)
	require.NoError(t, res.Err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	img, ok := cache.Get(url)
	assert.True(t, ok)
	assert.NotNil(t, img)
	assert.Equal(t, 1, cache.Len())
}

func TestFetchCollapsesConcurrentRequests(t *testing.T) {
	var requests int32
	gate := make(chan struct{})
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		<-gate
		w.Write(body)
	}))
	defer srv.Close()

	cache := NewCache(srv.Client())
	url := srv.URL + "/thumb.png"

	const n = 5
	results := make([]<-chan Result, n)
	for i := range results {
		results[i] = cache.Fetch(url)
	}
	time.Sleep(50 * time.Millisecond) // let every fetch join the in-flight call
	close(gate)

	for _, ch := range results {
		res := <-ch
		require.NoError(t, res.Err)
		require.NotNil(t, res.Image)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestFetchFailureNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	cache := NewCache(srv.Client())
	url := srv.URL + "/thumb.png"

	res := <-cache.Fetch(url)
	require.Error(t, res.Err)
	assert.Zero(t, cache.Len())

	fail.Store(false)
	res = <-cache.Fetch(url)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, cache.Len())
}

func TestFetchDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	cache := NewCache(srv.Client())
	res := <-cache.Fetch(srv.URL + "/broken")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "decode")
}
