// Package catalog is the HTTP client for the remote catalog API that owns
// the product, category and image records of truth.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalog-sync/models"
)

// DefaultTimeout bounds a single catalog request when no custom http.Client
// is supplied.
const DefaultTimeout = 30 * time.Second

// Client talks to the remote catalog API. All methods are synchronous and
// safe to call from a single control goroutine.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client for the given API base URL (e.g.
// "http://localhost:5001/api"). Pass nil to use a default http.Client.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog API: %s (status %d)", e.Message, e.StatusCode)
}

// ImagePlacement is one entry of the full replacement image set sent to
// POST /products/{id}/images.
type ImagePlacement struct {
	URL   string `json:"url"`
	Order int    `json:"order"`
}

// ImageOrder re-positions an existing remote image by its identifier. Used by
// PATCH /products/{id}/images/reorder.
type ImageOrder struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// ProductPage is one page of the paginated product listing.
type ProductPage struct {
	Products    []models.Product `json:"products"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	body := map[string]string{"name": name}
	var out models.Category
	if err := c.do(ctx, http.MethodPost, "/categories", body, &out); err != nil {
		return models.Category{}, err
	}
	return out, nil
}

func (c *Client) ListProducts(ctx context.Context, page, limit int) (*ProductPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out ProductPage
	if err := c.do(ctx, http.MethodGet, "/products?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &out); err != nil {
		return models.Product{}, err
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, draft models.ProductDraft) (models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPost, "/products", draft, &out); err != nil {
		return models.Product{}, err
	}
	return out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, draft models.ProductDraft) (models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), draft, &out); err != nil {
		return models.Product{}, err
	}
	return out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil)
}

// AppendImages writes the given ordered image set to the product. The
// returned slice carries the remote identifiers when the API includes them in
// its response; callers must tolerate an empty result.
func (c *Client) AppendImages(ctx context.Context, productID string, images []ImagePlacement) ([]models.RemoteImage, error) {
	body := map[string][]ImagePlacement{"images": images}
	var out struct {
		Images []models.RemoteImage `json:"images"`
	}
	if err := c.do(ctx, http.MethodPost, "/products/"+url.PathEscape(productID)+"/images", body, &out); err != nil {
		return nil, err
	}
	return out.Images, nil
}

// ClearImages removes every image from the product record.
func (c *Client) ClearImages(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(productID)+"/images", nil, nil)
}

// ReorderImages re-sequences the product's existing images without replacing
// them, preserving remote image identity.
func (c *Client) ReorderImages(ctx context.Context, productID string, orders []ImageOrder) error {
	body := map[string][]ImageOrder{"images": orders}
	return c.do(ctx, http.MethodPatch, "/products/"+url.PathEscape(productID)+"/images/reorder", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// An empty 2xx body is fine; some write endpoints return no payload.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError turns an error response into an APIError, preferring the API's
// {"message": ...} envelope and falling back to the raw body.
func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(b, &payload); err == nil {
		msg = payload.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(b))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
