package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-sync/models"
)

func TestListCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/categories", r.URL.Path)
		json.NewEncoder(w).Encode([]models.Category{
			{ID: "c1", Name: "Shoes"},
			{ID: "c2", Name: "Bags"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	cats, err := client.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Shoes", cats[0].Name)
}

func TestCreateProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var draft models.ProductDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Equal(t, "Runner", draft.Name)
		assert.Equal(t, "c1", draft.CategoryID)

		json.NewEncoder(w).Encode(models.Product{ID: "p1", Name: draft.Name})
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	product, err := client.CreateProduct(context.Background(), models.ProductDraft{
		Name: "Runner", Description: "d", Price: 10, Stock: 3, CategoryID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", product.ID)
}

func TestListProductsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(ProductPage{
			Products:    []models.Product{{ID: "p1"}},
			TotalPages:  4,
			CurrentPage: 2,
		})
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	page, err := client.ListProducts(context.Background(), 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	require.Len(t, page.Products, 1)
}

func TestImageEndpoints(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string][]models.RemoteImage{
				"images": {{ID: "i1", URL: "https://cdn/a.jpg", Order: 0}},
			})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	ctx := context.Background()

	t.Run("Append", func(t *testing.T) {
		remote, err := client.AppendImages(ctx, "p1", []ImagePlacement{{URL: "https://cdn/a.jpg", Order: 0}})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/products/p1/images", gotPath)
		assert.JSONEq(t, `{"images":[{"url":"https://cdn/a.jpg","order":0}]}`, string(gotBody))
		require.Len(t, remote, 1)
		assert.Equal(t, "i1", remote[0].ID)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, client.ClearImages(ctx, "p1"))
		assert.Equal(t, http.MethodDelete, gotMethod)
		assert.Equal(t, "/products/p1/images", gotPath)
	})

	t.Run("Reorder", func(t *testing.T) {
		err := client.ReorderImages(ctx, "p1", []ImageOrder{{ID: "i2", Order: 0}, {ID: "i1", Order: 1}})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPatch, gotMethod)
		assert.Equal(t, "/products/p1/images/reorder", gotPath)
		assert.JSONEq(t, `{"images":[{"id":"i2","order":0},{"id":"i1","order":1}]}`, string(gotBody))
	})
}

func TestAPIErrorMessage(t *testing.T) {
	t.Run("MessageEnvelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "category not found"})
		}))
		defer srv.Close()

		client := New(srv.URL, srv.Client())
		_, err := client.GetProduct(context.Background(), "p1")
		require.Error(t, err)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Contains(t, apiErr.Message, "category not found")
	})

	t.Run("PlainBody", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := New(srv.URL, srv.Client())
		err := client.DeleteProduct(context.Background(), "p1")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	})
}
