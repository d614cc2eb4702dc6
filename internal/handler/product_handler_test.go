package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/artizone/internal/keyset"
	"github.com/hitoshi/artizone/internal/middleware"
	"github.com/hitoshi/artizone/internal/model"
)

// withURLParam はchiのルーティングを通過した状態のリクエストを返す。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeProducts(t *testing.T, w *httptest.ResponseRecorder) []model.Product {
	t.Helper()
	var products []model.Product
	if err := json.NewDecoder(w.Body).Decode(&products); err != nil {
		t.Fatalf("failed to decode products: %v", err)
	}
	return products
}

func productIDs(products []model.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func TestProductHandler_ListProducts(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{"all products in source order", "", []string{"p1", "p2", "p3"}},
		{"All sentinel", "?category=All", []string{"p1", "p2", "p3"}},
		{"category is case-insensitive", "?category=pottery", []string{"p1", "p3"}},
		{"unknown category", "?category=Glass", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := NewProductHandler(env.deps.Storefront)

			req := withClient(httptest.NewRequest(http.MethodGet, "/api/products"+tt.query, nil), "client-a")
			w := httptest.NewRecorder()
			h.ListProducts(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			got := productIDs(decodeProducts(t, w))
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("ids = %v, want %v", got, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestProductHandler_ListProducts_AnnotatesFavorites(t *testing.T) {
	env := newTestEnv(t)
	if err := env.storage.Set(context.Background(), "client-a", keyset.Key, `["p2"]`); err != nil {
		t.Fatal(err)
	}
	h := NewProductHandler(env.deps.Storefront)

	w := httptest.NewRecorder()
	h.ListProducts(w, withClient(httptest.NewRequest(http.MethodGet, "/api/products", nil), "client-a"))

	for _, p := range decodeProducts(t, w) {
		if want := p.ID == "p2"; p.IsFavorite != want {
			t.Errorf("%s isFavorite = %v, want %v", p.ID, p.IsFavorite, want)
		}
	}

	// 他のクライアントのお気に入りは見えない
	w = httptest.NewRecorder()
	h.ListProducts(w, withClient(httptest.NewRequest(http.MethodGet, "/api/products", nil), "client-b"))
	for _, p := range decodeProducts(t, w) {
		if p.IsFavorite {
			t.Errorf("%s should not be a favorite for client-b", p.ID)
		}
	}
}

func TestProductHandler_ListProducts_SourceFailureReturnsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.source.err = errors.New("catalog unavailable")
	h := NewProductHandler(env.deps.Storefront)

	w := httptest.NewRecorder()
	h.ListProducts(w, withClient(httptest.NewRequest(http.MethodGet, "/api/products", nil), "client-a"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if products := decodeProducts(t, w); len(products) != 0 {
		t.Errorf("len = %d, want 0", len(products))
	}
}

func TestProductHandler_GetProduct(t *testing.T) {
	env := newTestEnv(t)
	h := NewProductHandler(env.deps.Storefront)

	t.Run("found", func(t *testing.T) {
		req := withURLParam(withClient(httptest.NewRequest(http.MethodGet, "/api/products/p3", nil), "client-a"), "id", "p3")
		w := httptest.NewRecorder()
		h.GetProduct(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var p model.Product
		json.NewDecoder(w.Body).Decode(&p)
		if p.ID != "p3" || p.Name != "Bowl" {
			t.Errorf("product = %+v", p)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := withURLParam(withClient(httptest.NewRequest(http.MethodGet, "/api/products/p9", nil), "client-a"), "id", "p9")
		w := httptest.NewRecorder()
		h.GetProduct(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
		var body middleware.ErrorResponseBody
		json.NewDecoder(w.Body).Decode(&body)
		if body.Code != model.ErrCodeProductNotFound {
			t.Errorf("code = %q, want %q", body.Code, model.ErrCodeProductNotFound)
		}
	})
}
