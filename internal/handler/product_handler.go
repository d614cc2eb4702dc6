package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/artizone/internal/middleware"
	"github.com/hitoshi/artizone/internal/model"
)

// ProductHandler は商品カタログのHTTPハンドラー。
type ProductHandler struct {
	storefront StorefrontFactory
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(storefront StorefrontFactory) *ProductHandler {
	return &ProductHandler{storefront: storefront}
}

// ListProducts はお気に入り状態付きの商品一覧を返す。
// GET /api/products?category=
// 取得元の障害時も空の配列を200で返す。
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	catalog, _ := h.storefront.ForClient(clientID(r))
	products := catalog.GetAll(r.Context(), r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, products)
}

// GetProduct は商品を1件返す。
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	catalog, _ := h.storefront.ForClient(clientID(r))
	product, ok := catalog.GetByID(r.Context(), productID)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(productID))
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// clientID はClientIDミドルウェアが注入したクライアントIDを返す。
func clientID(r *http.Request) string {
	id, _ := middleware.ClientIDFromContext(r.Context())
	return id
}
