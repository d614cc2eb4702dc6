package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/artizone/internal/favorites"
	"github.com/hitoshi/artizone/internal/model"
)

// FavoritesHandler はお気に入りのHTTPハンドラー。
// お気に入りはサインイン不要で、client_id Cookieごとに保存される。
type FavoritesHandler struct {
	storefront StorefrontFactory
}

// NewFavoritesHandler はFavoritesHandlerを生成する。
func NewFavoritesHandler(storefront StorefrontFactory) *FavoritesHandler {
	return &FavoritesHandler{storefront: storefront}
}

// favoriteStatusResponse は商品ごとのお気に入り状態。
type favoriteStatusResponse struct {
	ProductID  string `json:"productId"`
	IsFavorite bool   `json:"isFavorite"`
}

// ListFavorites はお気に入り一覧に絞り込みと並び替えを適用して返す。
// GET /api/favorites?category=&q=&sort=
func (h *FavoritesHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	_, svc := h.storefront.ForClient(clientID(r))

	products := svc.Query(r.Context(), favorites.Filter{
		Category: query.Get("category"),
		Search:   query.Get("q"),
		Sort:     model.ProductSort(query.Get("sort")),
	})
	writeJSON(w, http.StatusOK, products)
}

// GetFavorite は商品のお気に入り状態を返す。
// GET /api/favorites/{id}
func (h *FavoritesHandler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	_, svc := h.storefront.ForClient(clientID(r))

	writeJSON(w, http.StatusOK, favoriteStatusResponse{
		ProductID:  productID,
		IsFavorite: svc.IsFavorite(r.Context(), productID),
	})
}

// ToggleFavorite は商品のお気に入り状態を反転する。
// POST /api/favorites/{id}/toggle
// 保存に失敗した場合は503を返し、状態は変更されない。
func (h *FavoritesHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	_, svc := h.storefront.ForClient(clientID(r))

	if !svc.Toggle(r.Context(), productID) {
		handleServiceError(w, model.NewStorageUnavailableError())
		return
	}

	writeJSON(w, http.StatusOK, favoriteStatusResponse{
		ProductID:  productID,
		IsFavorite: svc.IsFavorite(r.Context(), productID),
	})
}
