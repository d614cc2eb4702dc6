package handler

import (
	"context"
	"log/slog"

	"github.com/hitoshi/artizone/internal/catalog"
	"github.com/hitoshi/artizone/internal/favorites"
	"github.com/hitoshi/artizone/internal/keyset"
	"github.com/hitoshi/artizone/internal/metrics"
	"github.com/hitoshi/artizone/internal/model"
	"github.com/hitoshi/artizone/internal/repository"
)

// CatalogReader は商品ハンドラーが必要とするカタログ操作。catalog.Loaderが実装する。
type CatalogReader interface {
	GetAll(ctx context.Context, category string) []model.Product
	GetByID(ctx context.Context, id string) (model.Product, bool)
}

// FavoritesService はお気に入りハンドラーが必要とする操作。favorites.Serviceが実装する。
type FavoritesService interface {
	List(ctx context.Context) []model.Product
	Toggle(ctx context.Context, productID string) bool
	IsFavorite(ctx context.Context, productID string) bool
	Query(ctx context.Context, f favorites.Filter) []model.Product
}

// StorefrontFactory はクライアントIDごとのカタログとお気に入りサービスを生成する。
type StorefrontFactory interface {
	ForClient(clientID string) (CatalogReader, FavoritesService)
}

// Storefront は共有の商品取得元とクライアントストレージから
// クライアント単位のcatalog.Loaderとfavorites.Serviceを組み立てるアダプタ。
type Storefront struct {
	source   catalog.Source
	storage  repository.ClientStorage
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewStorefront はStorefrontを生成する。
func NewStorefront(source catalog.Source, storage repository.ClientStorage, recorder metrics.Recorder, logger *slog.Logger) *Storefront {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storefront{
		source:   source,
		storage:  storage,
		recorder: recorder,
		logger:   logger,
	}
}

// ForClient はクライアントのお気に入り集合に結び付いたサービスを返す。
func (s *Storefront) ForClient(clientID string) (CatalogReader, FavoritesService) {
	logger := s.logger.With(slog.String("client_id", clientID))
	keys := keyset.New(repository.ForClient(s.storage, clientID), logger)
	loader := catalog.NewLoader(s.source, keys, s.recorder, logger)
	return loader, favorites.NewService(loader, keys, s.recorder, logger)
}

var _ StorefrontFactory = (*Storefront)(nil)
