// Package favorites はお気に入り商品の照会と切り替えを提供する。
//
// 切り替えは KeySet の Load → 反転 → Save で行い、ロックやキューは持たない。
// 同一クライアントから重複した切り替えが並行した場合は、最後に保存した側が勝つ。
package favorites

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hitoshi/artizone/internal/catalog"
	"github.com/hitoshi/artizone/internal/keyset"
	"github.com/hitoshi/artizone/internal/metrics"
	"github.com/hitoshi/artizone/internal/model"
)

// Catalog はお気に入り状態を付与済みの商品リストを返す。catalog.Loaderが実装する。
type Catalog interface {
	GetAll(ctx context.Context, category string) []model.Product
}

// KeyStore はお気に入り集合の読み書き。keyset.KeySetが実装する。
type KeyStore interface {
	Load(ctx context.Context) *keyset.Set
	Save(ctx context.Context, set *keyset.Set) bool
}

// Filter はお気に入り一覧画面の絞り込み・並び替え条件。
type Filter struct {
	Category string
	Search   string
	Sort     model.ProductSort
}

// Service はお気に入りの照会と切り替えを提供する。
type Service struct {
	catalog  Catalog
	keys     KeyStore
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(catalog Catalog, keys KeyStore, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  catalog,
		keys:     keys,
		recorder: recorder,
		logger:   logger,
	}
}

// List はカタログ順でお気に入り商品を返す。
func (s *Service) List(ctx context.Context) []model.Product {
	all := s.catalog.GetAll(ctx, "")
	favorites := s.keys.Load(ctx)

	out := make([]model.Product, 0, favorites.Len())
	for _, p := range all {
		if favorites.Has(p.ID) {
			p.IsFavorite = true
			out = append(out, p)
		}
	}
	return out
}

// Toggle は商品のお気に入り所属を反転して保存する。
// 保存に失敗した場合のみfalseを返す。
func (s *Service) Toggle(ctx context.Context, productID string) bool {
	favorites := s.keys.Load(ctx)
	added := favorites.Toggle(productID)

	ok := s.keys.Save(ctx, favorites)
	s.recorder.RecordFavoriteToggle(ok)
	if !ok {
		s.logger.Error("failed to toggle favorite",
			slog.String("product_id", productID),
		)
		return false
	}

	s.logger.Debug("favorite toggled",
		slog.String("product_id", productID),
		slog.Bool("is_favorite", added),
	)
	return true
}

// IsFavorite は商品がお気に入りに含まれる場合にtrueを返す。
func (s *Service) IsFavorite(ctx context.Context, productID string) bool {
	return s.keys.Load(ctx).Has(productID)
}

// Query はお気に入り一覧に絞り込みと並び替えを適用して返す。
// カテゴリは大文字小文字を無視した一致、検索は商品名の部分一致（大文字小文字無視）。
// 並び順は name（照合順の昇順、既定）、price（昇順）、rating（降順）。未知の値はカタログ順。
func (s *Service) Query(ctx context.Context, f Filter) []model.Product {
	search := strings.ToLower(f.Search)
	filterCategory := f.Category != "" && f.Category != model.CategoryAll

	out := make([]model.Product, 0)
	for _, p := range s.List(ctx) {
		if filterCategory && !catalog.MatchesCategory(p, f.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		out = append(out, p)
	}

	sortProducts(out, f.Sort)
	return out
}

func sortProducts(products []model.Product, by model.ProductSort) {
	switch by {
	case model.ProductSortPrice:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case model.ProductSortRating:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Rating > products[j].Rating
		})
	case model.ProductSortName, "":
		c := collate.New(language.English, collate.Loose)
		sort.SliceStable(products, func(i, j int) bool {
			return c.CompareString(products[i].Name, products[j].Name) < 0
		})
	}
}
