// Package catalog は静的商品リストの読み込み、お気に入り状態の付与、カテゴリ絞り込みを提供する。
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/artizone/internal/keyset"
	"github.com/hitoshi/artizone/internal/metrics"
	"github.com/hitoshi/artizone/internal/model"
)

// Membership はお気に入り集合の読み込み元。keyset.KeySetが実装する。
type Membership interface {
	Load(ctx context.Context) *keyset.Set
}

// Loader は商品リストを取得し、お気に入り状態を付与して返す。
// 取得元の失敗はエラーとして伝播せず、空のリストを返す。
type Loader struct {
	source     Source
	membership Membership
	recorder   metrics.Recorder
	logger     *slog.Logger
}

// NewLoader はLoaderを生成する。recorderとloggerはnilの場合デフォルトを使用する。
func NewLoader(source Source, membership Membership, recorder metrics.Recorder, logger *slog.Logger) *Loader {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		source:     source,
		membership: membership,
		recorder:   recorder,
		logger:     logger,
	}
}

// GetAll は取得元の順序を保ったまま商品リストを返す。
// categoryが空または"All"以外の場合は、カテゴリが大文字小文字を無視して一致する商品のみを残す。
func (l *Loader) GetAll(ctx context.Context, category string) []model.Product {
	start := time.Now()
	products, err := l.source.Products(ctx)
	l.recorder.RecordCatalogFetch(err == nil, time.Since(start))
	if err != nil {
		l.logger.Error("failed to fetch products",
			slog.String("error", err.Error()),
		)
		return []model.Product{}
	}

	favorites := l.membership.Load(ctx)
	filter := category != "" && category != model.CategoryAll

	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		p.IsFavorite = favorites.Has(p.ID)
		if filter && !MatchesCategory(p, category) {
			continue
		}
		out = append(out, p)
	}

	return out
}

// GetByID はIDが一致する商品を返す。見つからない場合はok=falseを返す。
func (l *Loader) GetByID(ctx context.Context, id string) (model.Product, bool) {
	for _, p := range l.GetAll(ctx, "") {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// MatchesCategory は商品のカテゴリが大文字小文字を無視して一致する場合にtrueを返す。
func MatchesCategory(p model.Product, category string) bool {
	return strings.EqualFold(p.Category, category)
}
