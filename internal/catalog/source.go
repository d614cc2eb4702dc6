package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/hitoshi/artizone/internal/model"
	"github.com/hitoshi/artizone/internal/security"
)

// ProductsPath は静的商品リストの固定パス。
const ProductsPath = "/data/products.json"

const defaultMaxSize = 5 << 20

// Source は商品リストの取得元。
type Source interface {
	Products(ctx context.Context) ([]model.Product, error)
}

// HTTPSourceConfig はHTTPSourceの設定。
type HTTPSourceConfig struct {
	BaseURL string // 例: "http://localhost:5000"
	MaxSize int64  // レスポンスボディの上限バイト数
}

// HTTPSource は静的JSONファイルをHTTP GETで取得するSource。
type HTTPSource struct {
	httpClient *http.Client
	url        string
	maxSize    int64
	sanitizer  security.DescriptionSanitizer
	logger     *slog.Logger
}

// NewHTTPSource はHTTPSourceを生成する。
func NewHTTPSource(
	httpClient *http.Client,
	sanitizer security.DescriptionSanitizer,
	logger *slog.Logger,
	config HTTPSourceConfig,
) *HTTPSource {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSource{
		httpClient: httpClient,
		url:        strings.TrimRight(config.BaseURL, "/") + ProductsPath,
		maxSize:    config.MaxSize,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// productRecord は取得元JSONの1レコード。お気に入りフィールドは含まれない。
type productRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       *float64 `json:"price"`
	Rating      *int     `json:"rating"`
	ImageURL    string   `json:"imageUrl"`
}

// Validate はレコードの必須項目と値域を検証する。
func (r *productRecord) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.Category, validation.Required),
		validation.Field(&r.ImageURL, validation.Required),
		validation.Field(&r.Price, validation.NotNil, validation.Min(0.0)),
		validation.Field(&r.Rating, validation.NotNil, validation.Min(0), validation.Max(5)),
	)
}

// Products は商品リストを取得する。
// 2xx以外のステータス、上限超過、JSON不正はエラーとする。
// 必須項目が欠けたレコードはログに記録して読み飛ばす。
func (s *HTTPSource) Products(ctx context.Context) ([]model.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("catalog request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}
	if int64(len(body)) > s.maxSize {
		return nil, fmt.Errorf("catalog response exceeds %d bytes", s.maxSize)
	}

	var records []productRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	products := make([]model.Product, 0, len(records))
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(); err != nil {
			s.logger.Warn("skipping invalid product record",
				slog.Int("index", i),
				slog.String("product_id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		products = append(products, model.Product{
			ID:          rec.ID,
			Name:        rec.Name,
			Description: s.sanitizer.Sanitize(rec.Description),
			Category:    rec.Category,
			Price:       *rec.Price,
			Rating:      *rec.Rating,
			ImageURL:    rec.ImageURL,
		})
	}

	return products, nil
}

var _ Source = (*HTTPSource)(nil)
