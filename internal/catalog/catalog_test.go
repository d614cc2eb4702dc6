package catalog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/artizone/internal/keyset"
	"github.com/hitoshi/artizone/internal/model"
	"github.com/hitoshi/artizone/internal/security"
)

const testCatalogJSON = `[
  {"id":"p1","name":"Clay Vase","description":"<p>Wheel thrown</p>","category":"Pottery","price":45.5,"rating":5,"imageUrl":"https://img.example.com/p1.jpg"},
  {"id":"p2","name":"Silver Ring","description":"Handmade","category":"Jewelry","price":30,"rating":4,"imageUrl":"https://img.example.com/p2.jpg"},
  {"id":"p3","name":"Glazed Bowl","description":"Blue glaze<script>x</script>","category":"pottery","price":20,"rating":3,"imageUrl":"https://img.example.com/p3.jpg"}
]`

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// staticMembership は固定のお気に入り集合を返すMembership。
type staticMembership struct {
	set *keyset.Set
}

func (m staticMembership) Load(context.Context) *keyset.Set { return m.set }

// fakeSource はテスト用のSource。
type fakeSource struct {
	products []model.Product
	err      error
	calls    int
}

func (f *fakeSource) Products(context.Context) ([]model.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Product, len(f.products))
	copy(out, f.products)
	return out, nil
}

// recordingRecorder はカタログ取得の結果のみ記録するRecorder。
type recordingRecorder struct {
	fetches []bool
}

func (r *recordingRecorder) RecordCatalogFetch(success bool, _ time.Duration) {
	r.fetches = append(r.fetches, success)
}
func (r *recordingRecorder) RecordFavoriteToggle(bool) {}
func (r *recordingRecorder) RecordAuthError(string)    {}
func (r *recordingRecorder) RecordHTTPStatus(int)      {}

func newCatalogServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ProductsPath {
			t.Errorf("path = %s, want %s", r.URL.Path, ProductsPath)
		}
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestSource(ts *httptest.Server, logger *slog.Logger) *HTTPSource {
	return NewHTTPSource(ts.Client(), security.NewDescriptionSanitizer(), logger, HTTPSourceConfig{
		BaseURL: ts.URL + "/",
	})
}

func ids(products []model.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestHTTPSource_Products_DecodesAndSanitizes(t *testing.T) {
	ts := newCatalogServer(t, http.StatusOK, testCatalogJSON)

	products, err := newTestSource(ts, nil).Products(context.Background())
	if err != nil {
		t.Fatalf("Products() error: %v", err)
	}
	if got := strings.Join(ids(products), ","); got != "p1,p2,p3" {
		t.Fatalf("ids = %s, want p1,p2,p3", got)
	}

	p1 := products[0]
	if p1.Name != "Clay Vase" || p1.Price != 45.5 || p1.Rating != 5 || p1.ImageURL != "https://img.example.com/p1.jpg" {
		t.Errorf("p1 = %+v", p1)
	}
	if p1.IsFavorite {
		t.Error("取得元の商品はIsFavorite=falseであるべき")
	}
	if strings.Contains(products[2].Description, "<script") {
		t.Errorf("説明文がサニタイズされていない: %q", products[2].Description)
	}
}

func TestHTTPSource_Products_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"404", http.StatusNotFound, "not found"},
		{"500", http.StatusInternalServerError, ""},
		{"不正なJSON", http.StatusOK, "<html>"},
		{"配列でない", http.StatusOK, `{"id":"p1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newCatalogServer(t, tt.status, tt.body)
			if _, err := newTestSource(ts, nil).Products(context.Background()); err == nil {
				t.Error("エラーを返すべき")
			}
		})
	}
}

func TestHTTPSource_Products_SizeLimit(t *testing.T) {
	ts := newCatalogServer(t, http.StatusOK, testCatalogJSON)
	src := NewHTTPSource(ts.Client(), security.NewDescriptionSanitizer(), nil, HTTPSourceConfig{
		BaseURL: ts.URL,
		MaxSize: 16,
	})

	if _, err := src.Products(context.Background()); err == nil {
		t.Error("上限超過はエラーを返すべき")
	}
}

func TestHTTPSource_Products_SkipsInvalidRecords(t *testing.T) {
	body := `[
	  {"id":"ok","name":"A","description":"d","category":"Glaze","price":1,"rating":2,"imageUrl":"https://x/a.jpg"},
	  {"id":"","name":"missing id","description":"d","category":"Glaze","price":1,"rating":2,"imageUrl":"https://x/b.jpg"},
	  {"id":"neg","name":"B","description":"d","category":"Glaze","price":-1,"rating":2,"imageUrl":"https://x/c.jpg"},
	  {"id":"hi","name":"C","description":"d","category":"Glaze","price":1,"rating":6,"imageUrl":"https://x/d.jpg"},
	  {"id":"noprice","name":"D","description":"d","category":"Glaze","rating":1,"imageUrl":"https://x/e.jpg"}
	]`
	ts := newCatalogServer(t, http.StatusOK, body)
	var buf bytes.Buffer

	products, err := newTestSource(ts, newTestLogger(&buf)).Products(context.Background())
	if err != nil {
		t.Fatalf("Products() error: %v", err)
	}
	if got := strings.Join(ids(products), ","); got != "ok" {
		t.Errorf("ids = %s, want ok", got)
	}
	if strings.Count(buf.String(), "skipping invalid product record") != 4 {
		t.Errorf("不正レコードのログが4件でない: %s", buf.String())
	}
}

func TestLoader_GetAll_DecoratesFavorites(t *testing.T) {
	ts := newCatalogServer(t, http.StatusOK, testCatalogJSON)
	loader := NewLoader(newTestSource(ts, nil), staticMembership{keyset.NewSet("p1", "p3")}, nil, nil)

	products := loader.GetAll(context.Background(), "")
	want := map[string]bool{"p1": true, "p2": false, "p3": true}
	for _, p := range products {
		if p.IsFavorite != want[p.ID] {
			t.Errorf("%s.IsFavorite = %v, want %v", p.ID, p.IsFavorite, want[p.ID])
		}
	}
}

func TestLoader_GetAll_CategoryFilter(t *testing.T) {
	ts := newCatalogServer(t, http.StatusOK, testCatalogJSON)
	loader := NewLoader(newTestSource(ts, nil), staticMembership{keyset.NewSet()}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		category string
		want     string
	}{
		{"Pottery", "p1,p3"},
		{"POTTERY", "p1,p3"},
		{"jewelry", "p2"},
		{"All", "p1,p2,p3"},
		{"", "p1,p2,p3"},
		{"Home Decor", ""},
		{"all", ""},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			if got := strings.Join(ids(loader.GetAll(ctx, tt.category)), ","); got != tt.want {
				t.Errorf("GetAll(%q) = %s, want %s", tt.category, got, tt.want)
			}
		})
	}
}

func TestLoader_GetAll_SourceFailureReturnsEmpty(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingRecorder{}
	src := &fakeSource{err: errors.New("connection refused")}
	loader := NewLoader(src, staticMembership{keyset.NewSet("p1")}, rec, newTestLogger(&buf))

	products := loader.GetAll(context.Background(), "Pottery")
	if products == nil || len(products) != 0 {
		t.Errorf("GetAll() = %v, want empty non-nil slice", products)
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("取得失敗がログに記録されていない: %s", buf.String())
	}
	if len(rec.fetches) != 1 || rec.fetches[0] {
		t.Errorf("recorded fetches = %v, want [false]", rec.fetches)
	}
}

func TestLoader_GetAll_RecordsSuccess(t *testing.T) {
	rec := &recordingRecorder{}
	src := &fakeSource{products: []model.Product{{ID: "p1", Category: "Glaze"}}}
	loader := NewLoader(src, staticMembership{keyset.NewSet()}, rec, nil)

	loader.GetAll(context.Background(), "")
	if len(rec.fetches) != 1 || !rec.fetches[0] {
		t.Errorf("recorded fetches = %v, want [true]", rec.fetches)
	}
}

func TestLoader_GetByID(t *testing.T) {
	src := &fakeSource{products: []model.Product{
		{ID: "p1", Name: "Vase", Category: "Pottery"},
		{ID: "p2", Name: "Ring", Category: "Jewelry"},
	}}
	loader := NewLoader(src, staticMembership{keyset.NewSet("p2")}, nil, nil)
	ctx := context.Background()

	p, ok := loader.GetByID(ctx, "p2")
	if !ok {
		t.Fatal("p2 が見つからない")
	}
	if p.Name != "Ring" || !p.IsFavorite {
		t.Errorf("p2 = %+v, want Ring with IsFavorite", p)
	}

	if _, ok := loader.GetByID(ctx, "missing"); ok {
		t.Error("存在しないIDはok=falseであるべき")
	}
}

func TestLoader_GetByID_SourceFailureReturnsAbsent(t *testing.T) {
	loader := NewLoader(&fakeSource{err: errors.New("boom")}, staticMembership{keyset.NewSet()}, nil, nil)

	if _, ok := loader.GetByID(context.Background(), "p1"); ok {
		t.Error("取得失敗時はok=falseであるべき")
	}
}
