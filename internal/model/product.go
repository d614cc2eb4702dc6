// Package model はドメインモデルを定義する。
package model

// Product はカタログの商品を表す。
// IsFavoriteは読み取り時にお気に入り集合から導出される値で、商品レコード自体には保存しない。
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Rating      int     `json:"rating"`
	ImageURL    string  `json:"imageUrl"`
	IsFavorite  bool    `json:"isFavorite"`
}

// CategoryAll はカテゴリで絞り込まないことを表す番兵値。
const CategoryAll = "All"

// ProductSort はお気に入り一覧の並び順を表す。
type ProductSort string

const (
	// ProductSortName は商品名の昇順。
	ProductSortName ProductSort = "name"
	// ProductSortPrice は価格の昇順。
	ProductSortPrice ProductSort = "price"
	// ProductSortRating は評価の降順。
	ProductSortRating ProductSort = "rating"
)
