package security

import "github.com/microcosm-cc/bluemonday"

// DescriptionSanitizer は商品説明文に含まれるHTMLを許可リストで絞り込む。
type DescriptionSanitizer interface {
	// Sanitize は許可タグ（p, br, ul, ol, li, strong, em）以外を除去した文字列を返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerを生成する。
// 説明文にはリンクと画像を許可しない。画像はProduct.ImageURLで別途提供される。
func NewDescriptionSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")

	return &descriptionSanitizer{policy: p}
}

// Sanitize は説明文をサニタイズする。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return s.policy.Sanitize(raw)
}

var _ DescriptionSanitizer = (*descriptionSanitizer)(nil)
