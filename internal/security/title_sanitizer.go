package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// maxTitleLength はタイトルの最大文字数（entities.titleのVARCHAR長）。
const maxTitleLength = 255

// TitleSanitizer は管理画面から入力されたタイトルを保存用のプレーンテキストに変換する。
type TitleSanitizer interface {
	// Sanitize はHTMLタグを全て除去し、空白を正規化し、最大長で切り詰めた文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// titleSanitizer はTitleSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理する。
type titleSanitizer struct {
	policy *bluemonday.Policy
}

// NewTitleSanitizer はTitleSanitizerの新しいインスタンスを生成する。
func NewTitleSanitizer() *titleSanitizer {
	return &titleSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを全て除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため、保存前にアンエスケープする。
// 表示時のエスケープはテンプレート側で行う。
func (s *titleSanitizer) Sanitize(raw string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	text := strings.Join(strings.Fields(stripped), " ")

	if utf8.RuneCountInString(text) > maxTitleLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:maxTitleLength]))
	}
	return text
}
