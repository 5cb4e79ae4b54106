// Package shortcode はエンティティIDと短縮コード（base36表記）の相互変換を提供する。
//
// 短縮コードは [0-9a-z] のみからなる小文字のbase36文字列で、ゼロ埋めは行わない。
// 任意の非負整数idについて Decode(Encode(id)) == id が成り立つ。
package shortcode

import (
	"strconv"
	"strings"
)

// base は短縮コードの基数。
const base = 36

// Encode はIDをbase36の短縮コードに変換する。
// 負の値は定義域外のため0として扱う。
func Encode(id int64) string {
	if id < 0 {
		id = 0
	}
	return strconv.FormatInt(id, base)
}

// Decode は短縮コードをIDに変換する。
// [0-9a-zA-Z] 以外の文字を取り除いてから大文字小文字を区別せずに解釈する。
// 空文字列、ゼロ、int64に収まらない値はいずれも0を返し、呼び出し側は
// 「IDなし」として扱う。
func Decode(code string) int64 {
	cleaned := Sanitize(code)
	if cleaned == "" {
		return 0
	}

	id, err := strconv.ParseInt(strings.ToLower(cleaned), base, 64)
	if err != nil {
		return 0
	}
	return id
}

// Sanitize は [0-9a-zA-Z] 以外の文字を取り除いた文字列を返す。
// パスから取り出した値は攻撃者が制御できるため、解釈前に必ず通す。
func Sanitize(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		if isAlphanumeric(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isAlphanumeric(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
