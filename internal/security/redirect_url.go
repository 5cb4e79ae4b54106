// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// redirectSchemes はリダイレクト先として許可されるURLスキーム。
var redirectSchemes = []string{"http", "https"}

// ErrEmptyURL は入力が空の場合に返される。
var ErrEmptyURL = errors.New("empty URL")

// NormalizeRedirectURL はリダイレクト先URLを正規化し、絶対URLとして妥当か検証する。
// 前後の空白と制御文字を取り除いた上で、http/httpsスキームと空でないホストを要求する。
// 内部に空白を含むURLは不正として扱う。
func NormalizeRedirectURL(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return "", ErrEmptyURL
	}
	if strings.ContainsFunc(cleaned, unicode.IsSpace) {
		return "", fmt.Errorf("URL contains whitespace: %q", cleaned)
	}

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if !isAllowedScheme(parsed.Scheme, redirectSchemes) {
		return "", fmt.Errorf("disallowed scheme: %q (allowed: %v)", parsed.Scheme, redirectSchemes)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("empty host in URL: %s", cleaned)
	}

	return cleaned, nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(scheme, a) {
			return true
		}
	}
	return false
}
