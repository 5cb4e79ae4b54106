// Package linkcheck はリダイレクト先URLの到達性を定期的に確認するジョブを提供する。
// 結果は管理画面向けの参考情報で、リダイレクト解決では参照しない。
package linkcheck

import (
	"context"
	"io"
	"net/http"

	"github.com/hitoshi/shortlink/internal/model"
)

const (
	userAgent = "shortlink-linkcheck/1.0"

	// maxDrainBytes はコネクション再利用のために読み捨てるボディの上限。
	maxDrainBytes = 4 << 10
)

// HTTPDoer はHTTPリクエストを送信するインターフェース。
// 本番ではsecurity.SSRFGuardServiceが生成するクライアントを使う。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// URLValidator はDNS解決前の静的なSSRF検証を行うインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Checker は1件のURLの到達性を判定する。
type Checker struct {
	client    HTTPDoer
	validator URLValidator
}

// NewChecker は新しいCheckerを生成する。validatorがnilの場合は静的検証を省略する。
func NewChecker(client HTTPDoer, validator URLValidator) *Checker {
	return &Checker{client: client, validator: validator}
}

// Check はURLにHEADリクエストを送り、到達性を判定する。
// HEADが405/501で拒否された場合はGETで再試行する。
//
//	2xx/3xx → ok, 4xx/5xx → broken, 接続エラー・SSRFブロック → unreachable
func (c *Checker) Check(ctx context.Context, rawURL string) model.LinkStatus {
	if c.validator != nil {
		if err := c.validator.ValidateURL(rawURL); err != nil {
			return model.LinkStatusUnreachable
		}
	}

	status, err := c.do(ctx, http.MethodHead, rawURL)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = c.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return model.LinkStatusUnreachable
	}

	return classify(status)
}

func (c *Checker) do(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return resp.StatusCode, nil
}

func classify(status int) model.LinkStatus {
	switch {
	case status >= 200 && status < 400:
		return model.LinkStatusOK
	case status >= 400 && status < 600:
		return model.LinkStatusBroken
	default:
		return model.LinkStatusUnreachable
	}
}
