package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSSRFGuard はSSRFGuardの生成をテストする。
func TestNewSSRFGuard(t *testing.T) {
	guard := NewSSRFGuard()
	if guard == nil {
		t.Fatal("NewSSRFGuard() returned nil")
	}
}

// TestNewLinkCheckClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewLinkCheckClientTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second
	client := guard.NewLinkCheckClient(timeout)
	if client == nil {
		t.Fatal("NewLinkCheckClient() returned nil")
	}
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewLinkCheckClientHasTransport はカスタムTransportが設定されていることをテストする。
func TestNewLinkCheckClientHasTransport(t *testing.T) {
	client := NewSSRFGuard().NewLinkCheckClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewLinkCheckClientDoesNotFollowRedirects はリダイレクトを追跡しないことをテストする。
func TestNewLinkCheckClientDoesNotFollowRedirects(t *testing.T) {
	client := NewSSRFGuard().NewLinkCheckClient(5 * time.Second)
	if client.CheckRedirect == nil {
		t.Fatal("expected CheckRedirect to be set")
	}
	if err := client.CheckRedirect(nil, nil); err != http.ErrUseLastResponse {
		t.Errorf("CheckRedirect() = %v, want http.ErrUseLastResponse", err)
	}
}

// TestNewLinkCheckClientBlocksLoopback はループバックへのリクエストをブロックすることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewLinkCheckClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewLinkCheckClient(5 * time.Second)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_PublicURL は公開URLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"https://example.com",
		"https://docs.example.com/guide?page=2",
		"http://blog.example.org/post",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

// TestValidateURL_BlockedAddresses は内部ネットワークのアドレスが拒否されることをテストする。
func TestValidateURL_BlockedAddresses(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"http://10.0.0.1/",
		"http://172.16.0.1/",
		"http://192.168.1.100/",
		"http://127.0.0.1/",
		"http://localhost/",
		"http://LOCALHOST:8080/",
		"http://169.254.169.254/latest/meta-data/",
		"http://0.0.0.0/",
		"http://[::1]/",
		"http://[fe80::1]/",
		"http://[fd00::1]/",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", u)
			}
		})
	}
}

// TestValidateURL_InvalidURL は無効なURLの検証が失敗することをテストする。
func TestValidateURL_InvalidURL(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"",
		"not-a-url",
		"ftp://example.com/file",
		"file:///etc/passwd",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for invalid URL", u)
			}
		})
	}
}

// TestSSRFGuardInterface はSSRFGuardがインターフェースを正しく実装していることをテストする。
func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
