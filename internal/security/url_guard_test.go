package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	client := NewURLGuard().NewSafeClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("safeurlのTransportが設定されていない")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewURLGuard().NewSafeClient(5 * time.Second)
	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("ループバック宛てのリクエストはエラーになるべき")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"公開https", "https://images.example.com/avatar.png", false},
		{"公開http", "http://cdn.example.com/a.jpg", false},
		{"空", "", true},
		{"スキームなし", "images.example.com/a.png", true},
		{"javascript", "javascript:alert(1)", true},
		{"data", "data:image/png;base64,AAAA", true},
		{"ftp", "ftp://example.com/a.png", true},
		{"ホストなし", "https:///a.png", true},
		{"localhost", "http://localhost/a.png", true},
		{"localhostサブドメイン", "http://api.localhost/a.png", true},
		{"ループバック", "http://127.0.0.1/a.png", true},
		{"プライベート10", "http://10.1.2.3/a.png", true},
		{"プライベート172", "http://172.16.0.1/a.png", true},
		{"プライベート192", "http://192.168.1.1/a.png", true},
		{"メタデータ", "http://169.254.169.254/latest", true},
		{"ゼロ", "http://0.0.0.0/", true},
		{"IPv6ループバック", "http://[::1]/a.png", true},
		{"IPv4射影IPv6", "http://[::ffff:127.0.0.1]/a.png", true},
		{"公開IP", "http://93.184.216.34/a.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
