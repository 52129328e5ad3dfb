package util

import (
	"net/http"
	"testing"
	"time"
)

func TestNewProxyFunc_Explicit(t *testing.T) {
	fn := NewProxyFunc(ProxyConfig{
		HTTPProxy:  "http://proxy.internal:3128",
		HTTPSProxy: "http://secure-proxy.internal:3128",
		NoProxy:    "direct.example.org",
	})

	tests := []struct {
		url  string
		want string
	}{
		{"http://example.com/a", "http://proxy.internal:3128"},
		{"https://example.com/a", "http://secure-proxy.internal:3128"},
		{"https://direct.example.org/a", ""},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := fn(req)
		if err != nil {
			t.Fatalf("%s: %v", tt.url, err)
		}
		if tt.want == "" {
			if got != nil {
				t.Errorf("%s: expected direct connection, got %s", tt.url, got)
			}
			continue
		}
		if got == nil || got.String() != tt.want {
			t.Errorf("%s: proxy = %v, want %s", tt.url, got, tt.want)
		}
	}
}

func TestNewProxyFunc_Environment(t *testing.T) {
	fn := NewProxyFunc(ProxyConfig{})
	if fn == nil {
		t.Fatal("expected environment proxy func")
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(5*time.Second, ProxyConfig{HTTPProxy: "http://proxy.internal:3128"})

	if c.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport is %T", c.Transport)
	}
	if tr.Proxy == nil {
		t.Error("proxy not set")
	}
	if tr == http.DefaultTransport {
		t.Error("default transport must not be mutated")
	}
}

func TestProxyConfig_Active(t *testing.T) {
	for _, k := range []string{"HTTP_PROXY", "http_proxy", "HTTPS_PROXY", "https_proxy"} {
		t.Setenv(k, "")
	}

	if (ProxyConfig{}).Active() {
		t.Error("expected no proxy without settings")
	}
	if !(ProxyConfig{HTTPSProxy: "http://proxy.internal:3128"}).Active() {
		t.Error("expected explicit proxy to be active")
	}

	t.Setenv("HTTPS_PROXY", "http://env-proxy.internal:3128")
	if !(ProxyConfig{}).Active() {
		t.Error("expected environment proxy to be active")
	}
}
