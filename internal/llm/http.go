package llm

import (
	"net/http"
	"time"

	"github.com/ppiankov/antihoax/internal/util"
)

// newHTTPClient builds the client shared by all providers. A zero config
// timeout falls back to fallback, or 30s when fallback is zero.
func newHTTPClient(config Config, fallback time.Duration) *http.Client {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = fallback
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return util.NewHTTPClient(timeout, util.ProxyConfig{
		HTTPProxy:  config.HTTPProxy,
		HTTPSProxy: config.HTTPSProxy,
		NoProxy:    config.NoProxy,
	})
}
