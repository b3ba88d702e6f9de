package fetch

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc selects the outbound proxy per request.
//
// Configured URLs override HTTP_PROXY and HTTPS_PROXY; NO_PROXY from the
// environment still applies. An HTTP proxy alone is also used for https
// targets. With nothing configured the environment decides.
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	cfg := httpproxy.FromEnvironment()
	cfg.HTTPProxy = httpProxy
	cfg.HTTPSProxy = httpsProxy
	if cfg.HTTPSProxy == "" {
		cfg.HTTPSProxy = httpProxy
	}

	proxyForURL := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxyForURL(req.URL)
	}
}
