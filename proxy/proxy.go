// Package proxy implements the gateway's HTTP Forward Proxy (component E):
// it strips gateway-internal headers, injects provider-appropriate
// credentials, forwards the request to the provider's base URL, and scrubs
// sensitive headers from the response before it reaches the caller.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/byteness/trustgate/credential"
	"github.com/byteness/trustgate/gatewayerr"
)

// DefaultTimeout bounds a single forwarded request when the caller does not
// override it.
const DefaultTimeout = 30 * time.Second

// gatewayHeaders are stripped from the outbound request: they carry
// gateway-internal routing information the provider must never see.
var gatewayHeaders = []string{"Authorization", "X-Creds", "X-Provider"}

// sensitiveResponseHeaders are redacted from the response relayed to the
// caller.
var sensitiveResponseHeaders = []string{"Authorization", "X-Api-Key", "Cookie"}

// defaultBaseURLs maps a known provider to its API base. Providers absent
// from this table fall back to Proxy.DefaultBaseURL, which must be
// configured explicitly rather than hard-coded to a production endpoint.
var defaultBaseURLs = map[string]string{
	"github":  "https://api.github.com",
	"slack":   "https://slack.com/api",
	"gcp":     "https://www.googleapis.com",
	"linear":  "https://api.linear.app",
	"datadog": "https://api.datadoghq.com",
	"aws":     "https://amazonaws.com",
}

// Proxy forwards admitted requests to their provider's API.
type Proxy struct {
	// BaseURLs overrides defaultBaseURLs per provider, e.g. for
	// self-hosted or region-pinned endpoints.
	BaseURLs map[string]string
	// DefaultBaseURL is used for a provider absent from both BaseURLs and
	// defaultBaseURLs. Left empty, such a provider is rejected.
	DefaultBaseURL string

	Client  *http.Client
	Timeout time.Duration
}

// New creates a Proxy with a bounded-timeout HTTP client.
func New(timeout time.Duration) *Proxy {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Proxy{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

// Response is the relayed result of a forwarded request.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Forward builds the target URL for provider+path, copies inbound headers
// minus the gateway-internal ones, overlays provider-specific credential
// injection from bundle (if non-nil), issues the request with the proxy's
// bounded timeout, and returns the response with sensitive headers
// redacted.
func (p *Proxy) Forward(ctx context.Context, method, path string, header http.Header, body []byte, bundle *credential.Bundle, provider string) (*Response, error) {
	base, err := p.baseURL(provider)
	if err != nil {
		return nil, err
	}

	target := joinURL(base, path)

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, gatewayerr.UpstreamError("building forward request", "check the path and method", err)
	}
	req.Header = cloneHeader(header)
	stripGatewayHeaders(req.Header)

	if bundle != nil {
		if err := injectCredentials(req.Header, provider, *bundle); err != nil {
			return nil, err
		}
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, gatewayerr.UpstreamError(fmt.Sprintf("forwarding to %s", provider), "the upstream provider may be unreachable or slow; retry later", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gatewayerr.UpstreamError("reading upstream response", "the upstream connection was interrupted", err)
	}

	scrubResponseHeaders(resp.Header)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Header:     resp.Header,
	}, nil
}

func (p *Proxy) baseURL(provider string) (string, error) {
	if p.BaseURLs != nil {
		if base, ok := p.BaseURLs[strings.ToLower(provider)]; ok {
			return base, nil
		}
	}
	if base, ok := defaultBaseURLs[strings.ToLower(provider)]; ok {
		return base, nil
	}
	if p.DefaultBaseURL != "" {
		return p.DefaultBaseURL, nil
	}
	return "", gatewayerr.ConfigError(fmt.Sprintf("no base URL configured for provider %q", provider), "configure a base URL for this provider or set a default", nil)
}

func joinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.TrimLeft(path, "/")
	return base + "/" + path
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		vv := make([]string, len(v))
		copy(vv, v)
		out[k] = vv
	}
	return out
}

func stripGatewayHeaders(h http.Header) {
	for _, name := range gatewayHeaders {
		h.Del(name)
	}
}

func scrubResponseHeaders(h http.Header) {
	for _, name := range sensitiveResponseHeaders {
		h.Del(name)
	}
}

// injectCredentials overlays provider-specific authentication headers from
// bundle onto the outbound request. aws is rejected outright: see the "aws"
// case below.
func injectCredentials(h http.Header, provider string, bundle credential.Bundle) error {
	switch strings.ToLower(provider) {
	case "github":
		if token, ok := bundle.Fields["token"]; ok {
			h.Set("Authorization", "token "+token)
			return nil
		}
		if bearer, ok := bundle.Fields["bearer_token"]; ok {
			h.Set("Authorization", "Bearer "+bearer)
			return nil
		}
		return missingFieldErr(provider, "token or bearer_token")

	case "slack", "gcp", "linear":
		if token, ok := firstNonEmpty(bundle, "token", "bearer_token", "api_key"); ok {
			h.Set("Authorization", "Bearer "+token)
			return nil
		}
		return missingFieldErr(provider, "token, bearer_token, or api_key")

	case "datadog":
		apiKey, hasAPIKey := bundle.Fields["api_key"]
		appKey, hasAppKey := bundle.Fields["app_key"]
		if !hasAPIKey {
			return missingFieldErr(provider, "api_key")
		}
		h.Set("DD-API-KEY", apiKey)
		if hasAppKey {
			h.Set("DD-APPLICATION-KEY", appKey)
		}
		return nil

	case "aws":
		// SigV4 signing is not implemented on this path. Rather than forward
		// an unsigned request a provider will reject anyway (or silently
		// accept from an unauthenticated caller, worse), aws is unsupported
		// over HTTP forwarding; route AWS calls through the wrapper's argv
		// path, which can shell out to a signing-capable client instead.
		return gatewayerr.BadRequest(fmt.Sprintf("provider %q is not supported over the HTTP forward proxy", provider), "route AWS calls through the wrapper contract instead of X-Provider: aws", nil)

	default:
		return gatewayerr.ConfigError(fmt.Sprintf("no credential injection rule for provider %q", provider), "add an injection rule for this provider or omit X-Creds", nil)
	}
}

func firstNonEmpty(bundle credential.Bundle, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := bundle.Fields[k]; ok {
			return v, true
		}
	}
	return "", false
}

func missingFieldErr(provider, fields string) error {
	return gatewayerr.ConfigError(fmt.Sprintf("credential bundle for %q is missing required field(s): %s", provider, fields), "check the credential selector and backend contents", nil)
}
