package sandbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// webFetch performs an HTTP GET with redirect-following, rejecting
// non-http(s) schemes, empty hosts, and loopback hostnames.
//
// Grounded on original_source/agent/executor.py's _web_fetch, including
// the CERTIFICATE_VERIFY_FAILED special-cased error message.
func (sb *Sandbox) webFetch(ctx context.Context, params map[string]any) (string, error) {
	rawURL, ok := paramString(params, "url")
	if !ok || rawURL == "" {
		return "", sandboxError("web_fetch: url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", confinementError("web_fetch: invalid url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", confinementError("web_fetch: unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", confinementError("web_fetch: empty host")
	}
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return "", confinementError("web_fetch: loopback host %q is blocked", host)
	}

	timeoutSec := 20
	if v, ok := params["timeout_sec"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			timeoutSec = int(f)
		}
	}
	maxChars := sb.cfg.MaxOutputChars
	if v, ok := params["max_chars"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			maxChars = int(f)
		}
	}
	verifyTLS := sb.cfg.WebFetchTLSVerify
	verifyTLS = paramBool(params, "verify_tls", verifyTLS)

	client := &http.Client{
		Timeout: time.Duration(timeoutSec) * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !verifyTLS},
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", sandboxError("web_fetch: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if strings.Contains(err.Error(), "certificate") || strings.Contains(err.Error(), "x509") {
			return "", sandboxError("web_fetch: TLS certificate verification failed; retry with verify_tls=false or set AGENTCORE_WEB_FETCH_TLS_VERIFY=false if this host is trusted")
		}
		return "", sandboxError("web_fetch: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxChars)+1))
	if err != nil {
		return "", sandboxError("web_fetch: %v", err)
	}
	text := string(body)
	if len(text) > maxChars {
		text = text[:maxChars]
	}

	return fmt.Sprintf("url=%s\nstatus=%d\ncontent_type=%s\n\n%s",
		rawURL, resp.StatusCode, resp.Header.Get("Content-Type"), text), nil
}
