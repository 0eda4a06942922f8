// Package provider talks to the hosted auth provider: it submits signup
// requests and follows verification links without auto-redirecting, so the
// caller can inspect where the provider wanted to send the browser.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// browserHeaders are sent on verification fetches. Some providers refuse
// confirmation requests that don't look like they came from a browser.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}

var (
	metaRefreshPattern  = regexp.MustCompile(`(?i)<meta[^>]+http-equiv=["']refresh["'][^>]+content=["'][^"';]*;\s*url=([^"']+)["']`)
	scriptRedirectHref  = regexp.MustCompile(`(?i)window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`)
	scriptRedirectCall  = regexp.MustCompile(`(?i)window\.location\.(?:replace|assign)\(\s*["']([^"']+)["']\s*\)`)
	bodyRedirectLadders = []*regexp.Regexp{metaRefreshPattern, scriptRedirectHref, scriptRedirectCall}
)

// Client issues signup and verification requests against one provider
// project. SignupURL is the full signup endpoint; APIKey is the project's
// anon key sent on every signup.
type Client struct {
	SignupURL  string
	APIKey     string
	RedirectTo string
	HTTPClient *http.Client
}

// NewClient creates a provider client. The returned client never follows
// redirects: a 3xx comes back to the caller with its Location intact.
func NewClient(signupURL, apiKey, redirectTo string) *Client {
	return &Client{
		SignupURL:  signupURL,
		APIKey:     apiKey,
		RedirectTo: redirectTo,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// SignUp submits a signup for the given credentials. The provider sends the
// verification email on its own; a 2xx here only means the request was
// accepted.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) error {
	payload, err := json.Marshal(map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"full_name": fullName,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode signup request: %w", err)
	}

	endpoint := c.SignupURL
	if c.RedirectTo != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + "redirect_to=" + url.QueryEscape(c.RedirectTo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create signup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("signup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("signup returned status %d: %s",
			resp.StatusCode, readBodySnippet(resp.Body))
	}
	return nil
}

// FetchVerification loads the verification link once, without following
// redirects, and returns the URL the provider redirected to. A 3xx response
// wins via its Location header; a 200 falls back to scanning the body for a
// meta-refresh or script redirect. Anything else is an error.
func (c *Client) FetchVerification(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create verification request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode <= 399 {
		location := resp.Header.Get("Location")
		if location == "" {
			return "", fmt.Errorf("verification redirect (status %d) carried no location", resp.StatusCode)
		}
		return resolveAgainst(link, location), nil
	}

	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", fmt.Errorf("failed to read verification response: %w", err)
		}
		if target := redirectFromBody(string(body)); target != "" {
			return resolveAgainst(link, target), nil
		}
		return "", fmt.Errorf("verification returned 200 with no redirect in the body")
	}

	return "", fmt.Errorf("verification returned status %d: %s",
		resp.StatusCode, readBodySnippet(resp.Body))
}

// ResolveRedirect requests the given URL without following redirects and
// returns the Location it points at, or "" when the response is not a
// redirect. Used to unwrap tracking links that forward to the real
// verification URL.
func (c *Client) ResolveRedirect(ctx context.Context, wrapper string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wrapper, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create redirect probe: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("redirect probe failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close()
	}()

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return "", nil
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", nil
	}
	return resolveAgainst(wrapper, location), nil
}

// redirectFromBody scans an HTML body for a client-side redirect target.
func redirectFromBody(body string) string {
	for _, pattern := range bodyRedirectLadders {
		if m := pattern.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// resolveAgainst resolves a possibly relative redirect target against the
// URL that produced it.
func resolveAgainst(base, target string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return target
	}
	targetURL, err := url.Parse(target)
	if err != nil {
		return target
	}
	return baseURL.ResolveReference(targetURL).String()
}

func readBodySnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
