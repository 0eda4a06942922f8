package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Link extraction patterns, ordered from most to least specific. The exact
// shapes providers and mail relays emit drift over time, so these are
// package defaults rather than hard requirements; NewLinkExtractor accepts
// overrides.
var (
	// A hosted verify endpoint with its token parameter, e.g.
	// https://xyzcompany.supabase.co/auth/v1/verify?token=...&type=signup
	defaultVerifyPattern = regexp.MustCompile(
		`https?://[A-Za-z0-9-]+\.supabase\.co/auth/v1/verify\?[^\s"'<>]*token=[^\s"'<>]+`)

	// Same endpoint shape on any host, for self-hosted or proxied projects.
	looseVerifyPattern = regexp.MustCompile(
		`https?://[A-Za-z0-9.-]+(?::\d+)?/auth/v1/verify\?[^\s"'<>]*token=[^\s"'<>]+`)

	// Any hyperlink whose anchor text mentions confirming. Candidates from
	// this pattern are usually tracking wrappers and need resolving.
	confirmAnchorPattern = regexp.MustCompile(
		`(?is)<a[^>]+href=["']([^"']+)["'][^>]*>[^<]*confirm[^<]*</a>`)
)

// LinkCandidate is one URL pulled out of a message body. Direct candidates
// already match the verify endpoint shape; indirect ones are suspected
// redirect wrappers that still need resolving.
type LinkCandidate struct {
	URL    string
	Direct bool
}

// LinkExtractor scans email bodies for verification links.
type LinkExtractor struct {
	direct  []*regexp.Regexp
	anchors *regexp.Regexp
}

// NewLinkExtractor builds an extractor. Patterns in extraPatterns are tried
// after the built-in direct patterns, in order.
func NewLinkExtractor(extraPatterns ...*regexp.Regexp) *LinkExtractor {
	direct := []*regexp.Regexp{defaultVerifyPattern, looseVerifyPattern}
	direct = append(direct, extraPatterns...)
	return &LinkExtractor{
		direct:  direct,
		anchors: confirmAnchorPattern,
	}
}

// Candidates returns verification link candidates found in a message body,
// in pattern-ladder order. HTML entity escaping of ampersands is undone so
// the returned URLs are fetchable as-is.
func (e *LinkExtractor) Candidates(body string) []LinkCandidate {
	var out []LinkCandidate
	seen := map[string]bool{}

	add := func(raw string, direct bool) {
		u := strings.ReplaceAll(raw, "&amp;", "&")
		if !seen[u] {
			seen[u] = true
			out = append(out, LinkCandidate{URL: u, Direct: direct})
		}
	}

	for _, pattern := range e.direct {
		for _, m := range pattern.FindAllString(body, -1) {
			add(m, true)
		}
	}
	for _, m := range e.anchors.FindAllStringSubmatch(body, -1) {
		add(m[1], e.IsVerifyURL(m[1]))
	}
	return out
}

// IsVerifyURL reports whether a URL matches a known verify endpoint shape.
func (e *LinkExtractor) IsVerifyURL(u string) bool {
	unescaped := strings.ReplaceAll(u, "&amp;", "&")
	for _, pattern := range e.direct {
		if pattern.MatchString(unescaped) {
			return true
		}
	}
	return false
}

// ExtractTokens pulls the session token pair out of a redirect target.
// Providers put tokens in the URL fragment; some configurations use the
// query string, and some emit shortened parameter names. The fallbacks are
// tried in that order and the first pair found wins.
func ExtractTokens(redirectTarget string) (accessToken, refreshToken string, err error) {
	u, err := url.Parse(redirectTarget)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse redirect target: %w", err)
	}

	fragment, fragErr := url.ParseQuery(u.Fragment)
	if fragErr == nil {
		if a, r := fragment.Get("access_token"), fragment.Get("refresh_token"); a != "" && r != "" {
			return a, r, nil
		}
	}

	query := u.Query()
	if a, r := query.Get("access_token"), query.Get("refresh_token"); a != "" && r != "" {
		return a, r, nil
	}

	if fragErr == nil {
		if a, r := fragment.Get("token"), fragment.Get("refresh"); a != "" && r != "" {
			return a, r, nil
		}
	}

	return "", "", fmt.Errorf("redirect target carries no token pair")
}
