// Package canonical normalizes URLs into identity keys and collapses items
// that point at the same resource.
package canonical

import (
	"net"
	"net/url"
	"sort"
	"strings"
)

var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"ref":          {},
	"ref_src":      {},
	"source":       {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

type queryParam struct {
	key, value string
}

// Canonicalize returns the identity form of raw. Input that is not an
// absolute URL is returned trimmed and otherwise untouched.
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = normalizeHost(u.Scheme, u.Host)
	u.RawQuery = normalizeQuery(u.RawQuery)
	u.ForceQuery = false

	// Trailing slashes are removed as a run so the result is a fixed point.
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String()
}

// SourceDomain returns the lower-cased hostname of raw, or "unknown" when it
// has none.
func SourceDomain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if defaultPorts[scheme] == port {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

// normalizeQuery drops tracking parameters and orders the rest by key,
// keeping the relative order of repeated keys.
func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	params := make([]queryParam, 0)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			value = v
		}
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			continue
		}
		params = append(params, queryParam{key: key, value: value})
	}
	sort.SliceStable(params, func(i, j int) bool {
		return params[i].key < params[j].key
	})

	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
