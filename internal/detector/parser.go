// Package detector provides injection-point discovery and the response
// classification rules.
package detector

import (
	"net/url"
	"strings"

	"github.com/0x6d61/vulnprobe/internal/payload"
)

// DiscoverParameters returns the candidate injection points for rawURL: the
// query-string keys in the order they appear, followed by the common
// parameter names, with duplicates removed. A URL that cannot be parsed
// yields the common names only.
func DiscoverParameters(rawURL string) []string {
	seen := make(map[string]struct{})
	var params []string

	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		params = append(params, name)
	}

	for _, name := range QueryKeys(rawURL) {
		add(name)
	}
	for _, name := range payload.CommonParameters() {
		add(name)
	}
	return params
}

// QueryKeys extracts the query-string keys of rawURL in their original
// order. url.Values is a map and loses that order, so the raw query is
// split by hand.
func QueryKeys(rawURL string) []string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	var keys []string
	for _, pair := range strings.Split(parsed.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
