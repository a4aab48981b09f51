package session

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveLocation resolves the Location header of a redirect against the url
// that produced it.
//
//   - absolute http(s) urls are used verbatim
//   - "/path" is appended to the origin of current (port included)
//   - anything else is resolved against the directory of current's path
//
// the result is always an absolute http(s) url, otherwise an error is returned.
func ResolveLocation(current, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("resolve redirect: empty location")
	}

	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("resolve redirect: parse current url: %w", err)
	}
	if !isHttp(base) {
		return "", fmt.Errorf("resolve redirect: current url %q is not absolute", current)
	}

	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("resolve redirect: parse location %q: %w", location, err)
	}
	if ref.IsAbs() {
		if !isHttp(ref) {
			return "", fmt.Errorf("resolve redirect: unsupported location %q", location)
		}
		return ref.String(), nil
	}

	resolved := base.ResolveReference(ref)
	if !isHttp(resolved) {
		return "", fmt.Errorf("resolve redirect: %q against %q is not absolute", location, current)
	}
	return resolved.String(), nil
}

func isHttp(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
