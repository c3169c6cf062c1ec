package validator

import (
	"net"
	"net/url"
	"strings"
)

// CleanURL strips the query string and fragment from a post URL so that only
// scheme, host and path are forwarded upstream. Input that does not parse as
// an absolute URL is cut at the first '?'. Blank input is returned unchanged.
func CleanURL(rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return rawURL
	}

	if u, ok := parseAbsolute(rawURL); ok {
		path := u.EscapedPath()
		if path == "" {
			path = "/"
		}
		return u.Scheme + "://" + strings.ToLower(u.Host) + path
	}

	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// IsSafeURL reports whether the URL points at one of the allowed domains and
// not at the local machine
func IsSafeURL(videoURL string, allowedDomains []string) bool {
	u, ok := parseAbsolute(videoURL)
	if !ok {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	if strings.Contains(host, "localhost") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return false
	}

	return matchesDomain(host, allowedDomains)
}

// IsHTTPURL reports whether the URL is absolute with an http or https scheme
func IsHTTPURL(videoURL string) bool {
	u, ok := parseAbsolute(videoURL)
	if !ok {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// matchesDomain accepts an exact match or a subdomain of an allowed domain.
// The suffix must start at a label boundary so "evilinstagram.com" does not
// pass for "instagram.com".
func matchesDomain(host string, allowedDomains []string) bool {
	for _, domain := range allowedDomains {
		cleanDomain := strings.ToLower(strings.TrimSpace(domain))
		if len(cleanDomain) == 0 {
			continue
		}

		if host == cleanDomain || strings.HasSuffix(host, "."+cleanDomain) {
			return true
		}
	}

	return false
}

func parseAbsolute(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, false
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, false
	}
	return u, true
}
