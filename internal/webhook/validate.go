package webhook

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL проверяет destination URL.
//
// Допускаются только http/https. localhost-адреса отклоняются вне
// локального/dev-режима (allowLocalhost).
func ValidateURL(raw string, allowLocalhost bool) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if !allowLocalhost && isLocalhost(u.Hostname()) {
		return fmt.Errorf("%w: localhost destination %q", ErrInvalidURL, u.Hostname())
	}

	return nil
}

// isLocalhost проверяет, указывает ли host на локальную машину.
func isLocalhost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
