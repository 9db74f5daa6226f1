package webhook

import (
	"errors"
	"testing"
)

func TestValidateURL(t *testing.T) {
	cases := []struct {
		name           string
		url            string
		allowLocalhost bool
		wantErr        bool
	}{
		{"https", "https://example.com/hook", false, false},
		{"http", "http://example.com/hook", false, false},
		{"with port and path", "https://api.example.com:8443/v1/hooks?x=1", false, false},
		{"empty", "", false, true},
		{"whitespace", "   ", false, true},
		{"ftp scheme", "ftp://example.com/hook", false, true},
		{"no scheme", "example.com/hook", false, true},
		{"missing host", "https:///hook", false, true},
		{"localhost rejected", "http://localhost:3000/hook", false, true},
		{"loopback ip rejected", "http://127.0.0.1/hook", false, true},
		{"ipv6 loopback rejected", "http://[::1]:8080/hook", false, true},
		{"localhost allowed in dev", "http://localhost:3000/hook", true, false},
		{"loopback allowed in dev", "http://127.0.0.1:9999/hook", true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateURL(tc.url, tc.allowLocalhost)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("expected ErrInvalidURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
