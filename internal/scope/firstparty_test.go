package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostResolver_IsFirstPartyURL(t *testing.T) {
	r := NewHostResolver("Example.com", " ", "api.internal")

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/path", true},
		{"https://EXAMPLE.com", true},
		{"https://shop.example.com:8443/cart", true},
		{"https://notexample.com", false},
		{"https://example.com.evil.net", false},
		{"http://api.internal/v1", true},
		{"/relative/path", false},
		{"://broken", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.IsFirstPartyURL(tt.url), tt.url)
	}
}
