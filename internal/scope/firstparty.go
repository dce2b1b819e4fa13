package scope

import (
	"net/url"
	"strings"
)

// HostResolver classifies urls whose host equals, or is a subdomain of, one
// of the configured hosts. It implements rum.FirstPartyResolver.
type HostResolver struct {
	hosts []string
}

// NewHostResolver creates a resolver for hosts. Hosts are matched
// case-insensitively; empty entries are ignored.
func NewHostResolver(hosts ...string) *HostResolver {
	r := &HostResolver{}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			r.hosts = append(r.hosts, h)
		}
	}
	return r
}

// IsFirstPartyURL implements rum.FirstPartyResolver.
func (r *HostResolver) IsFirstPartyURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range r.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
