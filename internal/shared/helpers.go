package shared

import (
	"net/url"
	"strings"
)

// ValidateURL reports whether link is an absolute http(s) URL with a host.
func ValidateURL(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}
	return u.Host != "" && u.Hostname() != ""
}

func GetDomain(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}
