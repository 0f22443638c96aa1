package scrape

import (
	"net/url"
	"strings"
)

func isTwitterURL(rawurl string) bool {
	u, err := url.Parse(rawurl)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return host == "twitter.com" || host == "x.com" || host == "mobile.twitter.com"
}
