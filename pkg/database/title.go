package database

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// WebsiteTitle derives a display title from a URL: strip the scheme,
// a www prefix, path and query, then title-case the main domain label.
// "https://www.my-shop.example.com/cart" becomes "Example".
func WebsiteTitle(websiteURL string) string {
	if websiteURL == "" || websiteURL == "Unknown" {
		return "Unknown Website"
	}

	host := websiteURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	if host == "" {
		return "Unknown Website"
	}

	parts := strings.Split(host, ".")
	main := parts[0]
	if len(parts) >= 2 {
		main = parts[len(parts)-2]
	}
	main = strings.NewReplacer("-", " ", "_", " ").Replace(main)
	return titleCaser.String(main)
}
