package client

import "github.com/pkg/browser"

// DefaultBrowserOpener opens a URL in the user's system browser.
func DefaultBrowserOpener(url string) error {
	return browser.OpenURL(url)
}
