// Package browser exposes the small set of page and element capabilities the
// Twitter automation needs, so the driver can run against a real Chrome
// instance or an in-memory fake.
package browser

import (
	"context"
	"errors"
)

const (
	UserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	ViewportWidth  = 1280
	ViewportHeight = 720
)

var ErrPageClosed = errors.New("browser: page is closed")

type Browser interface {
	// NewPage opens a blank tab with the desktop user agent and viewport applied.
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitElement blocks until selector matches or ctx is done.
	WaitElement(ctx context.Context, selector string) (Element, error)
	// Find looks selector up once without waiting.
	Find(ctx context.Context, selector string) (Element, bool, error)
	Elements(ctx context.Context, selector string) ([]Element, error)
	// ExpectNavigation must be armed before the action that triggers the
	// navigation; the returned func blocks until it completes or ctx is done.
	ExpectNavigation(ctx context.Context) func() error
	WaitNetworkIdle(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
	IsClosed() bool
}

type Element interface {
	Click(ctx context.Context, count int) error
	Type(ctx context.Context, text string) error
	PressEnter(ctx context.Context) error
	Attribute(ctx context.Context, name string) (string, bool, error)
	Text(ctx context.Context) (string, error)
	SetFiles(ctx context.Context, paths []string) error
	Find(ctx context.Context, selector string) (Element, bool, error)
}
