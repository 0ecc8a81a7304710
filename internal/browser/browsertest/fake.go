// Package browsertest provides scriptable in-memory implementations of the
// browser interfaces.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/browser"
)

const pollInterval = 2 * time.Millisecond

// Browser hands out fake pages and tracks how many are open. OnNavigate runs
// whenever a page navigates so tests can populate the DOM for that URL.
type Browser struct {
	OnNavigate func(p *Page, url string)
	NewPageErr error

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	p := &Page{
		browser:  b,
		elements: make(map[string][]*Element),
		navDone:  make(chan error, 1),
	}
	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// OpenPages returns the number of pages not yet closed.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.pages {
		if !p.IsClosed() {
			n++
		}
	}
	return n
}

// Pages returns every page opened so far, in order.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

type Page struct {
	NavigateErr   error
	ScreenshotErr error

	browser  *Browser
	mu       sync.Mutex
	urls     []string
	elements map[string][]*Element
	navDone  chan error
	closed   bool
	closes   int
	shots    int
	idle     int
}

// Set replaces the elements matched by selector. Passing none removes it.
func (p *Page) Set(selector string, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(els) == 0 {
		delete(p.elements, selector)
		return
	}
	p.elements[selector] = els
}

// CompleteNavigation releases one pending ExpectNavigation wait.
func (p *Page) CompleteNavigation(err error) {
	select {
	case p.navDone <- err:
	default:
	}
}

func (p *Page) URLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shots
}

func (p *Page) IdleWaits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

func (p *Page) lookup(selector string) []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[selector]
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.IsClosed() {
		return browser.ErrPageClosed
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	p.urls = append(p.urls, url)
	p.mu.Unlock()
	if p.browser.OnNavigate != nil {
		p.browser.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) WaitElement(ctx context.Context, selector string) (browser.Element, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if p.IsClosed() {
			return nil, browser.ErrPageClosed
		}
		if els := p.lookup(selector); len(els) > 0 {
			return els[0], nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Page) Find(ctx context.Context, selector string) (browser.Element, bool, error) {
	if p.IsClosed() {
		return nil, false, browser.ErrPageClosed
	}
	if els := p.lookup(selector); len(els) > 0 {
		return els[0], true, nil
	}
	return nil, false, nil
}

func (p *Page) Elements(ctx context.Context, selector string) ([]browser.Element, error) {
	if p.IsClosed() {
		return nil, browser.ErrPageClosed
	}
	els := p.lookup(selector)
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out, nil
}

func (p *Page) ExpectNavigation(ctx context.Context) func() error {
	return func() error {
		select {
		case err := <-p.navDone:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Page) WaitNetworkIdle(ctx context.Context) error {
	p.mu.Lock()
	p.idle++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.mu.Lock()
	p.shots++
	p.mu.Unlock()
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// Close reports an error on a second call so tests catch double closes.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	if p.closed {
		return errors.New("browsertest: page closed twice")
	}
	p.closed = true
	return nil
}

// Closes counts every Close call, including rejected repeats.
func (p *Page) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Element records every interaction. OnClick and OnEnter let a test mutate
// the page in response, e.g. to reveal a toast after the submit click.
type Element struct {
	Attrs    map[string]string
	Content  string
	Children map[string]*Element
	OnClick  func()
	OnEnter  func()
	ClickErr error

	mu     sync.Mutex
	clicks []int
	typed  []string
	enters int
	files  []string
}

func (e *Element) Click(ctx context.Context, count int) error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.mu.Lock()
	e.clicks = append(e.clicks, count)
	e.mu.Unlock()
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

func (e *Element) Type(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed = append(e.typed, text)
	return nil
}

func (e *Element) PressEnter(ctx context.Context) error {
	e.mu.Lock()
	e.enters++
	e.mu.Unlock()
	if e.OnEnter != nil {
		e.OnEnter()
	}
	return nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.Content, nil
}

func (e *Element) SetFiles(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files = append(e.files, paths...)
	return nil
}

func (e *Element) Find(ctx context.Context, selector string) (browser.Element, bool, error) {
	child, ok := e.Children[selector]
	if !ok {
		return nil, false, nil
	}
	return child, true, nil
}

func (e *Element) Clicks() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.clicks...)
}

func (e *Element) Typed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.typed...)
}

func (e *Element) Enters() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enters
}

func (e *Element) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.files...)
}
