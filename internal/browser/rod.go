package browser

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

type LaunchOptions struct {
	Bin       string
	Headless  bool
	NoSandbox bool
}

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// Launch starts a Chrome process and connects to it over CDP.
func Launch(opts LaunchOptions) (Browser, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox).
		Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", ViewportWidth, ViewportHeight))
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	return &rodBrowser{launcher: l, browser: b}, nil
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: UserAgent}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set user agent: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             ViewportWidth,
		Height:            ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	return &rodPage{page: page}, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page   *rod.Page
	closed atomic.Bool
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) WaitElement(ctx context.Context, selector string) (Element, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, err
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) Find(ctx context.Context, selector string) (Element, bool, error) {
	ok, el, err := p.page.Context(ctx).Has(selector)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rodElement{el: el}, true, nil
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) ExpectNavigation(ctx context.Context) func() error {
	wait := p.page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameLoad)
	return func() error {
		wait()
		return ctx.Err()
	}
}

func (p *rodPage) WaitNetworkIdle(ctx context.Context) error {
	p.page.Context(ctx).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return ctx.Err()
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, nil)
}

func (p *rodPage) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.page.Close()
}

func (p *rodPage) IsClosed() bool {
	return p.closed.Load()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(ctx context.Context, count int) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, count)
}

// Type focuses the element and inserts text at the caret. Compose labels hand
// focus to their contenteditable child on click, so the text goes to the page
// rather than to the label node itself.
func (e *rodElement) Type(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.Focus(); err != nil {
		return err
	}
	return el.Page().Context(ctx).InsertText(text)
}

func (e *rodElement) PressEnter(ctx context.Context) error {
	return e.el.Context(ctx).Type(input.Enter)
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) SetFiles(ctx context.Context, paths []string) error {
	return e.el.Context(ctx).SetFiles(paths)
}

func (e *rodElement) Find(ctx context.Context, selector string) (Element, bool, error) {
	ok, el, err := e.el.Context(ctx).Has(selector)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rodElement{el: el}, true, nil
}
