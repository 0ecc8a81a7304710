package service

import (
	"context"
	"time"

	"github.com/maheshrc27/crosspost/internal/browser"
)

// waitFor bounds a selector wait by timeout and names the affordance in the
// error.
func waitFor(ctx context.Context, page browser.Page, timeout time.Duration, affordance, selector string) (browser.Element, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	el, err := page.WaitElement(ctx, selector)
	if err != nil {
		return nil, &ElementNotFoundError{Affordance: affordance, Selector: selector, Err: err}
	}
	return el, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
