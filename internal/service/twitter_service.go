package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/browser"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// Selectors are keyed to the site's data-testid attributes and break
// silently when its markup changes.
const (
	twitterOrigin = "https://twitter.com"

	selectorTweet             = "article[data-testid=tweet]"
	selectorTweetText         = "div[data-testid=tweetText]"
	selectorTweetTime         = "time"
	selectorTweetLink         = "a[href*='/status/']"
	selectorComposeLabel      = `label[data-testid="tweetTextarea_0_label"]`
	selectorFileInput         = "input[type=file]"
	selectorAttachments       = `div[data-testid="attachments"]`
	selectorTweetButtonInline = `div[data-testid="tweetButtonInline"]:not([aria-disabled="true"])`
	selectorTweetButton       = `div[data-testid="tweetButton"]:not([aria-disabled="true"])`
	selectorToast             = "div[data-testid=toast]"
	selectorReplyButton       = "div[data-testid=reply]:not([aria-disabled=true])"
	selectorCaret             = "div[data-testid=caret]"
	selectorDeleteOption      = "div[data-testid=Dropdown] > div:nth-child(1)"
	selectorConfirmDelete     = "div[data-testid=confirmationSheetConfirm]"
)

var ErrScreenshotsDisabled = errors.New("screenshot path is not configured")

type TwitterService interface {
	PostingBackend
	// Screenshot opens the home timeline, lets it settle and saves a
	// screenshot, returning where it was written.
	Screenshot(ctx context.Context) (string, error)
	PermalinkURL(tweetID string) string
}

type twitterService struct {
	cfg         config.Twitter
	browser     browser.Browser
	session     TwitterSessionManager
	tweets      repository.TweetRepository
	screenshots ScreenshotService

	settle     time.Duration
	homeSettle time.Duration

	// one automation sequence at a time against the shared browser
	mu sync.Mutex
}

func NewTwitterService(cfg config.Twitter, b browser.Browser, session TwitterSessionManager, tweets repository.TweetRepository, screenshots ScreenshotService) TwitterService {
	return &twitterService{
		cfg:         cfg,
		browser:     b,
		session:     session,
		tweets:      tweets,
		screenshots: screenshots,
		settle:      500 * time.Millisecond,
		homeSettle:  10 * time.Second,
	}
}

func (s *twitterService) Platform() string {
	return models.PlatformTwitter
}

func (s *twitterService) Enabled() bool {
	return s.browser != nil && s.session.Enabled()
}

func (s *twitterService) PermalinkURL(tweetID string) string {
	return fmt.Sprintf("%s/%s/status/%s", twitterOrigin, s.cfg.Username, tweetID)
}

func (s *twitterService) SyncRecent(ctx context.Context) error {
	if !s.Enabled() {
		return ErrPlatformDisabled
	}

	return s.withPage(ctx, twitterOrigin+"/"+s.cfg.Username, func(page browser.Page) error {
		if _, err := waitFor(ctx, page, s.cfg.ElementTimeout, "tweet article", selectorTweet); err != nil {
			return err
		}

		articles, err := page.Elements(ctx, selectorTweet)
		if err != nil {
			return fmt.Errorf("list tweet articles: %w", err)
		}
		if len(articles) > s.cfg.MaxPosts {
			articles = articles[:s.cfg.MaxPosts]
		}

		for _, article := range articles {
			tweet, err := scrapeTweet(ctx, article)
			if err != nil {
				return err
			}
			if tweet == nil {
				continue
			}
			if err := s.tweets.Upsert(ctx, tweet); err != nil {
				return fmt.Errorf("upsert tweet %s: %w", tweet.TweetID, err)
			}
		}
		return nil
	})
}

// scrapeTweet returns nil when the article lacks a timestamp or permalink,
// which is the case for promoted and placeholder cells.
func scrapeTweet(ctx context.Context, article browser.Element) (*models.Tweet, error) {
	var text string
	if el, ok, err := article.Find(ctx, selectorTweetText); err != nil {
		return nil, err
	} else if ok {
		if text, err = el.Text(ctx); err != nil {
			return nil, err
		}
	}

	timeEl, ok, err := article.Find(ctx, selectorTweetTime)
	if err != nil || !ok {
		return nil, err
	}
	datetime, ok, err := timeEl.Attribute(ctx, "datetime")
	if err != nil || !ok || datetime == "" {
		return nil, err
	}

	linkEl, ok, err := article.Find(ctx, selectorTweetLink)
	if err != nil || !ok {
		return nil, err
	}
	href, ok, err := linkEl.Attribute(ctx, "href")
	if err != nil || !ok || href == "" {
		return nil, err
	}

	id := href[strings.LastIndex(href, "/")+1:]
	if i := strings.IndexAny(id, "?#"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return nil, fmt.Errorf("no tweet id in permalink %q", href)
	}

	tweetedAt, err := time.Parse(time.RFC3339, datetime)
	if err != nil {
		return nil, fmt.Errorf("parse tweet %s time: %w", id, err)
	}

	return &models.Tweet{
		TweetID:   id,
		Text:      strings.ReplaceAll(text, "\n", " "),
		TweetedAt: tweetedAt,
	}, nil
}

func (s *twitterService) Publish(ctx context.Context, draft *transfer.Draft) error {
	if !s.Enabled() {
		return ErrPlatformDisabled
	}

	return s.withPage(ctx, twitterOrigin+"/", func(page browser.Page) (err error) {
		defer func() {
			if err != nil {
				s.captureFailure(ctx, page, "tweet")
			}
		}()

		if err := s.typeComposition(ctx, page, s.composeText(draft)); err != nil {
			return err
		}

		if len(draft.Files) > 0 {
			if err := s.attachFiles(ctx, page, draft.Files); err != nil {
				return err
			}
			if _, err := waitFor(ctx, page, s.cfg.ElementTimeout, "attachment preview", selectorAttachments); err != nil {
				return err
			}
		}

		return s.submit(ctx, page, "post button", selectorTweetButtonInline)
	})
}

func (s *twitterService) Reply(ctx context.Context, targetID string, draft *transfer.Draft) error {
	if !s.Enabled() {
		return ErrPlatformDisabled
	}

	return s.withPage(ctx, s.PermalinkURL(targetID), func(page browser.Page) (err error) {
		defer func() {
			if err != nil {
				s.captureFailure(ctx, page, "reply")
			}
		}()

		if err := s.clickAndSettle(ctx, page, "reply button", selectorReplyButton); err != nil {
			return err
		}

		if len(draft.Files) > 0 {
			if err := s.attachFiles(ctx, page, draft.Files); err != nil {
				return err
			}
		}

		if err := s.typeComposition(ctx, page, s.composeText(draft)); err != nil {
			return err
		}

		return s.submit(ctx, page, "reply post button", selectorTweetButton)
	})
}

func (s *twitterService) Delete(ctx context.Context, tweetID string) error {
	if !s.Enabled() {
		return ErrPlatformDisabled
	}

	return s.withPage(ctx, s.PermalinkURL(tweetID), func(page browser.Page) error {
		if err := s.clickAndSettle(ctx, page, "post menu", selectorCaret); err != nil {
			return err
		}
		if err := s.clickAndSettle(ctx, page, "delete option", selectorDeleteOption); err != nil {
			return err
		}
		if err := s.clickAndSettle(ctx, page, "delete confirmation", selectorConfirmDelete); err != nil {
			return err
		}
		return page.WaitNetworkIdle(ctx)
	})
}

func (s *twitterService) Screenshot(ctx context.Context) (string, error) {
	if !s.Enabled() {
		return "", ErrPlatformDisabled
	}
	if s.screenshots == nil || !s.screenshots.Enabled() {
		return "", ErrScreenshotsDisabled
	}

	var path string
	err := s.withPage(ctx, twitterOrigin+"/", func(page browser.Page) error {
		if err := sleepContext(ctx, s.homeSettle); err != nil {
			return err
		}
		data, err := page.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("capture screenshot: %w", err)
		}
		path, err = s.screenshots.Save(ctx, "twitter", data)
		return err
	})
	return path, err
}

// composeText appends the quoted tweet's permalink, which the site renders
// as a quote card.
func (s *twitterService) composeText(draft *transfer.Draft) string {
	if draft.QuoteOf == "" {
		return draft.Text
	}
	link := s.PermalinkURL(draft.QuoteOf)
	if draft.Text == "" {
		return link
	}
	return draft.Text + " " + link
}

func (s *twitterService) typeComposition(ctx context.Context, page browser.Page, text string) error {
	label, err := waitFor(ctx, page, s.cfg.ElementTimeout, "compose box", selectorComposeLabel)
	if err != nil {
		return err
	}
	// triple click selects any restored draft so typing replaces it
	if err := label.Click(ctx, 3); err != nil {
		return fmt.Errorf("focus compose box: %w", err)
	}
	if err := label.Type(ctx, text); err != nil {
		return fmt.Errorf("type composition: %w", err)
	}
	return nil
}

func (s *twitterService) attachFiles(ctx context.Context, page browser.Page, files []string) error {
	input, err := waitFor(ctx, page, s.cfg.ElementTimeout, "file input", selectorFileInput)
	if err != nil {
		return err
	}
	if err := input.SetFiles(ctx, files); err != nil {
		return fmt.Errorf("attach files: %w", err)
	}
	return nil
}

func (s *twitterService) submit(ctx context.Context, page browser.Page, affordance, selector string) error {
	button, err := waitFor(ctx, page, s.cfg.ElementTimeout, affordance, selector)
	if err != nil {
		return err
	}
	if err := button.Click(ctx, 1); err != nil {
		return fmt.Errorf("click %s: %w", affordance, err)
	}
	_, err = waitFor(ctx, page, s.cfg.ElementTimeout, "success toast", selectorToast)
	return err
}

func (s *twitterService) clickAndSettle(ctx context.Context, page browser.Page, affordance, selector string) error {
	el, err := waitFor(ctx, page, s.cfg.ElementTimeout, affordance, selector)
	if err != nil {
		return err
	}
	if err := el.Click(ctx, 1); err != nil {
		return fmt.Errorf("click %s: %w", affordance, err)
	}
	return sleepContext(ctx, s.settle)
}

// withPage runs fn on a fresh page that is closed on every exit path.
func (s *twitterService) withPage(ctx context.Context, url string, fn func(page browser.Page) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Info(err.Error())
		}
	}()

	if err := page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return fn(page)
}

func (s *twitterService) captureFailure(ctx context.Context, page browser.Page, prefix string) {
	if s.screenshots == nil || !s.screenshots.Enabled() {
		return
	}
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	data, err := page.Screenshot(shotCtx)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	path, err := s.screenshots.Save(shotCtx, prefix, data)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	slog.Info("saved failure screenshot", "path", path)
}
