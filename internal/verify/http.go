// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

const (
	// WordPressWelcome is served by a fresh WordPress install that can reach
	// its database.
	WordPressWelcome = "Welcome to the famous five minute WordPress installation process!"

	// WordPressInstallPath is the page carrying WordPressWelcome.
	WordPressInstallPath = "/wp-admin/install.php"

	// DefaultHTTPTimeout bounds how long the WordPress check keeps trying.
	DefaultHTTPTimeout = 300 * time.Second

	// DefaultHTTPDelay is the delay between two attempts of the check.
	DefaultHTTPDelay = time.Second

	// maxPageSize caps how much of a page is read looking for the text.
	maxPageSize = 1 << 20
)

// HTTPChecker confirms that the expected application is served at address.
type HTTPChecker interface {
	CheckReachable(ctx context.Context, address string) error
}

// PageCheckerConfig configures a PageChecker.
type PageCheckerConfig struct {
	// Client performs the requests.
	Client *http.Client

	// Clock paces the attempts.
	Clock clock.Clock

	// Path is requested on every address checked.
	Path string

	// Text must appear in the page body.
	Text string

	// Timeout bounds the whole check, Delay separates attempts.
	Timeout time.Duration
	Delay   time.Duration
}

// Validate returns an error if the config cannot be used.
func (c PageCheckerConfig) Validate() error {
	if c.Client == nil {
		return errors.NotValidf("nil Client")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Text == "" {
		return errors.NotValidf("empty Text")
	}
	if c.Timeout <= 0 {
		return errors.NotValidf("non-positive Timeout")
	}
	if c.Delay <= 0 {
		return errors.NotValidf("non-positive Delay")
	}
	return nil
}

// PageChecker is an HTTPChecker that fetches one page over plain HTTP until
// it contains the expected text.
type PageChecker struct {
	config PageCheckerConfig
}

// NewPageChecker returns a PageChecker using the given config.
func NewPageChecker(config PageCheckerConfig) (*PageChecker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &PageChecker{config: config}, nil
}

// NewWordPressChecker returns a PageChecker looking for the WordPress
// installation page.
func NewWordPressChecker(client *http.Client, clk clock.Clock, timeout time.Duration) (*PageChecker, error) {
	return NewPageChecker(PageCheckerConfig{
		Client:  client,
		Clock:   clk,
		Path:    WordPressInstallPath,
		Text:    WordPressWelcome,
		Timeout: timeout,
		Delay:   DefaultHTTPDelay,
	})
}

// CheckReachable is part of the HTTPChecker interface.
func (p *PageChecker) CheckReachable(ctx context.Context, address string) error {
	url := fmt.Sprintf("http://%s%s", address, p.config.Path)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return p.fetch(ctx, url)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("attempt %d on %s: %v", attempt, url, err)
		},
		Attempts:    retry.UnlimitedAttempts,
		Delay:       p.config.Delay,
		MaxDuration: p.config.Timeout,
		Clock:       p.config.Clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if last := retry.LastError(err); last != nil {
			err = last
		}
		return errors.Annotatef(err, "cannot get welcome screen at %s", url)
	}
	logger.Infof("%s is serving the expected page", url)
	return nil
}

func (p *PageChecker) fetch(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Trace(err)
	}
	resp, err := p.config.Client.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return errors.Trace(err)
	}
	if !strings.Contains(string(body), p.config.Text) {
		return errors.Errorf("%s: expected text not found", resp.Status)
	}
	return nil
}
