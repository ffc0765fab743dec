package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"breederchat/internal/logger"

	"github.com/playwright-community/playwright-go"
)

// BrowserFetcher renders pages in headless Chromium. The browser is started
// on first use and reused until Close.
type BrowserFetcher struct {
	timeout  time.Duration
	strategy HeaderStrategy
	log      *logger.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewBrowserFetcher(timeout time.Duration) *BrowserFetcher {
	return &BrowserFetcher{timeout: timeout, strategy: StrategyDesktop, log: logger.New("BrowserFetcher")}
}

func (f *BrowserFetcher) WithStrategy(s HeaderStrategy) *BrowserFetcher {
	f.strategy = s
	return f
}

func (f *BrowserFetcher) ensureBrowser() (playwright.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil && f.browser.IsConnected() {
		return f.browser, nil
	}
	if f.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("playwright initialization failed: %w", err)
		}
		f.pw = pw
	}
	browser, err := f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     []string{"--no-sandbox", "--disable-dev-shm-usage", "--disable-gpu"},
	})
	if err != nil {
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}
	f.browser = browser
	return browser, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, baseURL string, page int) (*Page, error) {
	target, err := PageURL(baseURL, page)
	if err != nil {
		return nil, &Error{URL: baseURL, Page: page, Message: err.Error(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{URL: target, Page: page, Message: "request cancelled", Err: err}
	}

	browser, err := f.ensureBrowser()
	if err != nil {
		return nil, &Error{URL: target, Page: page, Message: "browser unavailable", Err: err}
	}

	profile := Profile(f.strategy)
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(profile.UserAgent),
		ExtraHttpHeaders: map[string]string{"Accept-Language": profile.AcceptLanguage},
	})
	if err != nil {
		return nil, &Error{URL: target, Page: page, Message: "browser context failed", Err: err}
	}
	defer bctx.Close()

	p, err := bctx.NewPage()
	if err != nil {
		return nil, &Error{URL: target, Page: page, Message: "new page failed", Err: err}
	}

	timeout := f.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	resp, err := p.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, &Error{URL: target, Page: page, Message: "navigation failed", Err: err}
	}

	status := 200
	if resp != nil {
		status = resp.Status()
	}
	if !isSuccess(status) {
		return nil, &Error{URL: target, Page: page, StatusCode: status, Message: "non-success status"}
	}

	html, err := p.Content()
	if err != nil {
		return nil, &Error{URL: target, Page: page, Message: "read content failed", Err: err}
	}
	return &Page{URL: target, Number: page, HTML: html, StatusCode: status}, nil
}

// Close shuts down the browser and the playwright driver.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			f.log.LogWarnf("browser close: %v", err)
		}
		f.browser = nil
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			return err
		}
		f.pw = nil
	}
	return nil
}
