package ncaa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/monitoring"
)

// BrowserUserAgent is sent by the headless browser.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BrowserFetcher renders pages in headless Chrome. It is slower than Client
// but gets through when plain requests are blocked.
type BrowserFetcher struct {
	timeout time.Duration

	allocCtx context.Context
	cancel   context.CancelFunc
	metrics  *monitoring.Metrics
}

// NewBrowserFetcher starts a Chrome allocator. Call Close when done.
func NewBrowserFetcher(timeout time.Duration, metrics *monitoring.Metrics) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(BrowserUserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &BrowserFetcher{
		timeout:  timeout,
		allocCtx: allocCtx,
		cancel:   cancel,
		metrics:  metrics,
	}
}

// Close releases the browser.
func (b *BrowserFetcher) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Fetch navigates to pageURL and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	timer := monitoring.NewTimer(b.metrics, "browser")

	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	browserCtx, cancel = context.WithTimeout(browserCtx, b.timeout)
	defer cancel()

	// tie the browser tab to the caller's cancellation as well
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		timer.Stop(monitoring.OutcomeError)
		return nil, fmt.Errorf("chromedp %s: %w", pageURL, err)
	}
	if html == "" {
		timer.Stop(monitoring.OutcomeError)
		return nil, fmt.Errorf("chromedp %s: empty document", pageURL)
	}

	timer.Stop(monitoring.OutcomeOK)
	return []byte(html), nil
}

// FallbackFetcher retries blocked requests through a second fetcher,
// normally a BrowserFetcher.
type FallbackFetcher struct {
	Primary  Fetcher
	Fallback Fetcher
	Logger   *zap.Logger
}

// Fetch tries Primary and, on ErrBlocked only, Fallback.
func (f *FallbackFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	body, err := f.Primary.Fetch(ctx, pageURL)
	if err == nil || !errors.Is(err, ErrBlocked) || f.Fallback == nil {
		return body, err
	}
	if f.Logger != nil {
		f.Logger.Info("falling back to browser", zap.String("url", pageURL))
	}
	return f.Fallback.Fetch(ctx, pageURL)
}
