package fsx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Browser is the page-level surface the scraper drives.
type Browser interface {
	Login(ctx context.Context, username, password string) error
	// Page navigates to url, waits for selector and returns the document HTML.
	Page(ctx context.Context, url, selector string) (string, error)
	// Fetch requests url from inside the logged-in page and returns the body.
	Fetch(ctx context.Context, url string) (string, error)
	Close()
}

const pageTimeout = 30 * time.Second

// ChromeBrowser drives a headless (or visible) Chrome through chromedp.
type ChromeBrowser struct {
	baseURL     string
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc

	// launch starts Chrome on the tab context. The first chromedp.Run binds
	// the browser process to its context, so it must not carry a timeout.
	launch  func(ctx context.Context) error
	mu      sync.Mutex
	started bool
}

// NewChromeBrowser starts a browser. The returned browser owns its own
// context tree; call Close to shut it down.
func NewChromeBrowser(baseURL string, headless bool) *ChromeBrowser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", headless))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	return &ChromeBrowser{
		baseURL:     baseURL,
		ctx:         tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		launch:      func(ctx context.Context) error { return chromedp.Run(ctx) },
	}
}

// start launches the browser once. A failed launch is retried on the next call.
func (b *ChromeBrowser) start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if err := b.launch(b.ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	b.started = true
	return nil
}

// run executes actions on the browser tab, bounded by both ctx and pageTimeout.
// The timeout applies only after the browser is running.
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := b.start(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(b.ctx, pageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Login signs in through the portal's modal form. The overlay the modal
// leaves behind intercepts clicks, so it is hidden before submitting.
func (b *ChromeBrowser) Login(ctx context.Context, username, password string) error {
	err := b.run(ctx,
		chromedp.Navigate(b.baseURL+"/"),
		chromedp.Click(`#sign-in-btn`, chromedp.ByQuery),
		chromedp.WaitVisible(`#sign-in-username`, chromedp.ByQuery),
		chromedp.SendKeys(`#sign-in-username`, username, chromedp.ByQuery),
		chromedp.SendKeys(`#sign-in-password`, password, chromedp.ByQuery),
		chromedp.WaitVisible(`.md-overlay`, chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelector('.md-overlay').style.display = 'none'`, nil),
		chromedp.Click(`//button[contains(@class, "btn-primary")][contains(., "SIGN IN")]`, chromedp.BySearch),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func (b *ChromeBrowser) Page(ctx context.Context, url, selector string) (string, error) {
	var html string
	err := b.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", url, err)
	}
	return html, nil
}

// Fetch uses the page's own fetch so the session cookies ride along.
func (b *ChromeBrowser) Fetch(ctx context.Context, url string) (string, error) {
	target, err := json.Marshal(url)
	if err != nil {
		return "", err
	}
	script := fmt.Sprintf(`fetch(%s, {credentials: 'include'}).then(r => {
		if (!r.ok) { throw new Error('status ' + r.status); }
		return r.text();
	})`, target)

	var body string
	err = b.run(ctx, chromedp.Evaluate(script, &body, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	return body, nil
}

func (b *ChromeBrowser) Close() {
	b.cancelTab()
	b.cancelAlloc()
}
