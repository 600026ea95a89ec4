package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/journey_agent/internal/actions"
	"github.com/dgnsrekt/journey_agent/internal/browser"
	"github.com/dgnsrekt/journey_agent/internal/journey"
)

const (
	defaultActionTimeout = 30 * time.Second
	closeTimeout         = 5 * time.Second
)

// ChromeConfig configures debug browsers.
type ChromeConfig struct {
	Browser       browser.Config
	ActionTimeout time.Duration
}

// ChromeLauncher launches a visible Chrome through chromedp.
type ChromeLauncher struct {
	cfg ChromeConfig
}

func NewChromeLauncher(cfg ChromeConfig) *ChromeLauncher {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	return &ChromeLauncher{cfg: cfg}
}

// Launch starts the browser and opens its first page. ctx bounds the launch
// only; the browser outlives it.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	path, err := browser.Detect(l.cfg.Browser.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("detected browser", "path", path)

	opts, err := browser.AllocatorOptions(path, l.cfg.Browser)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	b := &chromeBrowser{
		allocCancel: allocCancel,
		pageCtx:     pageCtx,
		pageCancel:  pageCancel,
		pages:       make(map[target.ID]struct{}),
		lost:        make(chan struct{}),
	}
	b.page = &chromePage{ctx: pageCtx, timeout: l.cfg.ActionTimeout}
	chromedp.ListenBrowser(pageCtx, b.onTargetEvent)

	stop := context.AfterFunc(ctx, allocCancel)
	err = chromedp.Run(pageCtx)
	stopped := stop()
	if err != nil || !stopped {
		pageCancel()
		allocCancel()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("start browser: %w", err)
	}

	targets, err := chromedp.Targets(pageCtx)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("enumerate targets: %w", err)
	}
	b.seed(targets)

	go func() {
		<-pageCtx.Done()
		b.markLost()
	}()
	return b, nil
}

type chromeBrowser struct {
	allocCancel context.CancelFunc
	pageCtx     context.Context
	pageCancel  context.CancelFunc
	page        *chromePage

	mu       sync.Mutex
	pages    map[target.ID]struct{}
	lost     chan struct{}
	lostOnce sync.Once
}

func (b *chromeBrowser) Page() Page            { return b.page }
func (b *chromeBrowser) Lost() <-chan struct{} { return b.lost }

func (b *chromeBrowser) Close() error {
	ctx, cancel := context.WithTimeout(b.pageCtx, closeTimeout)
	defer cancel()
	err := chromedp.Cancel(ctx)
	b.pageCancel()
	b.allocCancel()
	b.markLost()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (b *chromeBrowser) seed(targets []*target.Info) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range targets {
		if t.Type == "page" {
			b.pages[t.TargetID] = struct{}{}
		}
	}
}

func (b *chromeBrowser) onTargetEvent(ev any) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		if e.TargetInfo.Type != "page" {
			return
		}
		b.mu.Lock()
		b.pages[e.TargetInfo.TargetID] = struct{}{}
		b.mu.Unlock()
	case *target.EventTargetDestroyed:
		b.mu.Lock()
		_, tracked := b.pages[e.TargetID]
		delete(b.pages, e.TargetID)
		empty := tracked && len(b.pages) == 0
		b.mu.Unlock()
		if empty {
			slog.Debug("last browser page closed", "target_id", e.TargetID)
			b.markLost()
		}
	}
}

func (b *chromeBrowser) markLost() {
	b.lostOnce.Do(func() { close(b.lost) })
}

type chromePage struct {
	ctx     context.Context
	timeout time.Duration
}

func (p *chromePage) Run(ctx context.Context, a journey.Action) error {
	tasks, err := actions.Build(a)
	if err != nil {
		return err
	}
	return p.run(ctx, tasks)
}

func (p *chromePage) BringToFront(ctx context.Context) error {
	return p.run(ctx, chromedp.Tasks{page.BringToFront()})
}

func (p *chromePage) run(ctx context.Context, tasks chromedp.Tasks) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, tasks)
}
