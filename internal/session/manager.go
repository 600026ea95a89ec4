// Package session owns the single live browser used for debug stepping.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/journey_agent/internal/journey"
)

var ErrSessionActive = errors.New("a browser session is already active")

// Page is the one page of a live session.
type Page interface {
	// Run performs a single recorded action.
	Run(ctx context.Context, a journey.Action) error
	BringToFront(ctx context.Context) error
}

// Browser is a launched browser with one context and one page.
type Browser interface {
	Page() Page
	// Lost is closed when the last open page is gone or the browser exits.
	Lost() <-chan struct{}
	Close() error
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Manager holds at most one live Browser.
type Manager struct {
	launcher Launcher

	mu        sync.Mutex
	browser   Browser
	launching bool
	closing   bool
	onLost    []func()
}

// NewManager returns a Manager that launches through l.
func NewManager(l Launcher) *Manager {
	return &Manager{launcher: l}
}

// OnLost registers fn to run when the session is torn down because the user
// closed every page or the browser went away.
func (m *Manager) OnLost(fn func()) {
	m.mu.Lock()
	m.onLost = append(m.onLost, fn)
	m.mu.Unlock()
}

// Active reports whether a session is held.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil || m.launching
}

// Page returns the live page, or nil when no session is held.
func (m *Manager) Page() Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return nil
	}
	return m.browser.Page()
}

// Acquire launches a browser and returns its page. It fails with
// ErrSessionActive while another session is held.
func (m *Manager) Acquire(ctx context.Context) (Page, error) {
	m.mu.Lock()
	if m.browser != nil || m.launching {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	m.launching = true
	m.mu.Unlock()

	b, err := m.launcher.Launch(ctx)

	m.mu.Lock()
	m.launching = false
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	m.browser = b
	m.mu.Unlock()

	go m.watch(b)
	slog.Info("debug browser session started")
	return b.Page(), nil
}

// Release closes the held browser. Overlapping calls collapse into a single
// Close.
func (m *Manager) Release() error {
	m.mu.Lock()
	if m.browser == nil || m.closing {
		m.mu.Unlock()
		return nil
	}
	b := m.browser
	m.closing = true
	m.mu.Unlock()

	err := b.Close()

	m.mu.Lock()
	if m.browser == b {
		m.browser = nil
	}
	m.closing = false
	m.mu.Unlock()

	if err != nil {
		slog.Warn("debug browser close failed", "error", err)
		return fmt.Errorf("close browser: %w", err)
	}
	slog.Info("debug browser session closed")
	return nil
}

// Drop forgets the held browser without closing it.
func (m *Manager) Drop() {
	m.mu.Lock()
	m.browser = nil
	m.mu.Unlock()
}

func (m *Manager) watch(b Browser) {
	<-b.Lost()

	m.mu.Lock()
	if m.browser != b || m.closing {
		m.mu.Unlock()
		return
	}
	handlers := append([]func(){}, m.onLost...)
	m.mu.Unlock()

	slog.Info("debug browser lost its last page, tearing down session")
	_ = m.Release()
	for _, fn := range handlers {
		fn()
	}
}
