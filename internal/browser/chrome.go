package browser

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
)

var ErrNoBrowser = errors.New("no supported browser found")

// Config holds browser launch configuration for debug sessions.
type Config struct {
	// Path overrides auto-detection when set.
	Path       string
	ProfileDir string
	WindowSize string
	Sandbox    bool
}

var candidates = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// Detect resolves the browser binary: the preferred path when given,
// otherwise the first Chrome/Chromium found on PATH.
func Detect(preferred string) (string, error) {
	if preferred != "" {
		if path, err := exec.LookPath(preferred); err == nil {
			return path, nil
		}
		if info, err := os.Stat(preferred); err == nil && !info.IsDir() {
			return preferred, nil
		}
		return "", fmt.Errorf("%w: %s is not executable", ErrNoBrowser, preferred)
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoBrowser, strings.Join(candidates, ", "))
}

// ParseWindowSize parses "width,height".
func ParseWindowSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("window size %q: want width,height", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("window size %q: bad width", s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("window size %q: bad height", s)
	}
	return width, height, nil
}

// AllocatorOptions builds headed exec-allocator options for a visible
// debug browser at path.
func AllocatorOptions(path string, cfg Config) ([]chromedp.ExecAllocatorOption, error) {
	size := cfg.WindowSize
	if size == "" {
		size = "1280,800"
	}
	width, height, err := ParseWindowSize(size)
	if err != nil {
		return nil, err
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.ExecPath(path),
		chromedp.Flag("headless", false),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.Flag("mute-audio", false),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(width, height),
	)
	if cfg.ProfileDir != "" {
		if err := os.MkdirAll(cfg.ProfileDir, 0o755); err != nil {
			return nil, fmt.Errorf("create profile dir: %w", err)
		}
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	if !cfg.Sandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts, nil
}
