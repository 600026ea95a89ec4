// Package actions turns recorded journey actions into chromedp tasks.
package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/dgnsrekt/journey_agent/internal/journey"
)

var (
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrMissingSelector   = errors.New("action has no selector")
	ErrAssertion         = errors.New("assertion failed")
)

type handler func(d journey.ActionDetail) (chromedp.Tasks, error)

var handlers = map[string]handler{
	"navigate":      navigate,
	"openPage":      openPage,
	"closePage":     noop,
	"click":         click,
	"dblclick":      dblclick,
	"fill":          fill,
	"press":         press,
	"check":         setChecked(true),
	"uncheck":       setChecked(false),
	"select":        selectOption,
	"setInputFiles": setInputFiles,
	"assertText":    assertText,
	"assertValue":   assertValue,
	"assertVisible": assertVisible,
	"assertChecked": assertChecked,
}

// Build returns the tasks that perform a on the current page.
func Build(a journey.Action) (chromedp.Tasks, error) {
	h, ok := handlers[a.Action.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, a.Action.Name)
	}
	return h(a.Action)
}

// Supported lists the action names Build understands.
func Supported() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeURL resolves local files to file:// URLs and defaults bare hosts
// to http://.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if _, err := os.Stat(u); err == nil {
		if abs, err := filepath.Abs(u); err == nil {
			return "file://" + abs
		}
	}
	if strings.HasPrefix(u, "http") || strings.HasPrefix(u, "file://") || strings.HasPrefix(u, "about:") {
		return u
	}
	return "http://" + u
}

// Selector maps a recorder selector to a chromedp query. xpath= and bare
// XPath expressions use a DOM search, as does text= which the search also
// matches as plain text. css= is stripped.
func Selector(sel string) (string, chromedp.QueryOption) {
	sel = strings.TrimSpace(sel)
	switch {
	case strings.HasPrefix(sel, "xpath="):
		return strings.TrimPrefix(sel, "xpath="), chromedp.BySearch
	case strings.HasPrefix(sel, "//"), strings.HasPrefix(sel, "(//"):
		return sel, chromedp.BySearch
	case strings.HasPrefix(sel, "text="):
		return strings.Trim(strings.TrimPrefix(sel, "text="), `"'`), chromedp.BySearch
	case strings.HasPrefix(sel, "css="):
		return strings.TrimPrefix(sel, "css="), chromedp.ByQuery
	}
	return sel, chromedp.ByQuery
}

func target(d journey.ActionDetail) (string, chromedp.QueryOption, error) {
	if strings.TrimSpace(d.Selector) == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrMissingSelector, d.Name)
	}
	sel, by := Selector(d.Selector)
	return sel, by, nil
}

func noop(journey.ActionDetail) (chromedp.Tasks, error) {
	return chromedp.Tasks{}, nil
}

func navigate(d journey.ActionDetail) (chromedp.Tasks, error) {
	u := NormalizeURL(d.URL)
	if u == "" {
		return nil, fmt.Errorf("navigate: missing url")
	}
	return chromedp.Tasks{chromedp.Navigate(u)}, nil
}

// openPage reuses the single debug page; a blank url opens nothing.
func openPage(d journey.ActionDetail) (chromedp.Tasks, error) {
	u := NormalizeURL(d.URL)
	if u == "" || u == "about:blank" {
		return chromedp.Tasks{}, nil
	}
	return chromedp.Tasks{chromedp.Navigate(u)}, nil
}

func click(d journey.ActionDetail) (chromedp.Tasks, error) {
	sel, by, err := target(d)
	if err != nil {
		return nil, err
	}
	count := max(d.ClickCount, 1)
	if d.Button == "" || d.Button == "left" {
		if count >= 2 {
			return chromedp.Tasks{chromedp.DoubleClick(sel, by, chromedp.NodeVisible)}, nil
		}
		return chromedp.Tasks{chromedp.Click(sel, by, chromedp.NodeVisible)}, nil
	}
	return chromedp.Tasks{
		chromedp.QueryAfter(sel, func(ctx context.Context, _ runtime.ExecutionContextID, nodes ...*cdp.Node) error {
			if len(nodes) == 0 {
				return fmt.Errorf("click: no node matches %q", d.Selector)
			}
			return chromedp.MouseClickNode(nodes[0], chromedp.Button(d.Button), chromedp.ClickCount(count)).Do(ctx)
		}, by, chromedp.NodeVisible),
	}, nil
}

func dblclick(d journey.ActionDetail) (chromedp.Tasks, error) {
	d.ClickCount = 2
	return click(d)
}

func fill(d journey.ActionDetail) (chromedp.Tasks, error) {
	sel, by, err := target(d)
	if err != nil {
		return nil, err
	}
	return chromedp.Tasks{
		chromedp.WaitVisible(sel, by),
		chromedp.SetValue(sel, "", by),
		chromedp.SendKeys(sel, d.Text, by),
	}, nil
}

var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
}

// KeyText maps a recorder key name to the text chromedp sends for it.
func KeyText(key string) string {
	if k, ok := namedKeys[key]; ok {
		return k
	}
	return key
}

func press(d journey.ActionDetail) (chromedp.Tasks, error) {
	if d.Key == "" {
		return nil, fmt.Errorf("press: missing key")
	}
	key := KeyText(d.Key)
	if strings.TrimSpace(d.Selector) == "" {
		return chromedp.Tasks{chromedp.KeyEvent(key)}, nil
	}
	sel, by := Selector(d.Selector)
	return chromedp.Tasks{chromedp.SendKeys(sel, key, by)}, nil
}

func setChecked(want bool) handler {
	return func(d journey.ActionDetail) (chromedp.Tasks, error) {
		sel, by, err := target(d)
		if err != nil {
			return nil, err
		}
		return chromedp.Tasks{
			chromedp.WaitVisible(sel, by),
			chromedp.ActionFunc(func(ctx context.Context) error {
				var checked bool
				if err := chromedp.JavascriptAttribute(sel, "checked", &checked, by).Do(ctx); err != nil {
					return err
				}
				if checked == want {
					return nil
				}
				return chromedp.Click(sel, by).Do(ctx)
			}),
		}, nil
	}
}

func selectOption(d journey.ActionDetail) (chromedp.Tasks, error) {
	sel, by, err := target(d)
	if err != nil {
		return nil, err
	}
	if len(d.Options) == 0 {
		return nil, fmt.Errorf("select: no option given")
	}
	return chromedp.Tasks{chromedp.SetValue(sel, d.Options[0], by)}, nil
}

func setInputFiles(d journey.ActionDetail) (chromedp.Tasks, error) {
	sel, by, err := target(d)
	if err != nil {
		return nil, err
	}
	return chromedp.Tasks{chromedp.SetUploadFiles(sel, d.Files, by)}, nil
}

func assertText(d journey.ActionDetail) (chromedp.Tasks, error) {
	sel, by, err := target(d)
	if err != nil {
		return nil, err
	}
	var got string
	return chromedp.Tasks{
		chromedp.Text(sel, &got, by, chromedp.NodeVisible),
		chromedp.ActionFunc(func(context.Context) error {
			if !strings.Contains(got, d.Text) {
				return fmt.Errorf("%w: %s text %q does not contain %q", ErrAssertion, d.Selector, got, d.Text)
			}
			return nil
		}),
	}, nil
}

func assertValue(d journey.ActionDetail) (chromedp.Tasks, error) {
	sel, by, err := target(d)
	if err != nil {
		return nil, err
	}
	var got string
	return chromedp.Tasks{
		chromedp.Value(sel, &got, by),
		chromedp.ActionFunc(func(context.Context) error {
			if got != d.Value {
				return fmt.Errorf("%w: %s value %q; want %q", ErrAssertion, d.Selector, got, d.Value)
			}
			return nil
		}),
	}, nil
}

func assertVisible(d journey.ActionDetail) (chromedp.Tasks, error) {
	sel, by, err := target(d)
	if err != nil {
		return nil, err
	}
	return chromedp.Tasks{chromedp.WaitVisible(sel, by)}, nil
}

func assertChecked(d journey.ActionDetail) (chromedp.Tasks, error) {
	sel, by, err := target(d)
	if err != nil {
		return nil, err
	}
	var checked bool
	return chromedp.Tasks{
		chromedp.JavascriptAttribute(sel, "checked", &checked, by),
		chromedp.ActionFunc(func(context.Context) error {
			if !checked {
				return fmt.Errorf("%w: %s is not checked", ErrAssertion, d.Selector)
			}
			return nil
		}),
	}, nil
}
