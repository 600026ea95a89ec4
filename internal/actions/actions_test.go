package actions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chromedp/chromedp/kb"

	"github.com/dgnsrekt/journey_agent/internal/journey"
)

func act(d journey.ActionDetail) journey.Action {
	return journey.Action{Action: d}
}

func TestBuildSupportedActions(t *testing.T) {
	tests := []struct {
		name      string
		detail    journey.ActionDetail
		wantTasks int
	}{
		{name: "navigate", detail: journey.ActionDetail{Name: "navigate", URL: "https://example.com"}, wantTasks: 1},
		{name: "openPage blank", detail: journey.ActionDetail{Name: "openPage", URL: "about:blank"}, wantTasks: 0},
		{name: "openPage", detail: journey.ActionDetail{Name: "openPage", URL: "example.com"}, wantTasks: 1},
		{name: "closePage", detail: journey.ActionDetail{Name: "closePage"}, wantTasks: 0},
		{name: "click", detail: journey.ActionDetail{Name: "click", Selector: "#buy"}, wantTasks: 1},
		{name: "right click", detail: journey.ActionDetail{Name: "click", Selector: "#buy", Button: "right"}, wantTasks: 1},
		{name: "dblclick", detail: journey.ActionDetail{Name: "dblclick", Selector: "#buy"}, wantTasks: 1},
		{name: "fill", detail: journey.ActionDetail{Name: "fill", Selector: "input[name=q]", Text: "shoes"}, wantTasks: 3},
		{name: "press", detail: journey.ActionDetail{Name: "press", Selector: "input", Key: "Enter"}, wantTasks: 1},
		{name: "press page", detail: journey.ActionDetail{Name: "press", Key: "Escape"}, wantTasks: 1},
		{name: "check", detail: journey.ActionDetail{Name: "check", Selector: "#tos"}, wantTasks: 2},
		{name: "uncheck", detail: journey.ActionDetail{Name: "uncheck", Selector: "#tos"}, wantTasks: 2},
		{name: "select", detail: journey.ActionDetail{Name: "select", Selector: "select", Options: []string{"blue"}}, wantTasks: 1},
		{name: "setInputFiles", detail: journey.ActionDetail{Name: "setInputFiles", Selector: "input[type=file]", Files: []string{"/tmp/a.png"}}, wantTasks: 1},
		{name: "assertText", detail: journey.ActionDetail{Name: "assertText", Selector: "h1", Text: "Hi"}, wantTasks: 2},
		{name: "assertValue", detail: journey.ActionDetail{Name: "assertValue", Selector: "input", Value: "x"}, wantTasks: 2},
		{name: "assertVisible", detail: journey.ActionDetail{Name: "assertVisible", Selector: "h1"}, wantTasks: 1},
		{name: "assertChecked", detail: journey.ActionDetail{Name: "assertChecked", Selector: "#tos"}, wantTasks: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := Build(act(tt.detail))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if len(tasks) != tt.wantTasks {
				t.Fatalf("len(Build()) = %d; want %d", len(tasks), tt.wantTasks)
			}
		})
	}
}

func TestBuildRejects(t *testing.T) {
	tests := []struct {
		name    string
		detail  journey.ActionDetail
		wantErr error
	}{
		{name: "unknown", detail: journey.ActionDetail{Name: "teleport"}, wantErr: ErrUnsupportedAction},
		{name: "click without selector", detail: journey.ActionDetail{Name: "click"}, wantErr: ErrMissingSelector},
		{name: "fill without selector", detail: journey.ActionDetail{Name: "fill", Text: "x"}, wantErr: ErrMissingSelector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(act(tt.detail)); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v; want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Build(act(journey.ActionDetail{Name: "navigate"})); err == nil {
		t.Fatal("Build(navigate without url) = nil error")
	}
	if _, err := Build(act(journey.ActionDetail{Name: "press", Selector: "input"})); err == nil {
		t.Fatal("Build(press without key) = nil error")
	}
	if _, err := Build(act(journey.ActionDetail{Name: "select", Selector: "select"})); err == nil {
		t.Fatal("Build(select without options) = nil error")
	}
}

func TestNormalizeURL(t *testing.T) {
	local := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(local, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	tests := []struct {
		in, want string
	}{
		{in: "https://example.com", want: "https://example.com"},
		{in: "http://example.com", want: "http://example.com"},
		{in: "example.com/path", want: "http://example.com/path"},
		{in: "about:blank", want: "about:blank"},
		{in: "file:///tmp/x.html", want: "file:///tmp/x.html"},
		{in: local, want: "file://" + local},
		{in: "  ", want: ""},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Fatalf("NormalizeURL(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestSelector(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "#buy", want: "#buy"},
		{in: "css=div > a", want: "div > a"},
		{in: "xpath=//button[1]", want: "//button[1]"},
		{in: "//button[1]", want: "//button[1]"},
		{in: "(//button)[2]", want: "(//button)[2]"},
		{in: `text="Sign in"`, want: "Sign in"},
	}
	for _, tt := range tests {
		got, by := Selector(tt.in)
		if got != tt.want {
			t.Fatalf("Selector(%q) = %q; want %q", tt.in, got, tt.want)
		}
		if by == nil {
			t.Fatalf("Selector(%q) returned nil query option", tt.in)
		}
	}
}

func TestKeyText(t *testing.T) {
	if got := KeyText("Enter"); got != kb.Enter {
		t.Fatalf("KeyText(Enter) = %q; want kb.Enter", got)
	}
	if got := KeyText("a"); got != "a" {
		t.Fatalf("KeyText(a) = %q; want %q", got, "a")
	}
}

func TestSupportedIsSorted(t *testing.T) {
	names := Supported()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Supported() not sorted at %d: %v", i, names)
		}
	}
	if len(names) != len(handlers) {
		t.Fatalf("len(Supported()) = %d; want %d", len(names), len(handlers))
	}
}
