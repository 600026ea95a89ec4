package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds configuration shared by the controller and the CLI runner.
type Config struct {
	// Control API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// External journey runner
	RunnerCommand string
	RunnerArgs    []string
	RunnerDir     string
	BrowsersPath  string
	ScratchDir    string
	Sandbox       bool

	// Debug browser
	BrowserPath     string
	BrowserProfile  string
	WindowSize      string
	ActionTimeoutMS int

	// Run history
	HistoryDir   string
	HistoryMaxMB int

	NotifyURL string

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:         getEnvOrDefault("JOURNEY_BIND_ADDR", "127.0.0.1:8199"),
		PortCandidates:   getEnvListOrDefault("JOURNEY_PORT_CANDIDATES", []string{"127.0.0.1:8200", "127.0.0.1:8201", "127.0.0.1:8202"}),
		PortAutoFallback: getEnvBoolOrDefault("JOURNEY_PORT_AUTO_FALLBACK", true),
		RunnerCommand:    getEnvOrDefault("JOURNEY_RUNNER_COMMAND", "npx"),
		RunnerArgs:       strings.Fields(getEnvOrDefault("JOURNEY_RUNNER_ARGS", "@elastic/synthetics")),
		RunnerDir:        getEnvOrDefault("JOURNEY_RUNNER_DIR", "."),
		BrowsersPath:     os.Getenv("JOURNEY_BROWSERS_PATH"),
		ScratchDir:       getEnvOrDefault("JOURNEY_SCRATCH_DIR", filepath.Join(os.TempDir(), "journey_agent", "journeys")),
		Sandbox:          getEnvBoolOrDefault("JOURNEY_SANDBOX", true),
		BrowserPath:      os.Getenv("JOURNEY_BROWSER_PATH"),
		BrowserProfile:   os.Getenv("JOURNEY_BROWSER_PROFILE_DIR"),
		WindowSize:       getEnvOrDefault("JOURNEY_WINDOW_SIZE", "1280,800"),
		ActionTimeoutMS:  getEnvIntOrDefault("JOURNEY_ACTION_TIMEOUT_MS", 30000),
		HistoryDir:       getEnvOrDefault("JOURNEY_HISTORY_DIR", "./runs"),
		HistoryMaxMB:     getEnvIntOrDefault("JOURNEY_HISTORY_MAX_MB", 20),
		NotifyURL:        os.Getenv("JOURNEY_NOTIFY_URL"),
		LogLevel:         strings.ToLower(getEnvOrDefault("JOURNEY_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("JOURNEY_LOG_FILE", "logs/journey_controller.log"),
	}
	if cfg.ActionTimeoutMS < 1000 {
		cfg.ActionTimeoutMS = 1000
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
