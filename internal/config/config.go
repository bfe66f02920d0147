// Package config loads user configuration from a key=value file under
// the XDG config dir, with environment variable fallbacks. A .env file
// in the working directory is honored for the API key.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config keys.
const (
	KeyAPIBaseURL   = "api-base-url"
	KeyDefaultModel = "default-model"
	KeyOptimize     = "optimize"
	KeyStorePath    = "store-path"
)

// Environment variables.
const (
	EnvAPIKey     = "OPENAI_API_KEY"
	EnvAPIBaseURL = "VOXPIPE_API_BASE_URL"
	EnvStorePath  = "VOXPIPE_STORE_PATH"
)

// Config holds user settings. Zero values mean "use the built-in
// default".
type Config struct {
	APIKey       string
	APIBaseURL   string
	DefaultModel string
	Optimize     bool
	StorePath    string
}

func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "voxpipe"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "voxpipe"), nil
}

func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// Load reads the config file and environment. Precedence: environment
// variables, then config file values, then defaults. A missing config
// file is not an error.
func Load() (Config, error) {
	// Best effort: a missing .env file is fine.
	_ = godotenv.Load()

	cfg := Config{Optimize: true, DefaultModel: "gpt-4o-mini"}

	p, err := path()
	if err != nil {
		return cfg, err
	}

	if data, err := parseFile(p); err == nil {
		if v, ok := data[KeyAPIBaseURL]; ok {
			cfg.APIBaseURL = v
		}
		if v, ok := data[KeyDefaultModel]; ok {
			cfg.DefaultModel = v
		}
		if v, ok := data[KeyOptimize]; ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid %s value %q", KeyOptimize, v)
			}
			cfg.Optimize = parsed
		}
		if v, ok := data[KeyStorePath]; ok {
			cfg.StorePath = v
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.APIKey = os.Getenv(EnvAPIKey)
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.StorePath = v
	}

	return cfg, nil
}

// parseFile reads a key=value config file. One pair per line, # starts
// a comment, empty lines are ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid syntax at line %d: %q", lineNum, line)
		}
		data[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return data, nil
}

// Save writes a single key=value pair, creating the config directory and
// file if needed. Existing pairs are preserved, comments are not.
func Save(key, value string) error {
	p, err := path()
	if err != nil {
		return err
	}

	data, err := parseFile(p)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if data == nil {
		data = make(map[string]string)
	}
	data[key] = value

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	var b strings.Builder
	for _, k := range sortedKeys(data) {
		fmt.Fprintf(&b, "%s=%s\n", k, data[k])
	}
	if err := os.WriteFile(p, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func sortedKeys(data map[string]string) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
