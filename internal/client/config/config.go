package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the coderoom terminal client.
//
// Fields:
//   - ServerURL: base URL of the HTTP API; the socket lives at ServerURL + "/socket".
//   - TokenFile: where the session token is kept between runs.
//   - WorkDir: directory the sandbox mounts project files into.
//   - PreviewTimeout: how long `run` waits for the start step to print a URL.
//   - HealthAddr: host:port of the server's gRPC health endpoint.
type Config struct {
	ServerURL      string
	TokenFile      string
	WorkDir        string
	PreviewTimeout time.Duration
	HealthAddr     string
}

// LoadDefaults populates c with sensible defaults. Paths are rooted in the
// user's home directory, falling back to the current one.
func (c *Config) LoadDefaults() {
	base, err := os.UserHomeDir()
	if err != nil {
		base = "."
	}
	c.ServerURL = "http://127.0.0.1:3000"
	c.TokenFile = filepath.Join(base, ".coderoom", "token")
	c.WorkDir = filepath.Join(base, ".coderoom", "workspace")
	c.PreviewTimeout = 2 * time.Minute
	c.HealthAddr = "127.0.0.1:50051"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
