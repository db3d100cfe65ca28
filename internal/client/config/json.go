package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/coderoom/internal/flagx"
	"github.com/dmitrijs2005/coderoom/internal/timex"
	"github.com/tidwall/jsonc"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Empty
// strings and a zero timeout leave the current values in place.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	TokenFile      string         `json:"token_file"`
	WorkDir        string         `json:"work_dir"`
	PreviewTimeout timex.Duration `json:"preview_timeout"`
	HealthAddr     string         `json:"health_addr"`
}

// parseJson overlays Config with values loaded from the file named by -c
// or -config. Read or unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.TokenFile != "" {
		cfg.TokenFile = jc.TokenFile
	}
	if jc.WorkDir != "" {
		cfg.WorkDir = jc.WorkDir
	}
	if jc.HealthAddr != "" {
		cfg.HealthAddr = jc.HealthAddr
	}
	if jc.PreviewTimeout.Duration > 0 {
		cfg.PreviewTimeout = jc.PreviewTimeout.Duration
	}
}
