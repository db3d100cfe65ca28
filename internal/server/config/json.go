package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/coderoom/internal/flagx"
	"github.com/dmitrijs2005/coderoom/internal/timex"
	"github.com/tidwall/jsonc"
)

// JsonConfig mirrors Config for JSON files. Durations accept "24h" as well
// as integer nanoseconds. Pointer fields distinguish "absent" from a zero
// value, so a partial file only overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP      *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC      *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN           *string         `json:"database_dsn"`
	SecretKey             *string         `json:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	RevocationBackend     *string         `json:"revocation_backend"`
	AIAPIKey              *string         `json:"ai_api_key"`
	AIModel               *string         `json:"ai_model"`
	AIBaseURL             *string         `json:"ai_base_url"`
	AIRequestsPerMinute   *int            `json:"ai_requests_per_minute"`
	AITimeout             *timex.Duration `json:"ai_timeout"`
	AIErrorBroadcast      *bool           `json:"ai_error_broadcast"`
	CORSOrigin            *string         `json:"cors_origin"`
	StaticDir             *string         `json:"static_dir"`
	S3Enabled             *bool           `json:"s3_enabled"`
	S3RootUser            *string         `json:"s3_root_user"`
	S3RootPassword        *string         `json:"s3_root_password"`
	S3Bucket              *string         `json:"s3_bucket"`
	S3Region              *string         `json:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the file named by -c / -config. Comments
// and trailing commas are allowed. Without the flag nothing happens; an
// unreadable or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(jsonc.ToJSON(file), c); err != nil {
		panic(err)
	}

	set(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)
	set(&config.RevocationBackend, c.RevocationBackend)
	set(&config.AIAPIKey, c.AIAPIKey)
	set(&config.AIModel, c.AIModel)
	set(&config.AIBaseURL, c.AIBaseURL)
	set(&config.AIRequestsPerMinute, c.AIRequestsPerMinute)
	set(&config.AIErrorBroadcast, c.AIErrorBroadcast)
	set(&config.CORSOrigin, c.CORSOrigin)
	set(&config.StaticDir, c.StaticDir)
	set(&config.S3Enabled, c.S3Enabled)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.AITimeout != nil {
		config.AITimeout = c.AITimeout.Duration
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
