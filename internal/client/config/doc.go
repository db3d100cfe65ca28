// Package config loads runtime configuration for the coderoom client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the coderoom server
//	-t string   token file path
//	-w string   sandbox working directory
//	-p int      preview wait timeout (seconds)
//	-g string   gRPC health address (host:port)
//
// # JSON schema
//
// Comments are allowed. Durations are timex.Duration, so "90s" and integer
// nanoseconds both work:
//
//	{
//	  "server_url": "http://127.0.0.1:3000",
//	  "token_file": "/home/me/.coderoom/token",
//	  "work_dir": "/tmp/coderoom",
//	  "preview_timeout": "2m",
//	  "health_addr": "127.0.0.1:50051"
//	}
package config
