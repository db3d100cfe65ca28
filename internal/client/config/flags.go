package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the server
//	-t string   token file
//	-w string   sandbox working directory
//	-p int      preview timeout in seconds
//	-g string   gRPC health address
//
// os.Args is filtered with flagx.FilterArgs first so unrelated flags are
// left alone.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-w", "-p", "-g"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the server")
	fs.StringVar(&cfg.TokenFile, "t", cfg.TokenFile, "file the session token is stored in")
	fs.StringVar(&cfg.WorkDir, "w", cfg.WorkDir, "sandbox working directory")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "address of the grpc health endpoint")
	previewTimeout := fs.Int("p", int(cfg.PreviewTimeout.Seconds()), "preview timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.PreviewTimeout = time.Duration(*previewTimeout) * time.Second
}
