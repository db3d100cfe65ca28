// Package service talks to the server's gRPC side channel. Only the
// standard health protocol is exposed there; project traffic goes over
// HTTP and the room socket.
package service

import (
	"context"
)

type HealthService interface {
	Close() error
	// Check returns the serving status reported by the server, e.g. "SERVING".
	Check(ctx context.Context) (string, error)
}
