package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/coderoom/internal/logging"
	servergrpc "github.com/dmitrijs2005/coderoom/internal/server/grpc"
)

func startHealth(t *testing.T) (*servergrpc.HealthServer, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := servergrpc.NewHealthServer(lis.Addr().String(), logging.Nop{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return srv, lis.Addr().String()
}

func TestHealthClientService_Check(t *testing.T) {
	srv, addr := startHealth(t)

	s, err := NewHealthClientService(addr)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	st, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NOT_SERVING", st)

	srv.SetServing(true)
	st, err = s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SERVING", st)
}

func TestHealthClientService_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	s, err := NewHealthClientService(addr)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.callTimeout = 200 * time.Millisecond

	_, err = s.Check(context.Background())
	require.Error(t, err)
	code := status.Code(err)
	assert.True(t, code == codes.Unavailable || code == codes.DeadlineExceeded, "got %v", code)
}
