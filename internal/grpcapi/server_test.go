package grpcapi

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/fidde/codesnip/internal/complexity"
	"github.com/fidde/codesnip/internal/logging"
)

type estimatorFunc func(string) complexity.Estimate

func (f estimatorFunc) Analyze(code string) complexity.Estimate { return f(code) }

func startServer(t *testing.T) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer("", estimatorFunc(complexity.EstimateComplexity), logging.Discard())
	go srv.Serve(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewClient(conn)
}

func TestEstimate(t *testing.T) {
	client := startServer(t)
	ctx := context.Background()

	out, err := client.Estimate(ctx, "for (let i = 0; i < n; i++) {\n  for (let j = 0; j < n; j++) { x++; }\n}")
	require.NoError(t, err)

	fields := out.GetFields()
	assert.Equal(t, "O(n²)", fields["complexity"].GetStringValue())
	assert.Greater(t, fields["confidence"].GetNumberValue(), 0.0)
	assert.NotEmpty(t, fields["explanation"].GetStringValue())
	assert.NotNil(t, fields["details"].GetStructValue())
}

func TestEstimateRejectsBadInput(t *testing.T) {
	client := startServer(t)
	ctx := context.Background()

	_, err := client.Estimate(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Estimate(ctx, strings.Repeat("x", MaxCodeBytes+1))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestClasses(t *testing.T) {
	client := startServer(t)

	classes, err := client.Classes(context.Background())
	require.NoError(t, err)

	want := make([]string, 0, len(complexity.Classes()))
	for _, c := range complexity.Classes() {
		want = append(want, string(c))
	}
	assert.Equal(t, want, classes)
}
