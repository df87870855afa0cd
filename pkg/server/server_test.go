package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abgdnv/bazaar/pkg/config"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func Test_NewChiRouter_RecoversPanics(t *testing.T) {
	// given
	mux := NewChiRouter(slog.New(slog.DiscardHandler))
	mux.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	// when
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	// then
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func Test_NewChiRouter_AssignsRequestID(t *testing.T) {
	mux := NewChiRouter(slog.New(slog.DiscardHandler))
	var reqID string
	mux.Get("/", func(w http.ResponseWriter, r *http.Request) {
		reqID = middleware.GetReqID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, reqID)
	assert.Equal(t, reqID, rec.Header().Get(middleware.RequestIDHeader))
}

func Test_NewHTTPServer(t *testing.T) {
	var cfg config.HTTPConfig
	cfg.Port = 8080
	cfg.MaxHeaderBytes = 1 << 20
	cfg.Timeout.Read = time.Second
	cfg.Timeout.Write = 2 * time.Second
	cfg.Timeout.Idle = 3 * time.Second
	cfg.Timeout.ReadHeader = time.Second

	srv := NewHTTPServer(cfg, http.NotFoundHandler(), "storefront")

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
	assert.Equal(t, 1<<20, srv.MaxHeaderBytes)
	assert.NotNil(t, srv.Handler)
}

type panickingHealth struct {
	healthpb.UnimplementedHealthServer
}

func (panickingHealth) Check(context.Context, *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	panic("boom")
}

func Test_NewGRPCServer_RecoversPanics(t *testing.T) {
	// given
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(slog.New(slog.DiscardHandler), false, func(s *grpc.Server) {
		healthpb.RegisterHealthServer(s, panickingHealth{})
	})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// when
	_, err = healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})

	// then
	assert.Equal(t, codes.Internal, status.Code(err))
}
