package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ProjectAnchor/internal/auth"
	"ProjectAnchor/internal/bridge"
	"ProjectAnchor/internal/ledger"
	"ProjectAnchor/internal/observability/metrics"
	"ProjectAnchor/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Server 负责暴露 REST 接口。
type Server struct {
	addr            string
	host            *ledger.Host
	bridge          *bridge.Service
	auth            *auth.Service
	metrics         *metrics.Metrics
	defaultSender   string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

// Option 定义可选配置。
type Option func(*Server)

// WithBridge 启用桥接接口。
func WithBridge(svc *bridge.Service) Option {
	return func(s *Server) {
		s.bridge = svc
	}
}

// WithAuth 启用身份认证中间件。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// WithMetrics 记录请求指标并暴露 /metrics。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDefaultSender 指定未启用认证时的调用方身份。
func WithDefaultSender(sender string) Option {
	return func(s *Server) {
		if sender != "" {
			s.defaultSender = sender
		}
	}
}

// WithTimeouts 设置读写与关闭超时，零值保持默认。
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, host *ledger.Host, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		host:            host,
		defaultSender:   "operator",
		readTimeout:     15 * time.Second,
		writeTimeout:    15 * time.Second,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "POST /api/v1/instantiate", "instantiate", s.handleInstantiate)
	s.route(mux, "POST /api/v1/execute", "execute", s.handleExecute)
	s.route(mux, "POST /api/v1/query", "query", s.handleQuery)
	s.route(mux, "GET /api/v1/config", "config", s.handleConfig)
	s.route(mux, "GET /api/v1/anchors/{type}/{hash}", "verify", s.handleVerify)
	s.route(mux, "POST /api/v1/payloads", "payload_build", s.handleBuildPayload)
	s.route(mux, "POST /api/v1/payloads/verify", "payload_verify", s.handleVerifyPayload)
	if s.bridge != nil {
		s.route(mux, "POST /api/v1/bridge/anchors", "bridge_anchor", s.handleBridgeAnchor)
		s.route(mux, "GET /api/v1/bridge/receipts", "bridge_list", s.handleListReceipts)
		s.route(mux, "GET /api/v1/bridge/stats", "bridge_stats", s.handleReceiptStats)
		s.route(mux, "GET /api/v1/bridge/receipts/{id}", "bridge_receipt", s.handleReceiptDetail)
		s.route(mux, "GET /api/v1/bridge/receipts/{id}/verify", "bridge_verify", s.handleVerifyReceipt)
	}
	mux.Handle("GET /healthz", s.instrument("healthz", http.HandlerFunc(s.handleHealth)))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if s.auth != nil {
		h = s.auth.Middleware(auth.MiddlewareConfig{
			RequiredPermissions: map[string][]string{
				http.MethodPost: {auth.PermissionWrite},
				"*":             {auth.PermissionRead},
			},
			AuditEvent: name,
		})(h)
	}
	mux.Handle(pattern, s.instrument(name, h))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.L().Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) sender(r *http.Request) string {
	if sender := auth.SenderFromContext(r.Context()); sender != "" {
		return sender
	}
	return s.defaultSender
}

func (s *Server) instrument(name string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.metrics.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeJSON(w, http.StatusServiceUnavailable, errorBody("SHUTTING_DOWN", "服务已关闭"))
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
