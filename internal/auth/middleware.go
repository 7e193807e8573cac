package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// MiddlewareConfig 配置身份认证中间件的行为。
type MiddlewareConfig struct {
	// RequiredPermissions 定义每个 HTTP 方法所需的权限列表，"*" 为兜底。
	RequiredPermissions map[string][]string
	// AuditEvent 指定记录审计日志时使用的事件名称。
	AuditEvent string
}

// Middleware 返回一个 HTTP 中间件，用于处理身份认证和授权。
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := s.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				s.deny(w, r, http.StatusUnauthorized, err, "")
				return
			}
			perms := cfg.RequiredPermissions[r.Method]
			if len(perms) == 0 {
				perms = cfg.RequiredPermissions["*"]
			}
			if err := subject.Authorize(perms...); err != nil {
				status := http.StatusForbidden
				if !errors.Is(err, ErrPermissionDenied) {
					status = http.StatusUnauthorized
				}
				s.deny(w, r, status, err, subject.Sender)
				return
			}

			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r.WithContext(WithSubject(r.Context(), subject)))
			if r.Method == http.MethodGet {
				return
			}
			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			s.audit.Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"sender", subject.Sender,
			)
		})
	}
}

func (s *Service) deny(w http.ResponseWriter, r *http.Request, status int, err error, sender string) {
	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": err.Error()},
	})
	s.audit.Warn("access_denied",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"sender", sender,
	)
}

// auditWriter 是一个包装了 http.ResponseWriter 的结构体，用于捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
