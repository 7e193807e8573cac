package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	"ProjectAnchor/pkg/logger"
)

// Service resolves bearer tokens to sender identities.
type Service struct {
	mode     Mode
	operator *Subject
	tokens   map[string]*Subject
	audit    *slog.Logger
}

// NewService builds the resolver from static configuration.
func NewService(cfg Config) *Service {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeDisabled
	}
	readOnly := make(map[string]struct{}, len(cfg.ReadOnly))
	for _, sender := range cfg.ReadOnly {
		readOnly[strings.TrimSpace(sender)] = struct{}{}
	}

	tokens := make(map[string]*Subject, len(cfg.Tokens))
	for token, sender := range cfg.Tokens {
		token = strings.TrimSpace(token)
		sender = strings.TrimSpace(sender)
		if token == "" || sender == "" {
			continue
		}
		perms := []string{PermissionRead, PermissionWrite}
		if _, ok := readOnly[sender]; ok {
			perms = []string{PermissionRead}
		}
		subject := &Subject{Sender: sender, Permissions: perms}
		subject.normalise()
		tokens[token] = subject
	}

	operator := &Subject{Sender: strings.TrimSpace(cfg.Operator), Permissions: []string{PermissionRead, PermissionWrite}}
	if operator.Sender == "" {
		operator.Sender = "operator"
	}
	operator.normalise()

	return &Service{mode: mode, operator: operator, tokens: tokens, audit: logger.Audit()}
}

// Mode returns the configured provider.
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest resolves the Authorization header. With auth disabled
// every request acts as the operator.
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	if s == nil || s.mode == ModeDisabled {
		if s == nil {
			return nil, ErrInvalidToken
		}
		return s.operator, nil
	}
	token, ok := bearerToken(authorization)
	if !ok {
		return nil, ErrMissingToken
	}
	for candidate, subject := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return subject, nil
		}
	}
	return nil, ErrInvalidToken
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
