package auth

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/trainingpay/internal/common"
)

// Outcome is the result of inspecting a request's bearer token. It is either
// Authenticated or Anonymous; authorization decisions are made downstream.
type Outcome interface {
	outcome()
}

type Authenticated struct {
	Subject string
}

type Anonymous struct{}

func (Authenticated) outcome() {}
func (Anonymous) outcome()     {}

// Authenticate turns an Authorization header value into an Outcome. A
// missing, malformed, expired or foreign token yields Anonymous.
func (s *TokenService) Authenticate(header string) Outcome {
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return Anonymous{}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	if token == "" {
		return Anonymous{}
	}

	claimed, err := s.ExtractSubject(token)
	if err != nil {
		return Anonymous{}
	}
	subject, err := s.Validate(token)
	if err != nil || subject != claimed {
		return Anonymous{}
	}
	return Authenticated{Subject: subject}
}

type outcomeKey struct{}

func WithOutcome(ctx context.Context, o Outcome) context.Context {
	return context.WithValue(ctx, outcomeKey{}, o)
}

// OutcomeFromContext returns Anonymous when no outcome was stored.
func OutcomeFromContext(ctx context.Context) Outcome {
	if o, ok := ctx.Value(outcomeKey{}).(Outcome); ok && o != nil {
		return o
	}
	return Anonymous{}
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if a, ok := OutcomeFromContext(ctx).(Authenticated); ok {
		return a.Subject, true
	}
	return "", false
}
