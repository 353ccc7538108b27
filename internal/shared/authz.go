package shared

import (
	"context"
	"strings"
)

// Actor identifies the authenticated caller and its tenant.
type Actor struct {
	ID         int64
	BusinessID int64
	Name       string
}

// Decision is the result of an authorization check.
type Decision struct {
	Authorised bool
	Actor      Actor
}

// Authorizer resolves the caller identity and permission for an operation.
// The concrete implementation (sessions, OAuth, service tokens) lives
// outside this module; the core only consumes the allow/deny decision.
type Authorizer interface {
	Authorise(ctx context.Context, token, permission string) (Decision, error)
}

// StaticTokenAuthorizer grants one fixed actor per token. Used for wiring
// and local development; production deployments plug in the real gateway.
type StaticTokenAuthorizer struct {
	tokens map[string]Actor
}

// NewStaticTokenAuthorizer builds an authorizer from a token -> actor map.
func NewStaticTokenAuthorizer(tokens map[string]Actor) *StaticTokenAuthorizer {
	return &StaticTokenAuthorizer{tokens: tokens}
}

// Authorise grants any permission to a known token.
func (a *StaticTokenAuthorizer) Authorise(_ context.Context, token, _ string) (Decision, error) {
	if a == nil {
		return Decision{}, nil
	}
	actor, ok := a.tokens[strings.TrimSpace(token)]
	if !ok {
		return Decision{}, nil
	}
	return Decision{Authorised: true, Actor: actor}, nil
}
