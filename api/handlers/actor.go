package handlers

import (
	"context"
	"net/http"
	"strings"

	"aegis-grc/core/rbac"
	"aegis-grc/core/workflow"
)

type actorKey struct{}

func WithActor(ctx context.Context, actor workflow.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user attached by the middleware. Requests
// without actor headers act as an anonymous employee.
func ActorFrom(r *http.Request) workflow.Actor {
	if actor, ok := r.Context().Value(actorKey{}).(workflow.Actor); ok {
		return actor
	}
	return workflow.Actor{Name: "anonymous", Role: rbac.RoleEmployee}
}

// ActorFromHeaders builds the actor from the X-Actor-* headers the edge
// proxy sets after authentication.
func ActorFromHeaders(r *http.Request) workflow.Actor {
	actor := workflow.Actor{
		ID:         strings.TrimSpace(r.Header.Get("X-Actor-Id")),
		Name:       strings.TrimSpace(r.Header.Get("X-Actor-Name")),
		Role:       strings.TrimSpace(r.Header.Get("X-Actor-Role")),
		Department: strings.TrimSpace(r.Header.Get("X-Actor-Department")),
	}
	if actor.Name == "" {
		actor.Name = "anonymous"
	}
	if actor.Role == "" {
		actor.Role = rbac.RoleEmployee
	}
	return actor
}
