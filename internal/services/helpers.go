package services

import (
	"context"
	"strings"

	"github.com/charlesng35/erprbac/internal/auditctx"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// likeEscape must match the ESCAPE clause of every text filter query.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// likePattern builds a case-insensitive substring pattern for LOWER(column) LIKE ? ESCAPE '!'.
// Wildcards in query match literally.
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
}

func actorID(ctx context.Context) *string {
	actor, ok := auditctx.FromContext(ctx)
	if !ok {
		return nil
	}
	id := strings.TrimSpace(actor.ID)
	if id == "" {
		return nil
	}
	return &id
}

func stringPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
