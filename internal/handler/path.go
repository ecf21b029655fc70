package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/auth"
)

// idFromPath parses the {id} segment. A malformed id is reported as notFound.
func idFromPath(r *http.Request, notFound *AppError) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

func actorFromContext(r *http.Request) (uuid.UUID, *AppError) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrMissingToken
	}
	return id, nil
}
