package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/viylo-storefront/api/middleware"
	"github.com/angelmondragon/viylo-storefront/internal/storefront"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
)

// SessionProvider resolves the shopper session for a request.
type SessionProvider interface {
	Session(ctx context.Context, id string) (*storefront.Session, error)
}

func sessionFromRequest(r *http.Request, sessions SessionProvider) (*storefront.Session, error) {
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable")
	}
	id := middleware.SessionIDFromContext(r.Context())
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id missing")
	}
	s, err := sessions.Session(r.Context(), id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open session")
	}
	return s, nil
}
