package controllers

import (
	"net/http"

	"github.com/angelmondragon/viylo-storefront/api/responses"
	"github.com/angelmondragon/viylo-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
)

type catalogResponse struct {
	Currency string         `json:"currency"`
	Items    []catalog.Item `json:"items"`
}

// CatalogList returns the fixed service catalog.
func CatalogList(cat *catalog.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, catalogResponse{Currency: cat.Currency(), Items: cat.Items()})
	}
}

// StorefrontView returns the whole session view and drains its notices.
func StorefrontView(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, s.View(r.Context()))
	}
}
