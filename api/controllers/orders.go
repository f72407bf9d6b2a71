package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/viylo-storefront/api/responses"
	"github.com/angelmondragon/viylo-storefront/api/validators"
	"github.com/angelmondragon/viylo-storefront/internal/orders"
	"github.com/angelmondragon/viylo-storefront/internal/storefront"
	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/angelmondragon/viylo-storefront/pkg/pagination"
)

type orderRequest struct {
	Name    string `json:"name" validate:"max=200"`
	Email   string `json:"email" validate:"max=254"`
	Phone   string `json:"phone" validate:"max=40"`
	Company string `json:"company" validate:"max=200"`
	Notes   string `json:"notes" validate:"max=2000"`
}

func (r orderRequest) customer() orders.Customer {
	return orders.Customer{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Company: r.Company,
		Notes:   r.Notes,
	}
}

type orderResponse struct {
	OrderID      string                   `json:"order_id"`
	OrderLines   []string                 `json:"order_lines"`
	Total        string                   `json:"total"`
	Currency     string                   `json:"currency"`
	Archived     bool                     `json:"archived"`
	Confirmation *storefront.Confirmation `json:"confirmation,omitempty"`
}

// OrderSubmit sends the session cart to the seller. Required customer fields are
// checked by the submission coordinator so the empty-cart check comes first.
func OrderSubmit(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := s.SubmitOrder(r.Context(), payload.customer())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orderResponse{
			OrderID:      result.OrderID,
			OrderLines:   result.Payload.Lines,
			Total:        result.Payload.Total.StringFixed(2),
			Currency:     result.Payload.Currency,
			Archived:     result.Archived,
			Confirmation: s.Confirmation(),
		})
	}
}

func OrderConfirmationDismiss(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		s.DismissConfirmation()
		w.WriteHeader(http.StatusNoContent)
	}
}

// ArchiveList pages through archived orders, newest first.
func ArchiveList(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "order archive not configured"))
			return
		}
		limit, err := validators.QueryInt(r, "limit", pagination.DefaultLimit, validators.IntRange{Min: 1, Max: pagination.MaxLimit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := validators.QueryToken(r, "cursor", pagination.MaxCursorLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := pagination.Decode(cursor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := repo.List(r.Context(), pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list archived orders"))
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ArchiveDetail returns every archived order with the given id.
func ArchiveDetail(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "order archive not configured"))
			return
		}
		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}
		rows, err := repo.FindByOrderID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find archived order"))
			return
		}
		if len(rows) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
