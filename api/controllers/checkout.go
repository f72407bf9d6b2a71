package controllers

import (
	"net/http"

	"github.com/angelmondragon/viylo-storefront/api/responses"
	"github.com/angelmondragon/viylo-storefront/api/validators"
	"github.com/angelmondragon/viylo-storefront/internal/checkout"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
)

const maxPaymentErrorLen = 500

type paymentErrorRequest struct {
	Message string `json:"message" validate:"max=2000"`
}

type captureResponse struct {
	Payment *checkout.Approval `json:"payment"`
	Widget  checkout.View      `json:"widget"`
}

// WidgetFetch returns the payment widget, rendering it if the collaborator has loaded since the last sync.
func WidgetFetch(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, s.Widget(r.Context()))
	}
}

// WidgetCapture completes a browser approval. The cart is left untouched.
func WidgetCapture(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkout.CaptureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		approval, err := s.CapturePayment(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, captureResponse{Payment: approval, Widget: s.Widget(r.Context())})
	}
}

// WidgetError records a payment error raised by the browser SDK.
func WidgetError(sessions SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentErrorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		s.ReportPaymentError(r.Context(), validators.SanitizeString(payload.Message, maxPaymentErrorLen))
		responses.WriteSuccess(w, map[string]any{"notices": s.DrainNotices()})
	}
}
