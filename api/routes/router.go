package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/viylo-storefront/api/controllers"
	"github.com/angelmondragon/viylo-storefront/api/middleware"
	"github.com/angelmondragon/viylo-storefront/internal/catalog"
	"github.com/angelmondragon/viylo-storefront/internal/orders"
	"github.com/angelmondragon/viylo-storefront/pkg/config"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/angelmondragon/viylo-storefront/pkg/redis"
)

// Dependencies are the optional collaborators of the router. Nil values
// disable the routes or checks that need them.
type Dependencies struct {
	Archive     orders.Repository
	Idempotency redis.IdempotencyStore
	Readiness   map[string]controllers.Pinger
	Metrics     http.Handler
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	cat *catalog.Catalog,
	sessions controllers.SessionProvider,
	deps Dependencies,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", controllers.CatalogList(cat, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Get("/storefront", controllers.StorefrontView(sessions, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(sessions, logg))
				r.Delete("/", controllers.CartClear(sessions, logg))
				r.Put("/selection/{itemId}", controllers.SelectionSet(sessions, logg))
				r.Post("/selection/{itemId}/bump", controllers.SelectionBump(sessions, logg))
				r.Post("/selection/{itemId}/add", controllers.SelectionAdd(sessions, logg))
				r.Post("/items", controllers.CartAddItem(sessions, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(sessions, logg))
			})

			r.Route("/checkout/widget", func(r chi.Router) {
				r.Get("/", controllers.WidgetFetch(sessions, logg))
				r.Post("/capture", controllers.WidgetCapture(sessions, logg))
				r.Post("/error", controllers.WidgetError(sessions, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderSubmit(sessions, logg))
				r.Post("/confirmation/dismiss", controllers.OrderConfirmationDismiss(sessions, logg))
			})
		})
	})

	// archived orders carry customer contact details; never exposed in prod
	if deps.Archive != nil && !cfg.App.IsProd() {
		r.Route("/api/admin/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.ArchiveList(deps.Archive, logg))
			r.Get("/{orderId}", controllers.ArchiveDetail(deps.Archive, logg))
		})
	}

	return r
}
