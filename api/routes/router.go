package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkellerhals/sourcelane-backend/api/controllers"
	"github.com/mkellerhals/sourcelane-backend/api/middleware"
	"github.com/mkellerhals/sourcelane-backend/internal/extraction"
	"github.com/mkellerhals/sourcelane-backend/internal/fulfillment"
	"github.com/mkellerhals/sourcelane-backend/pkg/config"
	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
)

// RouterParams carries everything the API surface depends on. Pingers may be
// nil when the deployment runs without that dependency.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              controllers.Pinger
	Redis           controllers.Pinger
	PubSub          controllers.Pinger
	Imports         extraction.Service
	Fulfillment     fulfillment.Service
	MetricsGatherer prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": params.DB,
			"redis":    params.Redis,
			"pubsub":   params.PubSub,
		}))
	})

	if params.MetricsGatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(params.MetricsGatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/imports", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleOwner), logg))
			r.Post("/preview", controllers.ImportPreview(params.Imports, logg))
			r.Post("/", controllers.ImportCreate(params.Imports, logg))
			r.Post("/async", controllers.ImportAsync(params.Imports, logg))
			r.Get("/jobs/{jobId}", controllers.ImportJobStatus(params.Imports, logg))
			r.Delete("/jobs/{jobId}", controllers.ImportJobCancel(params.Imports, logg))
		})

		r.Route("/dropship-orders", func(r chi.Router) {
			r.Get("/", controllers.DropshipList(params.Fulfillment, logg))
			r.Get("/{orderId}", controllers.DropshipDetail(params.Fulfillment, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleOperator), logg))
				r.Post("/", controllers.DropshipCreateFromOrder(params.Fulfillment, logg))
				r.Patch("/{orderId}/status", controllers.DropshipUpdateStatus(params.Fulfillment, logg))
				r.Post("/{orderId}/tracking", controllers.DropshipAddTracking(params.Fulfillment, logg))
				r.Post("/{orderId}/place", controllers.DropshipMarkPlaced(params.Fulfillment, logg))
				r.Post("/{orderId}/ship", controllers.DropshipMarkShipped(params.Fulfillment, logg))
				r.Post("/{orderId}/deliver", controllers.DropshipMarkDelivered(params.Fulfillment, logg))
				r.Post("/{orderId}/issues", controllers.DropshipReportIssue(params.Fulfillment, logg))
			})
		})
	})

	return r
}
