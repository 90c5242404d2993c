package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shipment-tracker/internal/http/handlers"
	obs "shipment-tracker/internal/http/middleware"
	"shipment-tracker/internal/http/middleware/ratelimit"
	"shipment-tracker/internal/logx"
)

// requestTimeout bounds plain request/response routes. Streams are exempt.
const requestTimeout = 5 * time.Second

// Deps lists the handlers mounted by New.
type Deps struct {
	Logger    logx.Logger
	Base      *handlers.Handlers
	Shipments *handlers.ShipmentHandler
	Locations *handlers.LocationHandler
	Codes     *handlers.TrackingCodeHandler
	Routes    *handlers.RouteHandler
	Streams   *handlers.StreamHandler
	RateLimit *ratelimit.Middleware
	Metrics   http.Handler
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logx.Nop()
	}
	metricsHandler := d.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	limit := func(next http.Handler) http.Handler { return next }
	if d.RateLimit != nil {
		limit = d.RateLimit.Handler()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.Observability(logger))

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.NotFound(http.HandlerFunc(d.Base.NotFound))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Route("/shipments", func(r chi.Router) {
			r.Post("/", d.Shipments.Create)
			r.Get("/", d.Shipments.List)
			r.Get("/track/{code}", d.Shipments.GetByTrackingCode)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", d.Shipments.Get)
				r.With(limit).Post("/locations", d.Locations.Ingest)
				r.Post("/transitions", d.Shipments.Transition)
				r.Get("/events", d.Shipments.Events)
				r.Post("/tracking-codes", d.Codes.Assign)
				r.Get("/tracking-codes", d.Codes.List)
				r.Put("/route", d.Routes.Plan)
				r.Get("/route", d.Routes.Get)
			})
		})

		r.Get("/vendors/{vendor_id}/tracking/{code}", d.Codes.Resolve)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/shipments/{id}", d.Streams.Shipment)
		r.Get("/vendors/{vendor_id}", d.Streams.Vendor)
		r.Get("/admin", d.Streams.Admin)
	})

	return r
}
