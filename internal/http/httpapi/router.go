package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"clothdonate/internal/http/handlers"
	"clothdonate/internal/middleware"
)

// Options carries the cross-cutting settings of the router.
type Options struct {
	Logger             zerolog.Logger
	JWTSecret          string
	JWTIssuer          string
	DefaultLocale      string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	// CountryLookup and MatchLocale are optional.
	CountryLookup middleware.CountryLookup
	MatchLocale   middleware.LocaleMatcher
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
	)
	if opts.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
	}
	r.Use(middleware.I18N(opts.DefaultLocale, opts.CountryLookup, opts.MatchLocale))

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret, opts.JWTIssuer))

		r.Put("/v1/me", app.SyncMe)

		r.Route("/v1/organizations", func(r chi.Router) {
			r.Post("/", app.OrganizationsRegister)
			r.Get("/pending", app.OrganizationsPending)
			r.Get("/approved", app.OrganizationsApproved)
			r.Get("/{id}", app.OrganizationsGet)
			r.Post("/{id}/approve", app.OrganizationsApprove)
			r.Post("/{id}/reject", app.OrganizationsReject)
		})

		r.Route("/v1/donations", func(r chi.Router) {
			r.Post("/", app.DonationsCreate)
			r.Get("/", app.DonationsMine)
			r.Get("/organization", app.DonationsForOrganization)
			r.Get("/{id}", app.DonationsGet)
			r.Post("/{id}/match", app.DonationsMatch)
			r.Post("/{id}/assign", app.DonationsAssign)
			r.Post("/{id}/decline", app.DonationsDecline)
			r.Post("/{id}/cancel", app.DonationsCancel)
			r.Get("/{id}/delivery", app.DonationsDelivery)
		})

		r.Route("/v1/deliveries", func(r chi.Router) {
			r.Get("/{id}", app.DeliveriesGet)
			r.Post("/{id}/shipment", app.DeliveriesShipment)
			r.Patch("/{id}/tracking", app.DeliveriesTracking)
			r.Post("/{id}/in-transit", app.DeliveriesInTransit)
			r.Post("/{id}/delivered", app.DeliveriesDelivered)
			r.Post("/{id}/cancel", app.DeliveriesCancel)
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", app.NotificationsList)
			r.Get("/unread-count", app.NotificationsUnreadCount)
			r.Post("/read-all", app.NotificationsMarkAllRead)
			r.Post("/{id}/read", app.NotificationsMarkRead)
		})
	})

	return r
}
