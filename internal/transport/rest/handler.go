// Package rest provides the HTTP API of the storefront: catalog queries, the session cart and
// wishlist, sign-in and connectivity controls.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/abgdnv/bazaar/internal/backend"
	"github.com/abgdnv/bazaar/internal/cart"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/abgdnv/bazaar/internal/notify"
	"github.com/abgdnv/bazaar/internal/service"
	"github.com/abgdnv/bazaar/pkg/auth"
	"github.com/abgdnv/bazaar/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Sessions hands out the cart store of a session.
type Sessions interface {
	Get(ctx context.Context, session string) (*cart.Store, error)
}

// Inbox hands out pending notifications of a session.
type Inbox interface {
	Take(session string) []notify.Notification
}

// Connectivity exposes and overrides the backend reachability state.
type Connectivity interface {
	Online() bool
	Overridden() bool
	Override(ctx context.Context, online *bool)
}

type Handler struct {
	catalog    service.CatalogService
	sessions   Sessions
	inbox      Inbox
	identifier auth.Identifier
	conn       Connectivity
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewHandler creates the storefront API handler.
func NewHandler(catalog service.CatalogService, sessions Sessions, inbox Inbox, identifier auth.Identifier,
	conn Connectivity, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:    catalog,
		sessions:   sessions,
		inbox:      inbox,
		identifier: identifier,
		conn:       conn,
		validate:   validator.New(),
		logger:     logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the storefront.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.SearchProducts)
			r.Get("/{id}", h.FindProduct)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Get("/{id}", h.FindCategory)
			r.Get("/slug/{slug}", h.FindCategoryBySlug)
		})

		r.Group(func(r chi.Router) {
			r.Use(web.SessionMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Post("/items", h.AddItem)
				r.Patch("/items/{id}", h.UpdateItem)
				r.Delete("/items/{id}", h.RemoveItem)
			})
			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", h.GetWishlist)
				r.Post("/{id}/toggle", h.ToggleWishlist)
			})
			r.Route("/session", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Post("/signin", h.SignIn)
				r.Post("/signout", h.SignOut)
				r.Post("/sync", h.Sync)
				r.Get("/notifications", h.Notifications)
			})
		})

		r.Route("/connectivity", func(r chi.Router) {
			r.Get("/", h.GetConnectivity)
			r.Put("/", h.SetConnectivity)
		})
	})

	r.Get("/healthz", h.HealthCheck)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ConnectivityDto is the reachability state of the backend.
type ConnectivityDto struct {
	Online     bool `json:"online"`
	Overridden bool `json:"overridden"`
}

// ConnectivityRequest pins the state; a null online releases the pin.
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}

func (h *Handler) GetConnectivity(w http.ResponseWriter, _ *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, ConnectivityDto{Online: h.conn.Online(), Overridden: h.conn.Overridden()})
}

func (h *Handler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if !web.DecodeValid(w, r, h.logger, h.validate, &req) {
		return
	}
	h.conn.Override(r.Context(), req.Online)
	h.logger.InfoContext(r.Context(), "Connectivity override changed", "online", req.Online)
	web.RespondJSON(w, h.logger, http.StatusOK, ConnectivityDto{Online: h.conn.Online(), Overridden: h.conn.Overridden()})
}

// respondErr maps a service error to a status code and logs it at a matching level.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error, message string) {
	ctx := r.Context()
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, perrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, perrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, perrors.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, perrors.ErrRejected):
		status = http.StatusUnprocessableEntity
	case backend.IsTransient(err):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, message, "error", err)
		web.RespondError(w, h.logger, status, message)
		return
	}
	h.logger.WarnContext(ctx, message, "error", err)
	web.RespondError(w, h.logger, status, err.Error())
}

// store resolves the cart store of the request session.
func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	session, ok := web.GetSessionID(r.Context())
	if !ok {
		web.RespondError(w, h.logger, http.StatusBadRequest, "Missing session")
		return nil, false
	}
	s, err := h.sessions.Get(r.Context(), session)
	if err != nil {
		h.respondErr(w, r, err, "Failed to open session")
		return nil, false
	}
	return s, true
}
