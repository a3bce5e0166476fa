// Package httpapi exposes the identity and payment use cases over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const apiPrefix = "/api/v1/training"

func NewRouter(h *Handler, authn Authenticator, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Authenticate(authn))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route(apiPrefix, func(r chi.Router) {
		r.Post("/signin", h.SignIn)
		r.Post("/users/createuser", h.CreateUser)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuthenticated)
			r.Get("/users/getuser", h.GetUser)
			r.Put("/users/updateuser", h.UpdateUser)
			r.Delete("/users/deleteuser", h.DeleteUser)
			r.Post("/payments/createpayment", h.CreatePayment)
			r.Get("/payments/getpayments", h.ListPayments)
			r.Get("/payments/byuser", h.PaymentsByUser)
		})
	})

	return r
}
