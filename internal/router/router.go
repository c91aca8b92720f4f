package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"slidecast-backend/internal/handlers"
	"slidecast-backend/internal/middleware"
	"slidecast-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	presentationHandler *handlers.PresentationHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Get("/verify-email", authHandler.VerifyEmail)
			r.Post("/resend-verification", authHandler.ResendVerification)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Presentation Routes (presenter only) ────
		r.Route("/presentations", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", presentationHandler.Create)
			r.Get("/", presentationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", presentationHandler.Get)
				r.Put("/", presentationHandler.Update)
				r.Delete("/", presentationHandler.Delete)
				r.Post("/access-code", presentationHandler.RotateCode)
				r.Post("/deck", presentationHandler.UploadDeck)
				r.Get("/slides", presentationHandler.ListSlides)
				r.Post("/slides", presentationHandler.CreateSlide)
				r.Delete("/slides/{slideID}", presentationHandler.DeleteSlide)
				r.Get("/participants", presentationHandler.Participants)
				r.Get("/attendance", presentationHandler.Attendance)
			})
		})

		// ──── WebSocket ────
		// Auth happens inside the handler: presenters hand a token over the
		// query string, participants may connect bare.
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
