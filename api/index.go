package handler

import (
	"fmt"
	"net/http"
	"time"

	"masterhelp-backend/pkg/config"
	"masterhelp-backend/pkg/database"
	"masterhelp-backend/pkg/handlers"
	customMiddleware "masterhelp-backend/pkg/middleware"
	"masterhelp-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler is the single HTTP entry point: one Chi router carrying every API
// endpoint, usable both behind a serverless function and a plain http.Server.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()

	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	db := database.GetShared(database.DatabaseConfig{
		UseLocalDB:   cfg.UseLocalDB,
		LocalDataDir: cfg.LocalDataDir,
		PostgresDSN:  cfg.PostgresDSN,
		Debug:        cfg.Debug,
	})

	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db)

	router.ServeHTTP(w, r)
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.CORS(cfg))

	router.Use(middleware.Timeout(60 * time.Second))

	// Multipart song uploads need headroom above the audio cap
	router.Use(customMiddleware.MaxBodySize(64 << 20))

	if cfg.IsProduction() {
		router.Use(customMiddleware.RequireUserAgent)
	}

	// Audio responses compress poorly but JSON payloads benefit
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	authHandler := handlers.NewAuthHandler(cfg, db)
	usersHandler := handlers.NewUsersHandler(cfg, db)
	campaignsHandler := handlers.NewCampaignsHandler(cfg, db)
	soundtrackHandler := handlers.NewSoundtrackHandler(cfg, db)
	manualsHandler := handlers.NewManualsHandler(cfg)
	spellsHandler := handlers.NewSpellsHandler(cfg)

	// Health check
	router.Get("/", authHandler.HealthCheck)

	// Public routes
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)

		// Needs the current password, so it runs behind auth
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))
			r.Put("/change-password", authHandler.ChangePassword)
		})
	})

	// Static reference content, readable without an account
	router.Route("/manuals", func(r chi.Router) {
		r.Get("/", manualsHandler.ListManuals)
		r.Get("/{manualId}/toc", manualsHandler.GetTOC)
		r.Get("/{manualId}/sections/{nodeId}", manualsHandler.GetSection)
		r.Get("/{manualId}/search", manualsHandler.Search)
	})

	router.Route("/spells", func(r chi.Router) {
		r.Get("/", spellsHandler.ListSpells)
		r.Get("/meta/all", spellsHandler.GetMeta)
		r.Get("/{id}", spellsHandler.GetSpell)
	})

	// Authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(customMiddleware.AuthMiddleware(cfg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}", usersHandler.GetUser)
			r.Put("/{id}/preferences", usersHandler.UpdatePreferences)
			r.Delete("/{id}", usersHandler.DeleteUser)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", campaignsHandler.ListMyCampaigns)
			r.Post("/", campaignsHandler.CreateCampaign)

			// Invitation lifecycle; the static segments must be declared
			// before the {id} routes
			r.Post("/invitation/respond", campaignsHandler.RespondInvitation)
			r.Get("/invitations/pending", campaignsHandler.ListPendingInvitations)

			r.Get("/{id}", campaignsHandler.GetCampaign)
			r.Patch("/{id}", campaignsHandler.UpdateCampaign)
			r.Delete("/{id}", campaignsHandler.DeleteCampaign)
			r.Post("/{id}/invite", campaignsHandler.InvitePlayer)
			r.Delete("/{id}/player/{playerId}", campaignsHandler.RemovePlayer)
		})

		r.Route("/soundtrack", func(r chi.Router) {
			r.Post("/songs", soundtrackHandler.CreateSong)
			r.Get("/songs", soundtrackHandler.ListOwnSongs)
			r.Get("/campaigns/{campaignId}/songs", soundtrackHandler.ListCampaignSongs)
			r.Patch("/songs/{songId}", soundtrackHandler.UpdateSong)
			r.Post("/songs/{songId}/associate", soundtrackHandler.AssociateSong)
			r.Delete("/songs/{songId}/associate/{campaignId}", soundtrackHandler.UnassociateSong)
			r.Delete("/songs/{songId}", soundtrackHandler.DeleteSong)
			r.Get("/songs/{songId}/stream", soundtrackHandler.StreamSong)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
