package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/account"
	"github.com/planejafacil/api/internal/block"
	"github.com/planejafacil/api/internal/config"
	"github.com/planejafacil/api/internal/docstore"
	httpmiddleware "github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/http/respond"
	"github.com/planejafacil/api/internal/identity"
	"github.com/planejafacil/api/internal/op"
	"github.com/planejafacil/api/internal/resource"
	"github.com/planejafacil/api/internal/template"
	"github.com/planejafacil/api/internal/tenant"
)

type Handler struct {
	store         docstore.Store
	redis         *redis.Client
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado. redisClient é opcional e só entra
// na verificação de prontidão.
func NewRouter(cfg *config.Config, store docstore.Store, provider identity.Provider, redisClient *redis.Client) http.Handler {
	h := &Handler{
		store:         store,
		redis:         redisClient,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	templateService := template.NewService(template.NewRepository(store))
	resourceService := resource.NewService(resource.NewRepository(store), store, templateService)
	blockService := block.NewService(block.NewRepository(store), store, templateService, resourceService)
	opService := op.NewService(op.NewRepository(store), store, templateService, blockService, resourceService)
	accountService := account.NewService(store, provider, resourceService, tenant.NewPurger(store, provider))

	accountHandler := account.NewHandler(accountService)
	domainHandlers := []interface{ RegisterRoutes(chi.Router) }{
		accountHandler,
		template.NewHandler(templateService),
		resource.NewHandler(resourceService),
		block.NewHandler(blockService),
		op.NewHandler(opService),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))
	if cfg.HTTPTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.HTTPTimeout))
	}

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/", h.Welcome)
		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		accountHandler.RegisterPublicRoutes(public)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(httpmiddleware.IPRateLimit(h.publicLimiter))
		admin.Use(httpmiddleware.AdminKey(cfg.AdminAPIKey))
		accountHandler.RegisterAdminRoutes(admin)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(access.NewResolver(provider)))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		for _, dh := range domainHandlers {
			dh.RegisterRoutes(private)
		}
	})

	log.Info().
		Str("store", cfg.StoreBackend).
		Str("identity", cfg.IdentityProvider).
		Bool("admin", cfg.AdminAPIKey != "").
		Msg("rotas registradas")

	return r
}

// Welcome responde a raiz pública.
func (h *Handler) Welcome(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Welcome to Planejafacil API"})
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com o store e, quando configurado, o Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeErr := h.store.Ping(ctx)
	var redisErr error
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx).Err()
	}

	if storeErr != nil || redisErr != nil {
		log.Warn().
			AnErr("store", storeErr).
			AnErr("redis", redisErr).
			Msg("dependências indisponíveis")
		respond.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready": false,
			"store": errorString(storeErr),
			"redis": errorString(redisErr),
		})
		return
	}

	respond.JSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
