package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/http/respond"
)

type contextKey string

const ContextKeyIdentity contextKey = "identity"

// AdminKeyHeader carrega o segredo da rota administrativa.
const AdminKeyHeader = "X-Admin-API-Key"

// Auth resolve o bearer token e injeta a identidade no contexto.
func Auth(resolver *access.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respond.Error(w, r, apperr.Unauthorized("Token ausente"))
				return
			}

			id, err := resolver.Resolve(r.Context(), parts[1])
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			annotateRequest(r.Context(), id)

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity injeta a identidade no contexto.
func WithIdentity(ctx context.Context, id access.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}

// GetIdentity recupera a identidade do contexto.
func GetIdentity(ctx context.Context) (access.Identity, bool) {
	id, ok := ctx.Value(ContextKeyIdentity).(access.Identity)
	return id, ok
}

// RequireMain garante papel main.
func RequireMain(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			respond.Error(w, r, apperr.Unauthorized("Token ausente"))
			return
		}
		if err := access.RequireMain(id); err != nil {
			respond.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminKey protege rotas administrativas com um segredo estático. Chave
// vazia desabilita as rotas.
func AdminKey(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(AdminKeyHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				log.Warn().Str("path", r.URL.Path).Msg("chave administrativa inválida")
				respond.Error(w, r, apperr.Forbidden("Chave administrativa inválida"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFrom devolve a identidade da requisição ou Unauthorized.
func IdentityFrom(r *http.Request) (access.Identity, error) {
	id, ok := GetIdentity(r.Context())
	if !ok || id.UID == "" {
		return access.Identity{}, apperr.Unauthorized("Token ausente")
	}
	return id, nil
}
