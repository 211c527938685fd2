package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/http/respond"
)

// Recover garante resposta sanitizada em caso de panic.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("request_id", middleware.GetReqID(r.Context())).
					Bytes("stack", debug.Stack()).
					Msg("panic recuperado")
				respond.JSON(w, http.StatusInternalServerError, apperr.Envelope{Detail: "Erro interno"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
