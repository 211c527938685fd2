package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/access"
)

const contextKeyRequestLog contextKey = "requestLog"

// requestLog recebe dados descobertos por middlewares internos (a
// identidade resolvida) para o log de acesso.
type requestLog struct {
	uid        string
	mainUserID string
}

func annotateRequest(ctx context.Context, id access.Identity) {
	if rl, ok := ctx.Value(contextKeyRequestLog).(*requestLog); ok {
		rl.uid = id.UID
		rl.mainUserID = id.MainUserID
	}
}

// Logging escreve logs estruturados por requisição. Respostas 5xx sobem
// para nível error e 4xx para warn.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		rl := &requestLog{}

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), contextKeyRequestLog, rl)))

		level := zerolog.InfoLevel
		switch {
		case ww.Status() >= 500:
			level = zerolog.ErrorLevel
		case ww.Status() >= 400:
			level = zerolog.WarnLevel
		}

		event := log.WithLevel(level).Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Int("bytes", ww.BytesWritten()).Dur("duration", time.Since(start)).
			Str("ip", remoteHost(r))

		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			event = event.Str("request_id", reqID)
		}
		if rl.uid != "" {
			event = event.Str("uid", rl.uid).Str("mainUserId", rl.mainUserID)
		}

		event.Msg("http_request")
	})
}
