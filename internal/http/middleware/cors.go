package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	corsAllowHeaders = "Authorization, Content-Type, X-Admin-API-Key, X-Requested-With"
	corsAllowMethods = "GET,POST,PUT,DELETE,OPTIONS"
)

// originPolicy é a forma já interpretada de ALLOW_ORIGINS.
type originPolicy struct {
	exact    map[string]struct{}
	suffixes []string // ".dominio", minúsculo
	any      bool
}

func parseOrigins(entries []string) originPolicy {
	p := originPolicy{exact: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		e := strings.TrimSpace(entry)
		switch {
		case e == "":
		case e == "*":
			p.any = true
		case strings.HasPrefix(e, "*."):
			p.suffixes = append(p.suffixes, strings.ToLower(e[1:]))
		default:
			p.exact[e] = struct{}{}
		}
	}
	return p
}

// matches exige subdomínio nos curingas: *.x.com não libera x.com.
func (p originPolicy) matches(origin string) bool {
	if _, ok := p.exact[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suf := range p.suffixes {
		if strings.HasSuffix(host, suf) && host != suf[1:] {
			return true
		}
	}
	return false
}

// CORS aplica a política de ALLOW_ORIGINS: origem exata, curinga de
// subdomínio (*.planejafacil.com.br) ou "*" sem credenciais. Preflight
// responde 204 sem chegar ao handler.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := parseOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				switch {
				case policy.matches(origin):
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Vary", "Origin")
					h.Set("Access-Control-Allow-Credentials", "true")
					h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
					h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				case policy.any:
					h.Set("Access-Control-Allow-Origin", "*")
					h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
					h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
