package identity

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// GoogleCertsURL publica os certificados que assinam ID tokens do Firebase.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const defaultKeysTTL = time.Hour

// keySource mantém em cache as chaves públicas até o max-age informado.
type keySource struct {
	http *resty.Client
	url  string
	now  func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func newKeySource(client *resty.Client, url string) *keySource {
	return &keySource{http: client, url: url, now: time.Now}
}

func (k *keySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.keys == nil || k.now().After(k.expires) {
		if err := k.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}
	key, ok := k.keys[kid]
	if !ok {
		return nil, fmt.Errorf("chave %q desconhecida", kid)
	}
	return key, nil
}

func (k *keySource) refreshLocked(ctx context.Context) error {
	certs := map[string]string{}
	resp, err := k.http.R().SetContext(ctx).SetResult(&certs).Get(k.url)
	if err != nil {
		return fmt.Errorf("buscar certificados: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("buscar certificados: status %d", resp.StatusCode())
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("certificado %s: %w", kid, err)
		}
		keys[kid] = key
	}
	k.keys = keys
	k.expires = k.now().Add(maxAge(resp.Header().Get("Cache-Control")))
	return nil
}

func maxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return defaultKeysTTL
}
