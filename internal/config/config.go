package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends de armazenamento aceitos em STORE_BACKEND.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMongo     = "mongo"
	StoreMemory    = "memory"
)

// Provedores aceitos em IDENTITY_PROVIDER.
const (
	IdentityFirebase = "firebase"
	IdentityLocal    = "local"
)

// MaxClockSkew é a maior tolerância aceita na verificação de tokens.
const MaxClockSkew = 600 * time.Second

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port         int
	LogLevel     string
	LogFormat    string
	AllowOrigins []string
	HTTPTimeout  time.Duration

	StoreBackend  string
	DBDSN         string
	MongoURI      string
	MongoDatabase string

	GoogleProjectID   string
	GoogleCredentials string

	IdentityProvider  string
	FirebaseWebAPIKey string
	TokenClockSkew    time.Duration

	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	RedisURL      string

	AdminAPIKey string

	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info")))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(getEnv("LOG_FORMAT", "console")))
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, errors.New("LOG_FORMAT deve ser console ou json")
	}

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	if cfg.HTTPTimeout, err = parseDurationEnv("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.GoogleProjectID = strings.TrimSpace(getEnv("GOOGLE_PROJECT_ID", ""))
	cfg.GoogleCredentials = strings.TrimSpace(getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""))

	if err := loadStore(cfg); err != nil {
		return nil, err
	}
	if err := loadIdentity(cfg); err != nil {
		return nil, err
	}

	cfg.AdminAPIKey = strings.TrimSpace(getEnv("ADMIN_API_KEY", ""))

	rps, err := parseFloatEnv("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, err
	}
	burst, err := parseIntEnv("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: rps, Burst: burst}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: rps, Burst: burst * 2}

	return cfg, nil
}

func loadStore(cfg *Config) error {
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", StoreFirestore)))
	switch cfg.StoreBackend {
	case StoreFirestore:
		if cfg.GoogleProjectID == "" {
			return errors.New("GOOGLE_PROJECT_ID obrigatório para STORE_BACKEND=firestore")
		}
	case StorePostgres:
		cfg.DBDSN = getEnv("DB_DSN", "")
		if cfg.DBDSN == "" {
			return errors.New("DB_DSN obrigatório para STORE_BACKEND=postgres")
		}
	case StoreMongo:
		cfg.MongoURI = getEnv("MONGO_URI", "")
		if cfg.MongoURI == "" {
			return errors.New("MONGO_URI obrigatório para STORE_BACKEND=mongo")
		}
		cfg.MongoDatabase = strings.TrimSpace(getEnv("MONGO_DATABASE", "planejafacil"))
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND %q não suportado", cfg.StoreBackend)
	}
	return nil
}

func loadIdentity(cfg *Config) error {
	skew, err := parseSecondsEnv("TOKEN_CLOCK_SKEW", MaxClockSkew)
	if err != nil {
		return err
	}
	if skew < 0 || skew > MaxClockSkew {
		return errors.New("TOKEN_CLOCK_SKEW deve estar entre 0 e 600 segundos")
	}
	cfg.TokenClockSkew = skew

	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	cfg.IdentityProvider = strings.ToLower(strings.TrimSpace(getEnv("IDENTITY_PROVIDER", IdentityFirebase)))
	switch cfg.IdentityProvider {
	case IdentityFirebase:
		if cfg.GoogleProjectID == "" {
			return errors.New("GOOGLE_PROJECT_ID obrigatório para IDENTITY_PROVIDER=firebase")
		}
		cfg.FirebaseWebAPIKey = strings.TrimSpace(getEnv("FIREBASE_WEB_API_KEY", ""))
		if cfg.FirebaseWebAPIKey == "" {
			return errors.New("FIREBASE_WEB_API_KEY obrigatório para IDENTITY_PROVIDER=firebase")
		}
	case IdentityLocal:
		cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
		if len(cfg.JWTSecret) < 32 {
			return errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
		}
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL obrigatório para IDENTITY_PROVIDER=local")
		}
		if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", time.Hour); err != nil {
			return err
		}
		if cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour); err != nil {
			return err
		}
	default:
		return fmt.Errorf("IDENTITY_PROVIDER %q não suportado", cfg.IdentityProvider)
	}
	return nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

// parseSecondsEnv aceita "600" (segundos) ou uma duração como "10m".
func parseSecondsEnv(key string, def time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return parseDurationEnv(key, def)
}

func parseFloatEnv(key string, def float64) (float64, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return 0, errors.New(key + " inválido")
	}
	return f, nil
}

func parseIntEnv(key string, def int) (int, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return 0, errors.New(key + " inválido")
	}
	return n, nil
}
