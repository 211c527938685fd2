// Package bootstrap monta as dependências externas (store, provedor de
// identidade, Redis) a partir da configuração, para a API e para a CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/auth"
	"github.com/planejafacil/api/internal/config"
	"github.com/planejafacil/api/internal/db"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/docstore/memstore"
	"github.com/planejafacil/api/internal/identity"
)

// Deps agrupa as conexões abertas. Close libera tudo na ordem inversa.
type Deps struct {
	Store    docstore.Store
	Provider identity.Provider
	Redis    *redis.Client

	closers []func()
}

// ConfigureLogger ajusta o logger global conforme LOG_LEVEL e LOG_FORMAT.
func ConfigureLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

// Open conecta store, Redis (quando configurado) e provedor de identidade.
func Open(ctx context.Context, cfg *config.Config) (*Deps, error) {
	d := &Deps{}

	store, err := d.openStore(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Store = store

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis parse: %w", err)
		}
		d.Redis = redis.NewClient(opts)
		d.closers = append(d.closers, func() { _ = d.Redis.Close() })
	}

	provider, err := d.openIdentity(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Provider = provider

	log.Info().
		Str("store", cfg.StoreBackend).
		Str("identity", cfg.IdentityProvider).
		Bool("redis", d.Redis != nil).
		Msg("dependências conectadas")
	return d, nil
}

func (d *Deps) openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		fs, err := docstore.NewFirestore(ctx, cfg.GoogleProjectID, cfg.GoogleCredentials)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = fs.Close() })
		return fs, nil
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		return docstore.NewPostgres(ctx, pool, true)
	case config.StoreMongo:
		m, err := docstore.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = m.Close() })
		return m, nil
	case config.StoreMemory:
		log.Warn().Msg("store em memória: dados não persistem entre reinícios")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("STORE_BACKEND %q não suportado", cfg.StoreBackend)
	}
}

func (d *Deps) openIdentity(ctx context.Context, cfg *config.Config) (identity.Provider, error) {
	switch cfg.IdentityProvider {
	case config.IdentityFirebase:
		return identity.NewFirebase(ctx, identity.FirebaseConfig{
			ProjectID:       cfg.GoogleProjectID,
			CredentialsFile: cfg.GoogleCredentials,
			WebAPIKey:       cfg.FirebaseWebAPIKey,
			ClockSkew:       cfg.TokenClockSkew,
			HTTPTimeout:     cfg.HTTPTimeout,
		})
	case config.IdentityLocal:
		if d.Redis == nil {
			return nil, errors.New("identity local exige REDIS_URL")
		}
		jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.TokenClockSkew)
		return identity.NewLocal(d.Store, d.Redis, jwtManager, cfg.JWTRefreshTTL), nil
	default:
		return nil, fmt.Errorf("IDENTITY_PROVIDER %q não suportado", cfg.IdentityProvider)
	}
}

// Close fecha as conexões abertas por Open.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
