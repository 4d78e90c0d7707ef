package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Overland-East-Bay/member-type-fields/internal/adapters/httpapi"
	memidempotency "github.com/Overland-East-Bay/member-type-fields/internal/adapters/memory/idempotency"
	"github.com/Overland-East-Bay/member-type-fields/internal/adapters/memory/profilevalues"
	memsettings "github.com/Overland-East-Bay/member-type-fields/internal/adapters/memory/settings"
	postgres "github.com/Overland-East-Bay/member-type-fields/internal/adapters/postgres"
	pgidempotency "github.com/Overland-East-Bay/member-type-fields/internal/adapters/postgres/idempotency"
	pgprofilevalues "github.com/Overland-East-Bay/member-type-fields/internal/adapters/postgres/profilevalues"
	pgsettings "github.com/Overland-East-Bay/member-type-fields/internal/adapters/postgres/settings"
	redisadapter "github.com/Overland-East-Bay/member-type-fields/internal/adapters/redis"
	redisidempotency "github.com/Overland-East-Bay/member-type-fields/internal/adapters/redis/idempotency"
	redisprofilevalues "github.com/Overland-East-Bay/member-type-fields/internal/adapters/redis/profilevalues"
	redissettings "github.com/Overland-East-Bay/member-type-fields/internal/adapters/redis/settings"
	"github.com/Overland-East-Bay/member-type-fields/internal/adapters/yamlcatalog"
	"github.com/Overland-East-Bay/member-type-fields/internal/app/fieldrules"
	platformclock "github.com/Overland-East-Bay/member-type-fields/internal/platform/clock"
	"github.com/Overland-East-Bay/member-type-fields/internal/platform/config"
	"github.com/Overland-East-Bay/member-type-fields/internal/platform/i18n"
	"github.com/Overland-East-Bay/member-type-fields/internal/platform/sanitize"
	idempotencyport "github.com/Overland-East-Bay/member-type-fields/internal/ports/out/idempotency"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/membertypes"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
	settingsport "github.com/Overland-East-Bay/member-type-fields/internal/ports/out/settings"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	clk := platformclock.NewSystemClock()

	var (
		settingsStore settingsport.Store
		idemStore     idempotencyport.Store
		values        profilefields.ValueRepository
		cleanup       func()
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(startCtx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			log.Fatalf("invalid postgres config: %v", err)
		}
		cleanup = pool.Close
		if err := postgres.Migrate(startCtx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}

		settingsStore = pgsettings.NewStore(pool)
		idemStore = pgidempotency.NewStore(pool, clk, cfg.IdempotencyTTL)
		values = pgprofilevalues.NewRepo(pool)
	case config.StorageRedis:
		client, err := redisadapter.NewClient(startCtx, redisadapter.ClientOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("invalid redis config: %v", err)
		}
		cleanup = func() { _ = client.Close() }

		settingsStore = redissettings.NewStore(client, cfg.RedisNamespace)
		idemStore = redisidempotency.NewStore(client, cfg.RedisNamespace, cfg.IdempotencyTTL)
		values = redisprofilevalues.NewRepo(client, cfg.RedisNamespace)
	default:
		settingsStore = memsettings.NewStore()
		idemStore = memidempotency.NewStore(clk, cfg.IdempotencyTTL)
		values = profilevalues.NewRepo()
	}
	cancelStart()

	if cleanup != nil {
		defer cleanup()
	}

	// Without a catalog file only the synthetic type_none choice exists and no field is listed.
	var (
		memberTypes membertypes.Catalog
		fields      profilefields.Catalog
	)
	if cfg.CatalogPath != "" {
		cat, err := yamlcatalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("load catalog: %v", err)
		}
		memberTypes, fields = cat, cat
		if err := seedValues(context.Background(), values, cat.UserValues()); err != nil {
			log.Fatalf("seed user values: %v", err)
		}
		log.Printf("catalog %s: %d user values seeded", cfg.CatalogPath, len(cat.UserValues()))
	}

	tr, err := i18n.New(cfg.DefaultLang)
	if err != nil {
		log.Fatalf("invalid DEFAULT_LANG: %v", err)
	}

	svc := fieldrules.NewService(fieldrules.Dependencies{
		Settings:    settingsStore,
		Prefix:      cfg.SettingsPrefix,
		MemberTypes: memberTypes,
		Fields:      fields,
		Values:      values,
		Translator:  tr,
		Sanitizer:   sanitize.NewStripper(),
	})

	api := httpapi.NewServer(svc, idemStore, clk, httpapi.ServerOptions{Fade: cfg.FadeDuration})
	handler := httpapi.NewRouterWithOptions(
		api,
		httpapi.RouterOptions{SubjectMiddleware: httpapi.NewSubjectMiddleware(cfg.DevSubject)},
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("api listening on :%s (storage=%s)", cfg.Port, cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	if p, ok := idemStore.(idempotencyPruner); ok && cfg.IdempotencyTTL > 0 {
		go pruneIdempotency(ctx, p, cfg.IdempotencyTTL)
	}

	<-ctx.Done()
	log.Printf("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// seedValues writes the catalog's user values, batching them when Postgres backs the repo.
func seedValues(ctx context.Context, repo profilefields.ValueRepository, uvs []yamlcatalog.UserValue) error {
	if pg, ok := repo.(*pgprofilevalues.Repo); ok {
		batch := make([]pgprofilevalues.Value, 0, len(uvs))
		for _, uv := range uvs {
			batch = append(batch, pgprofilevalues.Value{User: uv.User, Field: uv.Field, Value: uv.Value})
		}
		return pg.Seed(ctx, batch)
	}
	for _, uv := range uvs {
		if err := repo.SetFieldValue(ctx, uv.User, uv.Field, uv.Value); err != nil {
			return fmt.Errorf("%s/%d: %w", uv.User, uv.Field, err)
		}
	}
	return nil
}

type idempotencyPruner interface {
	Prune(ctx context.Context) (int64, error)
}

// pruneIdempotency removes expired replay records once per ttl until ctx ends.
// Redis expires keys itself and never reaches this loop.
func pruneIdempotency(ctx context.Context, p idempotencyPruner, ttl time.Duration) {
	t := time.NewTicker(ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.Prune(ctx)
			if err != nil {
				log.Printf("idempotency prune: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("idempotency prune: removed %d records", n)
			}
		}
	}
}
