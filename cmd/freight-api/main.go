// README: Entry point; loads config, wires storage, identity, events and services, then serves HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"freightbid/internal/access"
	"freightbid/internal/config"
	"freightbid/internal/events"
	httptransport "freightbid/internal/http"
	"freightbid/internal/http/middleware"
	"freightbid/internal/identity"
	"freightbid/internal/infra"
	"freightbid/internal/lock"
	"freightbid/internal/maps"
	"freightbid/internal/metrics"
	"freightbid/internal/modules/bid"
	"freightbid/internal/modules/booking"
	"freightbid/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := infra.NewLogger(infra.LogOptions{Level: cfg.Log.Level, File: cfg.Log.File})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("freight-api stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	dbPool, err := infra.NewDB(ctx, infra.DBOptions{DSN: cfg.DB.DSN, MaxConns: cfg.DB.MaxConns, MinConns: cfg.DB.MinConns})
	if err != nil {
		return err
	}
	defer dbPool.Close()

	if cfg.DB.Migrate {
		if err := infra.Migrate(ctx, dbPool, migrations.FS, log); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		if rdb, err = infra.NewRedis(ctx, cfg.Redis.Addr); err != nil {
			return err
		}
		defer rdb.Close()
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, 0)
	}

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	pub, err := newPublisher(cfg.Events)
	if err != nil {
		return err
	}
	defer pub.Close()

	var routes booking.RouteEstimator
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		routes = rs
	}

	limitStore, err := middleware.NewLimiterStore(rdb, "freight:bids")
	if err != nil {
		return err
	}

	metrics.Register()

	policy := access.NewPolicy()
	bookingStore := booking.NewStore(dbPool)
	bookingSvc := booking.NewService(bookingStore, policy, routes, pub, log)
	bidSvc := bid.NewService(bid.NewStore(dbPool), bookingStore, policy, locker, pub, log)

	router, err := httptransport.NewRouter(httptransport.RouterDeps{
		Bookings:    bookingSvc,
		Bids:        bidSvc,
		Resolver:    identity.NewClaimsResolver(verifier),
		Log:         log,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		BidRate:     cfg.Limits.BidRate,
		LimitStore:  limitStore,
		Health:      healthCheck(dbPool, rdb),
	})
	if err != nil {
		return err
	}

	return httptransport.NewServer(cfg.HTTP.Addr, router, log).Run(ctx)
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (identity.TokenVerifier, error) {
	switch cfg.Provider {
	case "firebase":
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("FREIGHT_FIREBASE_PROJECT_ID is required for the firebase provider")
		}
		return identity.NewFirebaseVerifier(ctx, cfg.ProjectID, cfg.CredentialsFile)
	default:
		return identity.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer), nil
	}
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Sink {
	case "kafka":
		return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic), nil
	case "rabbitmq":
		return events.NewRabbitPublisher(cfg.AMQPURL, cfg.Queue)
	default:
		return events.Nop{}, nil
	}
}

func healthCheck(db *pgxpool.Pool, rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return infra.StorageErr(err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return infra.StorageErr(err)
			}
		}
		return nil
	}
}
