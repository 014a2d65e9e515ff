package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"acquisitions-gateway/internal/config"
	"acquisitions-gateway/internal/observability"
	"acquisitions-gateway/internal/server"
	"acquisitions-gateway/internal/users"
	"acquisitions-gateway/middleware/admission/application"
	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/admission/infra"
	"acquisitions-gateway/middleware/identity"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Long: `Start the HTTP gateway.

SIGINT or SIGTERM trigger a graceful shutdown bounded by server.shutdown_timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", "", "listen address override (e.g. :8080)")
	_ = opts.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := observability.NewLogger("acquisitions-gateway", cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	engine, err := buildEngine(gctx, cfg, rdb)
	if err != nil {
		return err
	}

	stats, closeStats, err := buildStats(cfg, rdb)
	if err != nil {
		return err
	}
	defer closeStats()

	resolver, closeResolver, err := buildResolver(cfg, log)
	if err != nil {
		return err
	}
	defer closeResolver()

	srv, err := server.New(server.Options{
		Config:    cfg,
		Logger:    log,
		Resolver:  resolver,
		Engine:    engine,
		Stats:     stats,
		Directory: users.NewDirectory(seedUsers(cfg.Users.Seed)...),
	})
	if err != nil {
		return err
	}

	log.Info("admission configured",
		zap.String("store", cfg.Admission.Store),
		zap.String("stats", cfg.Stats.Driver),
		zap.Bool("bot", engine.Bots != nil),
		zap.Bool("shield", engine.Shield != nil),
		zap.Int("concurrency_max", cfg.Concurrency.Max),
		zap.Duration("concurrency_timeout", cfg.Concurrency.Timeout),
	)

	g.Go(func() error { return srv.Run(gctx) })

	if mem, ok := stats.(*infra.MemoryStatsStore); ok {
		g.Go(func() error {
			<-gctx.Done()
			total := mem.Total()
			log.Info("admission totals", zap.Int64("allowed", total.Allowed), zap.Int64("denied", total.Denied))
			return nil
		})
	}

	return g.Wait()
}

func buildEngine(ctx context.Context, cfg *config.Config, rdb *redis.Client) (application.Engine, error) {
	policies, err := cfg.Admission.PolicyTable()
	if err != nil {
		return application.Engine{}, err
	}

	engine := application.Engine{
		Policies:       policies,
		StoreTimeout:   cfg.Admission.StoreTimeout,
		KeyByPrincipal: cfg.Admission.KeyByPrincipal,
	}

	switch cfg.Admission.Store {
	case "redis":
		engine.Store = infra.NewRedisWindowStore(rdb, infra.WithWindowPrefix(cfg.Redis.Prefix+":window"))
	default:
		mem := infra.NewMemoryWindowStore()
		mem.StartJanitor(ctx)
		engine.Store = mem
	}

	if cfg.Admission.Bot.Enabled {
		var botOpts []infra.BotOption
		if len(cfg.Admission.Bot.AllowedAgents) > 0 {
			botOpts = append(botOpts, infra.WithAllowedAgents(cfg.Admission.Bot.AllowedAgents...))
		}
		if cfg.Admission.Bot.CadenceRPS > 0 {
			cadence := infra.NewCadenceTracker(cfg.Admission.Bot.CadenceRPS, cfg.Admission.Bot.CadenceBurst)
			cadence.StartJanitor(ctx)
			botOpts = append(botOpts, infra.WithCadence(cadence))
		}
		engine.Bots = infra.NewBotDetector(botOpts...)
	}
	if cfg.Admission.Shield.Enabled {
		engine.Shield = infra.NewShield()
	}
	return engine, engine.Validate()
}

func buildStats(cfg *config.Config, rdb *redis.Client) (domain.StatsStore, func(), error) {
	noop := func() {}
	sc := cfg.Stats
	switch sc.Driver {
	case "memory":
		return infra.NewMemoryStatsStore(infra.WithTrackKeys(sc.TrackKeys)), noop, nil
	case "redis":
		return infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(sc.Prefix),
			infra.WithStatsTTL(sc.TTL),
			infra.WithStatsBucket(sc.Bucket),
			infra.WithStatsTrackKeys(sc.TrackKeys),
		), noop, nil
	case "kafka":
		k := infra.NewKafkaStatsStore(sc.KafkaBrokers, sc.KafkaTopic)
		return k, func() { _ = k.Close() }, nil
	case "none", "":
		return nil, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown stats driver %q", sc.Driver)
}

func buildResolver(cfg *config.Config, log *zap.Logger) (identity.Resolver, func(), error) {
	ac := cfg.Auth
	opts := []identity.Option{
		identity.WithIssuer(ac.Issuer),
		identity.WithCookieName(ac.CookieName),
		identity.WithResolveTimeout(ac.ResolveTimeout),
		identity.WithLogger(log),
	}

	switch {
	case ac.JWKSURL != "":
		res, err := identity.NewJWKSResolver(ac.JWKSURL, ac.JWKSRefresh, opts...)
		if err != nil {
			return nil, nil, err
		}
		return res, res.Close, nil
	case ac.JWTSecret != "":
		res, err := identity.NewHMACResolver([]byte(ac.JWTSecret), opts...)
		if err != nil {
			return nil, nil, err
		}
		return res, func() {}, nil
	}

	log.Warn("no auth.jwt_secret or auth.jwks_url configured, every caller is treated as guest")
	return nil, func() {}, nil
}

func seedUsers(seed []config.SeedUser) []users.User {
	out := make([]users.User, 0, len(seed))
	for _, s := range seed {
		role, _ := domain.ParseRole(s.Role)
		out = append(out, users.User{ID: s.ID, Name: s.Name, Email: s.Email, Role: role})
	}
	return out
}
