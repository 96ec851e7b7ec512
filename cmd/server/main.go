package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"CasaBid/internal/adapters/checks"
	"CasaBid/internal/adapters/eventbus"
	"CasaBid/internal/adapters/memory"
	"CasaBid/internal/adapters/postgres"
	"CasaBid/internal/adapters/redis"
	"CasaBid/internal/adapters/rest"
	"CasaBid/internal/adapters/security"
	"CasaBid/internal/adapters/storage"
	"CasaBid/internal/adapters/telegram"
	"CasaBid/internal/bot/moderator"
	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/services"
	"CasaBid/internal/core/validation"
	"CasaBid/internal/shared/config"
	"CasaBid/internal/shared/logger"

	// Moderator handlers register themselves in init().
	_ "CasaBid/internal/bot/moderator/handlers"
)

type repositories struct {
	users         ports.UserRepository
	profiles      ports.ProfileRepository
	verifications ports.VerificationRepository
	visits        ports.VisitRepository
	proposals     ports.ProposalRepository
}

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	baseLogger := logger.New(cfg.IsDev())
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Str("http_addr", cfg.HTTP.Addr).
		Str("checks_provider", cfg.Checks.Provider).
		Bool("postgres", cfg.Postgres.URL != "").
		Bool("redis", cfg.Redis.Addr != "").
		Bool("moderator_bot", cfg.Bot.Enabled()).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Security services
	keyBytes, err := hex.DecodeString(cfg.EncryptionKey)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to decode ENCRYPTION_KEY. It must be hex-encoded.")
	}
	secSvc, err := security.NewAESService(keyBytes, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize security service")
	}
	tokenSvc, err := security.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize token service")
	}

	health := map[string]rest.Pinger{}

	// 4. Storage
	var repos repositories
	if cfg.Postgres.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Postgres.URL, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to apply database schema")
		}
		repos = repositories{
			users:         postgres.NewUserRepository(db, &baseLogger),
			profiles:      postgres.NewProfileRepository(db, &baseLogger),
			verifications: postgres.NewVerificationRepository(db, secSvc, &baseLogger),
			visits:        postgres.NewVisitRepository(db, &baseLogger),
			proposals:     postgres.NewProposalRepository(db, &baseLogger),
		}
		health["postgres"] = db.Ping
	} else {
		baseLogger.Warn().Msg("DATABASE_URL not set, using in-memory repositories")
		repos = repositories{
			users:         memory.NewUserRepository(),
			profiles:      memory.NewProfileRepository(),
			verifications: memory.NewVerificationRepository(),
			visits:        memory.NewVisitRepository(),
			proposals:     memory.NewProposalRepository(),
		}
	}

	var (
		feed    ports.StatusFeed
		limiter ports.RateLimiter
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer rdb.Close()
		feed = redis.NewStatusFeed(rdb, &baseLogger)
		limiter = redis.NewRateLimiter(rdb, "casabid:ratelimit", cfg.Limits.Requests, cfg.Limits.Window, cfg.Limits.Block)
		health["redis"] = func(ctx context.Context) error { return pingRedis(ctx, rdb) }
	} else {
		feed = memory.NewStatusFeed()
		limiter = memory.NewRateLimiter(cfg.Limits.Requests, cfg.Limits.Window)
	}

	docStore, err := storage.NewLocalStore(cfg.Storage.UploadDir, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize document store")
	}

	// 5. Check provider
	var provider ports.CheckProvider
	switch cfg.Checks.Provider {
	case "http":
		provider = checks.NewHTTPProvider(&http.Client{Timeout: cfg.Checks.Timeout}, cfg.Checks.BaseURL, cfg.Checks.APIKey, &baseLogger)
	default:
		provider = checks.NewSandboxProvider(2*time.Second, &baseLogger)
	}

	policy, err := domain.ParsePolicy(cfg.Review.Policy)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Invalid VERIFICATION_POLICY")
	}

	// 6. Core services
	bus := eventbus.NewInMemoryEventBus(&baseLogger)
	authz := services.NewRoleAuthorizer()
	validator := validation.New(time.Now)

	aggregator := services.NewAggregator(repos.verifications, repos.profiles, repos.visits, feed, bus, policy, &baseLogger)
	runner := services.NewCheckRunner(repos.verifications, provider, aggregator, bus, cfg.Checks.Timeout, &baseLogger)
	intake := services.NewIntakeService(repos.verifications, repos.profiles, docStore, secSvc, validator, &baseLogger)
	review := services.NewReviewService(repos.verifications, aggregator, authz, secSvc, &baseLogger)
	status := services.NewStatusService(repos.verifications, feed, authz, cfg.HTTP.StatusMaxWait, &baseLogger)
	gate := services.NewGateService(repos.profiles, &baseLogger)
	schedule := services.NewScheduleService(
		repos.users, repos.profiles, repos.verifications, repos.visits,
		intake, runner, tokenSvc, secSvc, authz, validator,
		cfg.Review.RegistrationCooldown, &baseLogger,
	)
	proposals := services.NewProposalService(repos.proposals, gate, authz, &baseLogger)

	g, gctx := errgroup.WithContext(ctx)

	// 7. Moderator bot
	if cfg.Bot.Enabled() {
		if err := startModeratorBot(gctx, g, cfg.Bot, moderator.Deps{
			Cfg:           cfg.Bot,
			Review:        review,
			Verifications: repos.verifications,
			Store:         docStore,
			Bus:           bus,
		}, repos.users, authz, &baseLogger); err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to start moderator bot")
		}
	} else {
		baseLogger.Warn().Msg("TELEGRAM_MODERATOR_TOKEN not set, review cards will not be sent")
	}

	// 8. HTTP API
	handler := rest.NewRouter(rest.Services{
		Intake:    intake,
		Checks:    runner,
		Status:    status,
		Review:    review,
		Schedule:  schedule,
		Gate:      gate,
		Proposals: proposals,
		Authz:     authz,
		Tokens:    tokenSvc,
		Users:     repos.users,
	}, rest.RouterOptions{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Limiter:        limiter,
		Health:         health,
	}, &baseLogger)

	srv := rest.NewServer(cfg.HTTP.Addr, handler, cfg.HTTP.StatusMaxWait+15*time.Second, &baseLogger)
	g.Go(func() error { return srv.Start(gctx) })

	baseLogger.Info().Msg("Application started")

	if err := g.Wait(); err != nil {
		baseLogger.Error().Err(err).Msg("Application stopped with error")
	}
	if !bus.Drain(10 * time.Second) {
		baseLogger.Warn().Msg("Some event handlers did not finish")
	}
	baseLogger.Info().Msg("Application stopped")
}

func startModeratorBot(
	ctx context.Context,
	g *errgroup.Group,
	cfg config.ModeratorBotConfig,
	deps moderator.Deps,
	users ports.UserRepository,
	authz ports.Authorizer,
	baseLogger *zerolog.Logger,
) error {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	baseLogger.Info().Str("bot_username", api.Self.UserName).Msg("Moderator bot authorized")

	botClient := telegram.NewClient(api, baseLogger)
	deps.Bot = botClient

	router := moderator.NewModeratorRouter(users, authz, botClient, deps.Bus, baseLogger)
	moderator.RegisterAllHandlers(router, deps, baseLogger)

	if err := botClient.SetMenuCommands(ctx); err != nil {
		baseLogger.Warn().Err(err).Msg("Failed to set moderator menu commands")
	}

	server := moderator.NewModeratorServer(api, cfg, deps.Bus, baseLogger)
	g.Go(func() error { return server.Start(ctx) })
	return nil
}

func pingRedis(ctx context.Context, rdb *goredis.Client) error {
	return rdb.Ping(ctx).Err()
}
