package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/bootstrap"
	"github.com/iliyamo/estate-portal/internal/config"
	"github.com/iliyamo/estate-portal/internal/database"
	"github.com/iliyamo/estate-portal/internal/handler"
	"github.com/iliyamo/estate-portal/internal/mail"
	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/queue"
	"github.com/iliyamo/estate-portal/internal/realtime"
	"github.com/iliyamo/estate-portal/internal/repository"
	"github.com/iliyamo/estate-portal/internal/router"
	"github.com/iliyamo/estate-portal/internal/server"
	"github.com/iliyamo/estate-portal/internal/service"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newDB,
			newRedis,
			repository.NewTxManager,
			repository.NewIdentityRepo,
			repository.NewResidentRepo,
			repository.NewMemberRepo,
			repository.NewInvitationRepo,
			repository.NewStaffRepo,
			repository.NewTokenRepo,
			repository.NewVisitorRepo,
			repository.NewUpdateRepo,
			repository.NewAmenityRepo,
			repository.NewCodeStore,
			newRoleCache,
			newRateLimiter,
			newResponseCache,
			newResendMailer,
			newMailer,
			newBroker,
			newRoleResolver,
			newIdentityService,
			newMembershipService,
			newStaffService,
			newUpdateService,
			newHandlers,
			newRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(
			func(lc fx.Lifecycle, cfg config.Config, staff *service.StaffService, logger *zap.Logger) {
				bootstrap.EnsureSuperAdmin(lc, cfg, staff, logger)
			},
			startHTTPServer,
		),
	)
	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return config.NewLogger(cfg.Env)
}

func newDB(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return db, nil
}

// newRedis returns a nil interface when Redis is unreachable so the
// optional features see a plain nil rather than a typed nil pointer.
func newRedis(lc fx.Lifecycle, logger *zap.Logger) redis.UniversalClient {
	client := config.NewRedisClient(context.Background())
	if client == nil {
		logger.Warn("redis unavailable: response cache off, local rate limiting, realtime polling")
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return client.Close() },
	})
	return client
}

func newRoleCache(rdb redis.UniversalClient, cfg config.Config) *repository.RoleCache {
	return repository.NewRoleCache(rdb, cfg.RoleCacheTTL)
}

func newRateLimiter(rdb redis.UniversalClient, logger *zap.Logger) *middleware.RateLimiter {
	return middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, logger)
}

func newResponseCache(rdb redis.UniversalClient, logger *zap.Logger) *middleware.ResponseCache {
	return middleware.NewResponseCache(config.LoadCacheConfig(), rdb, logger)
}

// newMailer picks direct Resend delivery or the RabbitMQ queue drained by
// cmd/worker for the emails services send on their own.
func newMailer(cfg config.Config, direct *mail.ResendMailer, logger *zap.Logger) mail.Mailer {
	if cfg.EmailDelivery == "queue" {
		logger.Info("email delivery through queue", zap.String("queue", queue.EmailQueue))
		return mail.NewQueueMailer(queue.NewPublisher(cfg.AMQPURL, logger), cfg.ResendAPIKey)
	}
	return direct
}

// newResendMailer always talks to the provider.  POST /api/send uses it so
// provider errors reach the caller in every delivery mode.
func newResendMailer(cfg config.Config, logger *zap.Logger) *mail.ResendMailer {
	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set: outgoing email will fail")
	}
	return mail.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, logger)
}

func newBroker(cfg config.Config, rdb redis.UniversalClient, updates *repository.UpdateRepo, logger *zap.Logger) realtime.Broker {
	if cfg.RealtimeMode == "redis" && rdb != nil {
		return realtime.NewRedisBroker(rdb, logger)
	}
	pb := realtime.NewPollBroker(cfg.PollInterval, logger)
	pb.Watch(realtime.TopicUpdates, updates.Version)
	logger.Info("realtime polling", zap.Duration("interval", cfg.PollInterval))
	return pb
}

func newRoleResolver(staff *repository.StaffRepo, residents *repository.ResidentRepo, members *repository.MemberRepo, cache *repository.RoleCache, logger *zap.Logger) *service.RoleResolver {
	return &service.RoleResolver{Staff: staff, Residents: residents, Members: members, Cache: cache, Log: logger}
}

type stores struct {
	fx.In

	Tx          *repository.TxManager
	Identities  *repository.IdentityRepo
	Residents   *repository.ResidentRepo
	Members     *repository.MemberRepo
	Invitations *repository.InvitationRepo
	Staff       *repository.StaffRepo
	Tokens      *repository.TokenRepo
	Visitors    *repository.VisitorRepo
	Updates     *repository.UpdateRepo
	Amenities   *repository.AmenityRepo
	Codes       *repository.CodeStore
}

func newIdentityService(cfg config.Config, s stores, roles *service.RoleResolver, mailer mail.Mailer, logger *zap.Logger) *service.IdentityService {
	return &service.IdentityService{
		Cfg: service.IdentityConfig{
			JWTSecret:  cfg.JWTSecret,
			AccessTTL:  cfg.AccessTTL(),
			RefreshTTL: cfg.RefreshTTL(),
			CodeTTL:    cfg.AuthCodeTTL,
			BcryptCost: cfg.BcryptCost,
			AppURL:     cfg.AppURL,
		},
		Tx:         s.Tx,
		Identities: s.Identities,
		Residents:  s.Residents,
		Members:    s.Members,
		Staff:      s.Staff,
		Tokens:     s.Tokens,
		Codes:      s.Codes,
		Roles:      roles,
		Mailer:     mailer,
		Log:        logger,
	}
}

func newMembershipService(cfg config.Config, s stores, roles *service.RoleResolver, mailer mail.Mailer, logger *zap.Logger) *service.MembershipService {
	return &service.MembershipService{
		Cfg:         service.MembershipConfig{AppURL: cfg.AppURL, InviteTTL: cfg.InviteTTL, BcryptCost: cfg.BcryptCost},
		Tx:          s.Tx,
		Identities:  s.Identities,
		Residents:   s.Residents,
		Members:     s.Members,
		Invitations: s.Invitations,
		Tokens:      s.Tokens,
		Roles:       roles,
		Mailer:      mailer,
		Log:         logger,
	}
}

func newStaffService(cfg config.Config, s stores, logger *zap.Logger) *service.StaffService {
	return &service.StaffService{
		Tx:         s.Tx,
		Identities: s.Identities,
		Members:    s.Members,
		Staff:      s.Staff,
		BcryptCost: cfg.BcryptCost,
		Log:        logger,
	}
}

func newUpdateService(s stores, broker realtime.Broker, logger *zap.Logger) *service.UpdateService {
	return &service.UpdateService{Updates: s.Updates, Broker: broker, Log: logger}
}

type redisPinger struct{ redis.UniversalClient }

func (p redisPinger) PingContext(ctx context.Context) error { return p.Ping(ctx).Err() }

type handlerDeps struct {
	fx.In

	DB          *sql.DB
	Redis       redis.UniversalClient
	Stores      stores
	Identity    *service.IdentityService
	Memberships *service.MembershipService
	Staff       *service.StaffService
	Updates     *service.UpdateService
	Direct      *mail.ResendMailer
}

func newHandlers(cfg config.Config, d handlerDeps, cache *middleware.ResponseCache, logger *zap.Logger) router.Handlers {
	ready := map[string]handler.Pinger{"mysql": d.DB}
	if d.Redis != nil {
		ready["redis"] = redisPinger{d.Redis}
	}
	directory := &service.DirectoryService{Residents: d.Stores.Residents, Members: d.Stores.Members}
	visitors := &service.VisitorService{Visitors: d.Stores.Visitors, Members: d.Stores.Members}
	amenities := &service.AmenityService{Amenities: d.Stores.Amenities}

	return router.Handlers{
		Auth:      handler.NewAuthHandler(d.Identity, d.Memberships, cfg.CookieSecure, logger),
		Pages:     handler.NewPagesHandler(d.Identity, logger),
		Directory: handler.NewDirectoryHandler(directory, logger),
		Send:      handler.NewSendHandler(d.Direct, logger),
		Household: handler.NewHouseholdHandler(d.Memberships, logger),
		Visitors:  handler.NewVisitorsHandler(visitors, logger),
		Updates:   handler.NewUpdatesHandler(d.Updates, logger),
		Amenities: handler.NewAmenitiesHandler(amenities, cache, logger),
		Staff:     handler.NewStaffHandler(d.Staff, logger),
		Ready:     handler.Ready(ready),
	}
}

func newRouter(cfg config.Config, h router.Handlers, roles *service.RoleResolver, limiter *middleware.RateLimiter, cache *middleware.ResponseCache, logger *zap.Logger) *echo.Echo {
	return router.New(h, router.Options{
		JWTSecret: cfg.JWTSecret,
		Roles:     roles,
		Limiter:   limiter,
		Cache:     cache,
		Log:       logger,
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, limiter *middleware.RateLimiter, logger *zap.Logger) {
	addr := ":" + cfg.Port
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})
			go func() {
				defer close(done)
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			logger.Info("listening",
				zap.String("addr", addr),
				zap.String("env", cfg.Env),
				zap.Stringer("limiter", limiter))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
