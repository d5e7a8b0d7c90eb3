package factory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"librarian/internal/auth"
	"librarian/internal/config"
	"librarian/internal/database"
	"librarian/internal/domain"
	"librarian/internal/repository"
	"librarian/internal/service"
	"librarian/pkg/cache"
	"librarian/pkg/logger"
	"librarian/pkg/tracing"
)

type Factory interface {
	GetLogger() logger.Logger
	GetConfig() *config.Config
	GetDB() *sql.DB
	GetCache() cache.Cache
	GetCacheManager() cache.CacheStrategy
	GetWarmUpManager() *cache.WarmUpManager

	GetUserRepository() domain.UserRepository
	GetBookRepository() domain.BookRepository
	GetBorrowRepository() domain.BorrowRepository
	GetPenaltyRepository() domain.PenaltyRepository
	GetAuditLogRepository() domain.AuditLogRepository

	GetUserService() domain.UserService
	GetBookService() domain.BookService
	GetBorrowService() domain.BorrowService
	GetPenaltyService() domain.PenaltyService
	GetAuditLogService() domain.AuditLogService

	Close() error
}

type AppFactory struct {
	config        *config.Config
	logger        logger.Logger
	db            *sql.DB
	redisClient   *redis.Client
	cache         cache.Cache
	cacheManager  cache.CacheStrategy
	warmUpManager *cache.WarmUpManager
	clock         service.Clock

	tracingShutdown tracing.ShutdownFunc

	userRepository     domain.UserRepository
	bookRepository     domain.BookRepository
	borrowRepository   domain.BorrowRepository
	penaltyRepository  domain.PenaltyRepository
	auditLogRepository domain.AuditLogRepository

	userService     domain.UserService
	bookService     domain.BookService
	borrowService   domain.BorrowService
	penaltyService  domain.PenaltyService
	auditLogService domain.AuditLogService
}

// NewFactory loads the configuration from the environment and wires the
// application.
func NewFactory() (Factory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	return New(cfg, logger.New(logger.LogLevel(cfg.LogLevel), nil))
}

// New wires the application from an explicit configuration.
func New(cfg *config.Config, log logger.Logger) (*AppFactory, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	factory := &AppFactory{
		config: cfg,
		logger: log,
		db:     db,
		clock:  service.SystemClock,
	}

	if err := factory.initTracing(); err != nil {
		db.Close()
		return nil, err
	}

	if err := factory.initCache(); err != nil {
		factory.shutdownTracing()
		db.Close()
		return nil, err
	}

	factory.initRepositories()
	factory.initServices()
	factory.initWarmUp()

	return factory, nil
}

// initCache connects to Redis when enabled. Without Redis every read goes to
// the database through a no-op cache.
func (f *AppFactory) initCache() error {
	if !f.config.Redis.Enabled {
		f.cache = cache.NewNoopCache()
		f.cacheManager = cache.NewCacheManager(f.cache, f.logger)
		return nil
	}

	f.redisClient = cache.NewRedisClient(
		fmt.Sprintf("%s:%s", f.config.Redis.Host, f.config.Redis.Port),
		f.config.Redis.Password,
		f.config.Redis.DB,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.redisClient.Ping(ctx).Err(); err != nil {
		f.redisClient.Close()
		return fmt.Errorf("redis connection could not be established: %w", err)
	}

	f.cache = cache.NewGuardedCache(
		cache.NewRedisCache(f.redisClient, f.logger, "library"),
		cache.NewCacheBreaker(f.logger),
	)
	f.cacheManager = cache.NewCacheManager(f.cache, f.logger)
	return nil
}

func (f *AppFactory) initRepositories() {
	f.userRepository = repository.NewUserRepository(f.db, f.logger)
	f.bookRepository = repository.NewBookRepository(f.db, f.logger)
	f.borrowRepository = repository.NewBorrowRepository(f.db, f.logger)
	f.penaltyRepository = repository.NewPenaltyRepository(f.db, f.logger)
	f.auditLogRepository = repository.NewAuditLogRepository(f.db, f.logger)
}

func (f *AppFactory) initServices() {
	f.auditLogService = service.NewAuditLogService(f.auditLogRepository, f.logger)

	f.userService = service.NewUserService(
		f.userRepository,
		auth.NewBcryptHasher(f.config.Auth.BcryptCost),
		auth.NewJWTIssuer(f.config.Auth.JWTSecret, f.config.Auth.TokenTTL),
		f.auditLogService,
		f.logger,
		f.clock,
	)

	// Create base book service first
	baseBookService := service.NewBookService(f.bookRepository, f.auditLogService, f.logger, f.clock)
	// Wrap with caching
	f.bookService = service.NewCachedBookService(baseBookService, f.cacheManager, f.logger)

	baseBorrowService := service.NewBorrowService(
		f.borrowRepository,
		f.bookRepository,
		f.userRepository,
		f.penaltyRepository,
		f.auditLogService,
		f.logger,
		service.BorrowPolicy{
			LateThreshold:   f.config.Borrow.LateThreshold,
			PenaltyDuration: f.config.Borrow.PenaltyDuration,
		},
		f.clock,
	)
	// Ledger writes change stock, so they drop cached catalog entries
	f.borrowService = service.NewCachedBorrowService(baseBorrowService, f.cacheManager)

	f.penaltyService = service.NewPenaltyService(f.penaltyRepository, f.userRepository, f.auditLogService, f.logger)
}

// initWarmUp preloads the public catalog list, the most requested read.
func (f *AppFactory) initWarmUp() {
	f.warmUpManager = cache.NewWarmUpManager(f.logger)
	f.warmUpManager.Register("books", func(ctx context.Context) error {
		_, err := f.bookService.GetAll(ctx, domain.Caller{}, "")
		return err
	})
}

// initTracing installs the OTLP exporter when enabled and a no-op tracer
// provider otherwise.
func (f *AppFactory) initTracing() error {
	shutdown, err := tracing.Init(context.Background(), tracing.Config{
		Enabled:     f.config.Tracing.Enabled,
		Endpoint:    f.config.Tracing.Endpoint,
		ServiceName: f.config.Tracing.ServiceName,
		Environment: f.config.AppEnv,
	})
	if err != nil {
		return fmt.Errorf("tracing could not be initialized: %w", err)
	}
	f.tracingShutdown = shutdown

	if f.config.Tracing.Enabled {
		f.logger.Info("Tracing enabled", map[string]interface{}{"endpoint": f.config.Tracing.Endpoint})
	}
	return nil
}

func (f *AppFactory) shutdownTracing() {
	if f.tracingShutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.tracingShutdown(ctx); err != nil {
		f.logger.Warn("Tracer provider could not be shut down", map[string]interface{}{"error": err.Error()})
	}
}

func (f *AppFactory) Close() error {
	f.shutdownTracing()
	if f.redisClient != nil {
		if err := f.redisClient.Close(); err != nil {
			f.logger.Warn("Redis client could not be closed", map[string]interface{}{"error": err.Error()})
		}
	}
	return f.db.Close()
}

func (f *AppFactory) GetLogger() logger.Logger {
	return f.logger
}

func (f *AppFactory) GetConfig() *config.Config {
	return f.config
}

func (f *AppFactory) GetDB() *sql.DB {
	return f.db
}

func (f *AppFactory) GetCache() cache.Cache {
	return f.cache
}

func (f *AppFactory) GetCacheManager() cache.CacheStrategy {
	return f.cacheManager
}

func (f *AppFactory) GetWarmUpManager() *cache.WarmUpManager {
	return f.warmUpManager
}

func (f *AppFactory) GetUserRepository() domain.UserRepository {
	return f.userRepository
}

func (f *AppFactory) GetBookRepository() domain.BookRepository {
	return f.bookRepository
}

func (f *AppFactory) GetBorrowRepository() domain.BorrowRepository {
	return f.borrowRepository
}

func (f *AppFactory) GetPenaltyRepository() domain.PenaltyRepository {
	return f.penaltyRepository
}

func (f *AppFactory) GetAuditLogRepository() domain.AuditLogRepository {
	return f.auditLogRepository
}

func (f *AppFactory) GetUserService() domain.UserService {
	return f.userService
}

func (f *AppFactory) GetBookService() domain.BookService {
	return f.bookService
}

func (f *AppFactory) GetBorrowService() domain.BorrowService {
	return f.borrowService
}

func (f *AppFactory) GetPenaltyService() domain.PenaltyService {
	return f.penaltyService
}

func (f *AppFactory) GetAuditLogService() domain.AuditLogService {
	return f.auditLogService
}
