package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/LucasSckenal/nexo-sub000/internal/auth"
	"github.com/LucasSckenal/nexo-sub000/internal/board"
	"github.com/LucasSckenal/nexo-sub000/internal/cache"
	"github.com/LucasSckenal/nexo-sub000/internal/config"
	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/docstore/pgstore"
	"github.com/LucasSckenal/nexo-sub000/internal/docstore/sqlitestore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/move"
	"github.com/LucasSckenal/nexo-sub000/internal/notify"
	"github.com/LucasSckenal/nexo-sub000/internal/policy"
	"github.com/LucasSckenal/nexo-sub000/internal/reminder"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
	"github.com/LucasSckenal/nexo-sub000/internal/service"
	"github.com/LucasSckenal/nexo-sub000/internal/sprint"
	"github.com/LucasSckenal/nexo-sub000/migrations"
)

const loginSweepTimeout = 30 * time.Second

// Core is the wired board backend without an HTTP surface. The API server
// and boardctl both build one.
type Core struct {
	Config config.Config
	Log    *slog.Logger

	Store *docstore.Store
	Redis *redis.Client

	Projects      *repo.ProjectRepo
	Sprints       *repo.SprintRepo
	Epics         *repo.EpicRepo
	Tasks         *repo.TaskRepo
	Notifications *repo.NotificationRepo
	Markers       *repo.MarkerRepo
	Users         *repo.DocUserRepo

	Sessions  *auth.Store
	UserSvc   *service.UserService
	Limits    *policy.Service
	SprintMgr *sprint.Manager
	Notifier  *notify.Service
	Inbox     *notify.Inbox
	Mover     *move.Mover
	Sync      *board.Synchronizer
	Reminders *reminder.Scheduler

	db *pgxpool.Pool
}

// NewCore connects the configured store driver and Redis, runs migrations
// and builds every service.
func NewCore(ctx context.Context, cfg config.Config, log *slog.Logger) (*Core, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Core{Config: cfg, Log: log}

	rdb, err := newRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	c.Redis = rdb

	backend, notifier, err := c.openBackend(ctx)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	retry := docstore.DefaultRetryPolicy()
	retry.MaxElapsed = cfg.Board.RetryMaxElapsed.Duration()
	c.Store = docstore.New(backend, notifier, log).WithRetry(retry)

	loc, err := cfg.Board.Location()
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Projects = repo.NewProjectRepo(c.Store)
	c.Sprints = repo.NewSprintRepo(c.Store)
	c.Epics = repo.NewEpicRepo(c.Store)
	c.Tasks = repo.NewTaskRepo(c.Store, c.Projects, c.Sprints, c.Epics)
	c.Notifications = repo.NewNotificationRepo(c.Store)
	c.Markers = repo.NewMarkerRepo(c.Store)
	c.Users = repo.NewDocUserRepo(c.Store)

	inboxCache := cache.NewNotificationCache(rdb, cfg.Redis.DefaultTTL.Duration())
	c.Sessions = auth.NewStore(rdb, cfg.Redis.SessionTTL.Duration())
	c.UserSvc = service.NewUserService(c.Users)
	c.Limits = policy.NewService(c.Projects)
	c.SprintMgr = sprint.NewManager(c.Projects, c.Sprints, c.Tasks, log).WithRetry(retry)
	c.Notifier = notify.NewService(c.Notifications, inboxCache, log).WithConcurrency(cfg.Board.FanoutConcurrency)
	c.Inbox = notify.NewInbox(c.Notifications, inboxCache, log)
	c.Mover = move.NewMover(c.Projects, c.Sprints, c.Tasks, c.Notifier, log)
	c.Sync = board.NewSynchronizer(c.Store, c.Projects, c.Sprints, c.Tasks, log)
	c.Reminders = reminder.NewScheduler(c.Tasks, c.Markers, c.Notifier, loc, log)
	return c, nil
}

func (c *Core) openBackend(ctx context.Context) (docstore.Backend, docstore.Notifier, error) {
	cfg := c.Config
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if err := MigratePostgres(cfg.PG.DSN); err != nil {
			return nil, nil, err
		}
		db, err := newPostgres(ctx, cfg.PG.DSN)
		if err != nil {
			return nil, nil, err
		}
		c.db = db
		return pgstore.New(db), docstore.NewRedisNotifier(c.Redis), nil
	case config.DriverSQLite:
		st, err := sqlitestore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, docstore.NewRedisNotifier(c.Redis), nil
	case config.DriverMemory:
		c.Log.Warn("using in-memory document store; data is lost on exit")
		return docstore.NewMemory(), docstore.NewLocalNotifier(), nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// SweepOnLogin runs one reminder sweep for the identity that just signed in.
func (c *Core) SweepOnLogin(ctx context.Context, id domain.Identity) {
	ctx, cancel := context.WithTimeout(ctx, loginSweepTimeout)
	defer cancel()
	res, err := c.Reminders.Sweep(ctx, id.ID)
	if err != nil {
		c.Log.Warn("login reminder sweep failed", slog.String("user_id", id.ID), slog.String("error", err.Error()))
		return
	}
	if res.Sent > 0 || res.Failed > 0 {
		c.Log.Info("login reminder sweep",
			slog.String("user_id", id.ID),
			slog.Int("due", res.Due),
			slog.Int("sent", res.Sent),
			slog.Int("failed", res.Failed),
		)
	}
}

func (c *Core) Close() error {
	var err error
	if c.Store != nil {
		err = c.Store.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	return err
}

func newPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

// MigratePostgres applies the embedded goose migrations to dsn.
func MigratePostgres(dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("goose open db: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.Up(db, migrations.PostgresDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
