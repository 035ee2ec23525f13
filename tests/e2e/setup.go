//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"merchant-backend/cmd/bootstrap"
	"merchant-backend/cmd/bootstrap/components"
	"merchant-backend/internal/handler/middleware"
	"merchant-backend/internal/infra/db"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/migrations"
	"merchant-backend/tests/common/dbtest"

	"github.com/docker/go-connections/nat"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
)

var (
	containersOnce        sync.Once
	postgresTestContainer testcontainers.Container
	redisTestContainer    testcontainers.Container
	rabbitTestContainer   testcontainers.Container
	containersErr         error

	testUser     = "test"
	testPassword = "testpass"
)

type ContainerInfo struct {
	Host string
	Port nat.Port
}

type containers struct {
	Postgres ContainerInfo
	Redis    ContainerInfo
	RabbitMQ ContainerInfo
}

// ------------------------------------------------------------
// Per test process setup
// ------------------------------------------------------------
func setupE2EEnvironment(t *testing.T) (*pgxpool.Pool, *redis.Client, *gin.Engine, config.Config) {
	info := startContainers(t)

	pool, dbConfig := prepareDatabase(t, info.Postgres)
	cfg := createTestConfig(dbConfig, info)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	t.Cleanup(func() { _ = redisClient.Close() })

	router, app := buildE2EApp(t, pool, cfg)
	require.NotNil(t, router, "router setup failed")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			slog.Warn("failed to stop fx app", "error", err.Error())
		}
	})

	return pool, redisClient, router, cfg
}

// ------------------------------------------------------------
// Containers
// ------------------------------------------------------------
func startContainers(t *testing.T) containers {
	gin.SetMode(gin.TestMode)

	containersOnce.Do(func() {
		postgresTestContainer, containersErr = startPostgreSQLContainer()
		if containersErr != nil {
			return
		}
		redisTestContainer, containersErr = startRedisContainer()
		if containersErr != nil {
			return
		}
		rabbitTestContainer, containersErr = startRabbitMQContainer()
	})
	require.NoError(t, containersErr, "failed to start e2e containers")

	pg, err := getContainerHostPort(postgresTestContainer, "5432/tcp")
	require.NoError(t, err)
	rd, err := getContainerHostPort(redisTestContainer, "6379/tcp")
	require.NoError(t, err)
	mq, err := getContainerHostPort(rabbitTestContainer, "5672/tcp")
	require.NoError(t, err)

	return containers{Postgres: pg, Redis: rd, RabbitMQ: mq}
}

func startGenericContainer(req testcontainers.ContainerRequest, timeout time.Duration) (testcontainers.Container, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
}

func startPostgreSQLContainer() (testcontainers.Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:17",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
			"POSTGRES_DB":       "postgres",
		},
		Tmpfs: map[string]string{
			"/var/lib/postgresql/data": "rw,size=512m",
		},
		Cmd: []string{
			"postgres",
			"-c", "fsync=off",
			"-c", "full_page_writes=off",
			"-c", "synchronous_commit=off",
			"-c", "max_connections=200",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
				testUser, testPassword, host, port.Port())
		}).WithStartupTimeout(60 * time.Second),
		Labels: map[string]string{"purpose": "e2e-tests"},
	}
	return startGenericContainer(req, 3*time.Minute)
}

func startRedisContainer() (testcontainers.Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		Labels:       map[string]string{"purpose": "e2e-tests"},
	}
	return startGenericContainer(req, time.Minute)
}

func startRabbitMQContainer() (testcontainers.Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort("5672/tcp"),
		).WithDeadline(90 * time.Second),
		Labels: map[string]string{"purpose": "e2e-tests"},
	}
	return startGenericContainer(req, 2*time.Minute)
}

func getContainerHostPort(c testcontainers.Container, port string) (ContainerInfo, error) {
	ctx := context.Background()
	mappedPort, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return ContainerInfo{}, err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return ContainerInfo{}, err
	}
	return ContainerInfo{Host: host, Port: mappedPort}, nil
}

// ------------------------------------------------------------
// Database: one database per test process, migrated with the
// same code path as the migrate command
// ------------------------------------------------------------
func prepareDatabase(t *testing.T, postgresInfo ContainerInfo) (*pgxpool.Pool, config.DBConfig) {
	dbName := "testdb_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	adminDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
		testUser, testPassword, postgresInfo.Host, postgresInfo.Port.Port())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adminPool, err := pgxpool.New(ctx, adminDSN)
	require.NoError(t, err, "admin connection failed")
	defer adminPool.Close()

	_, err = adminPool.Exec(ctx, "CREATE DATABASE "+dbName)
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()

		cleanupPool, err := pgxpool.New(cleanupCtx, adminDSN)
		if err != nil {
			slog.Warn("failed to connect for cleanup", "database", dbName, "error", err.Error())
			return
		}
		defer cleanupPool.Close()

		if _, err := cleanupPool.Exec(cleanupCtx, "DROP DATABASE IF EXISTS "+dbName+" WITH (FORCE)"); err != nil {
			slog.Warn("failed to drop test database", "database", dbName, "error", err.Error())
		}
	})

	dbConfig := config.DBConfig{
		Host:     postgresInfo.Host,
		Port:     postgresInfo.Port.Port(),
		User:     testUser,
		Password: testPassword,
		DBName:   dbName,
		SSLMode:  "disable",
		TimeZone: "UTC",
		MaxConns: 10,
	}

	pool, cleanup, err := db.Connect(ctx, dbConfig)
	require.NoError(t, err, "database connection failed")
	t.Cleanup(cleanup)

	_, err = db.Migrate(ctx, pool, migrations.FS, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err, "database migration failed")

	return pool, dbConfig
}

func createTestConfig(dbConfig config.DBConfig, info containers) config.Config {
	cfg := config.NewTestConfig()
	cfg.DB = dbConfig
	cfg.Redis.Addr = fmt.Sprintf("%s:%s", info.Redis.Host, info.Redis.Port.Port())
	cfg.RabbitMQ.URL = fmt.Sprintf("amqp://guest:guest@%s:%s/", info.RabbitMQ.Host, info.RabbitMQ.Port.Port())
	// every test process gets its own queue on the shared broker
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	cfg.RabbitMQ.Queue = "transaction.created." + suffix
	cfg.RabbitMQ.RoutingKey = "transaction.created." + suffix
	cfg.Redis.Prefix = "throttler-" + suffix
	// below the per-address auth budget so the merchant limit trips first
	cfg.Throttle.TransactionsLimit = 8
	return cfg
}

// ------------------------------------------------------------
// fx app: the serve graph with test config and pool
// ------------------------------------------------------------
func buildE2EApp(t *testing.T, pool *pgxpool.Pool, cfg config.Config) (*gin.Engine, *fx.App) {
	var router *gin.Engine

	app := fx.New(
		fx.Provide(
			func() *pgxpool.Pool { return pool },
			func() config.Config { return cfg },
			func() *gin.Engine { return gin.New() },
			func() *middleware.Logger { return middleware.NewLogger(cfg.Log) },
			func(l *middleware.Logger) *slog.Logger { return l.GetSlogLogger() },
		),
		bootstrap.MetricsModule,
		bootstrap.RedisModule,
		bootstrap.BrokerModule,
		bootstrap.JWTModule,
		components.PersistenceModule,
		components.CacheModule,
		components.UseCaseModule,
		components.HandlerModule,
		components.SettlementModule,
		fx.Invoke(components.StartWorker),

		fx.Populate(&router),
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx), "failed to start fx app")

	return router, app
}

// ------------------------------------------------------------
// Shared suite
// ------------------------------------------------------------
type SharedSuite struct {
	suite.Suite
	Router *gin.Engine
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Config config.Config
}

func (s *SharedSuite) SetupSharedSuite(t *testing.T) {
	pool, redisClient, router, cfg := setupE2EEnvironment(t)
	s.DB = pool
	s.Redis = redisClient
	s.Router = router
	s.Config = cfg
}

func (s *SharedSuite) SetupSuite() {
	s.SetupSharedSuite(s.T())
}

func (s *SharedSuite) SetupSubTest() {
	require.NoError(s.T(), dbtest.ResetDB(s.DB), "failed to reset database state")
	require.NoError(s.T(), s.Redis.FlushDB(context.Background()).Err(), "failed to reset redis")
}
