// Package testutil starts throwaway infrastructure for integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/cloo-solutions/ragbot/internal/database"
)

const (
	pgvectorImage = "pgvector/pgvector:0.8.1-pg18"
	minioImage    = "minio/minio:latest"

	startupTimeout = 60 * time.Second
)

// endpoint is a started container and the host:port it is reachable on.
type endpoint struct {
	container testcontainers.Container
	host      string
	port      string
}

// start runs req and registers termination with t.Cleanup.
func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port nat.Port) endpoint {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("container port %s: %v", port, err)
	}
	return endpoint{container: container, host: host, port: mapped.Port()}
}

// PostgresContainer is a pgvector-enabled Postgres instance.
type PostgresContainer struct {
	endpoint
	User     string
	Password string
	Database string
}

// NewPostgresContainer starts Postgres with the pgvector extension available.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	const cred = "ragbot"
	ep := start(ctx, t, testcontainers.ContainerRequest{
		Image:        pgvectorImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     cred,
			"POSTGRES_PASSWORD": cred,
			"POSTGRES_DB":       cred,
		},
		// The entrypoint restarts the server once after init.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(startupTimeout),
	}, nat.Port("5432/tcp"))

	return &PostgresContainer{endpoint: ep, User: cred, Password: cred, Database: cred}
}

// ConnectionString returns a pgx-compatible URL.
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.User, pc.Password, pc.host, pc.port, pc.Database)
}

// MinIOContainer is an S3-compatible object store.
type MinIOContainer struct {
	endpoint
	AccessKey string
	SecretKey string
}

// NewMinIOContainer starts MinIO with static root credentials.
func NewMinIOContainer(ctx context.Context, t *testing.T) *MinIOContainer {
	const user, pass = "minioadmin", "minioadmin"
	ep := start(ctx, t, testcontainers.ContainerRequest{
		Image:        minioImage,
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     user,
			"MINIO_ROOT_PASSWORD": pass,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(startupTimeout),
	}, nat.Port("9000/tcp"))

	return &MinIOContainer{endpoint: ep, AccessKey: user, SecretKey: pass}
}

// Endpoint returns the S3 endpoint URL.
func (mc *MinIOContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", mc.host, mc.port)
}

// NewTestPool applies the migrations in migrationsDir with golang-migrate and
// returns a pool closed at test cleanup.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if err = database.Migrate(pc.ConnectionString(), migrationsDir, zaptest.NewLogger(t)); err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 4})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// TruncateAll empties every table for test isolation.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"rag_chunks", "rag_indexes"} {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
