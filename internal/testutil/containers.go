// Package testutil starts the backing services used by integration and e2e
// tests and seeds the ticket tables they read.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/smartclaim/triage/internal/database"
)

const (
	postgresImage = "pgvector/pgvector:0.8.1-pg18"
	qdrantImage   = "qdrant/qdrant:v1.16.2"
	rustfsImage   = "rustfs/rustfs:latest"

	pgCredential    = "claimd"
	RustFSAccessKey = "rustfsadmin"
	RustFSSecretKey = "rustfsadmin"
)

// service is a started container and the host it is reachable on.
type service struct {
	Container testcontainers.Container
	Host      string
}

func (s service) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(s.Container)
}

// start runs req and resolves the mapped host port of each wanted port.
func start(ctx context.Context, t *testing.T, name string, req testcontainers.ContainerRequest, ports ...nat.Port) (service, []string) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s container: %v", name, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get %s host: %v", name, err)
	}

	mapped := make([]string, len(ports))
	for i, p := range ports {
		port, err := container.MappedPort(ctx, p)
		if err != nil {
			t.Fatalf("failed to get %s port %s: %v", name, p, err)
		}
		mapped[i] = port.Port()
	}
	return service{Container: container, Host: host}, mapped
}

// PostgresContainer hosts both the source ticket tables and the pgvector index.
type PostgresContainer struct {
	service
	Port     string
	User     string
	Password string
	Database string
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	svc, ports := start(ctx, t, "postgres", testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCredential,
			"POSTGRES_PASSWORD": pgCredential,
			"POSTGRES_DB":       pgCredential,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}, "5432")

	return &PostgresContainer{
		service:  svc,
		Port:     ports[0],
		User:     pgCredential,
		Password: pgCredential,
		Database: pgCredential,
	}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.User, pc.Password, pc.Host, pc.Port, pc.Database)
}

// QdrantContainer exposes Qdrant's gRPC port.
type QdrantContainer struct {
	service
	Port int
}

func NewQdrantContainer(ctx context.Context, t *testing.T) *QdrantContainer {
	svc, ports := start(ctx, t, "qdrant", testcontainers.ContainerRequest{
		Image:        qdrantImage,
		ExposedPorts: []string{"6333/tcp", "6334/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForHTTP("/readyz").WithPort("6333/tcp"),
			wait.ForListeningPort("6334/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}, "6334")

	grpcPort, err := strconv.Atoi(ports[0])
	if err != nil {
		t.Fatalf("invalid qdrant port %q: %v", ports[0], err)
	}
	return &QdrantContainer{service: svc, Port: grpcPort}
}

// RustFSContainer is an S3-compatible object store for SLA model artifacts.
type RustFSContainer struct {
	service
	Port string
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	svc, ports := start(ctx, t, "rustfs", testcontainers.ContainerRequest{
		Image:        rustfsImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSAccessKey,
			"RUSTFS_SECRET_KEY": RustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000")

	return &RustFSContainer{service: svc, Port: ports[0]}
}

func (rc *RustFSContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", rc.Host, rc.Port)
}

// NewTestPool connects to pc, retrying while the server finishes starting,
// then applies the vector index migrations and the source ticket schema.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	t.Helper()

	var pool *pgxpool.Pool
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.New(ctx, pc.ConnectionString())
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect to postgres after retries: %v", err)
	}

	if err := database.Migrate(pc.ConnectionString(), nil); err != nil {
		pool.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, SourceSchema); err != nil {
		pool.Close()
		t.Fatalf("failed to create source schema: %v", err)
	}
	return pool
}
