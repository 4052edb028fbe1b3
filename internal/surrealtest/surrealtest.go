// Package surrealtest starts a shared SurrealDB testcontainers instance for
// jobstore and lease integration tests, generalizing vire's
// tests/common/surrealdb.go container helper for in-package _test.go use.
package surrealtest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bobmcallan/gardensync/internal/common"
)

// DockerEnvVar gates these tests behind an opt-in env var, same convention
// as vire's VIRE_TEST_DOCKER.
const DockerEnvVar = "GARDENSYNC_TEST_DOCKER"

var (
	once      sync.Once
	container testcontainers.Container
	address   string
	startErr  error
)

// Container is a connected, namespaced SurrealDB handle for a single test.
// Each test gets its own namespace/database on the shared container so
// tests don't see each other's rows.
type Container struct {
	DB        *surrealdb.DB
	Address   string
	Namespace string
	Database  string
}

// Start skips the test unless GARDENSYNC_TEST_DOCKER=true, otherwise starts
// (once per process) a SurrealDB container and returns a freshly
// namespaced connection for the caller's test.
func Start(t *testing.T) *Container {
	t.Helper()

	if os.Getenv(DockerEnvVar) != "true" {
		t.Skipf("docker-backed SurrealDB tests disabled (set %s=true to enable)", DockerEnvVar)
		return nil
	}

	once.Do(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			).WithDeadline(60 * time.Second),
		}

		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			startErr = fmt.Errorf("start surrealdb container: %w", err)
			return
		}

		host, err := c.Host(ctx)
		if err != nil {
			startErr = fmt.Errorf("get surrealdb host: %w", err)
			return
		}
		mappedPort, err := c.MappedPort(ctx, "8000/tcp")
		if err != nil {
			startErr = fmt.Errorf("get surrealdb port: %w", err)
			return
		}

		container = c
		address = fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port())
	})

	if startErr != nil {
		t.Fatalf("surrealtest: %v", startErr)
	}

	db, err := surrealdb.New(address)
	if err != nil {
		t.Fatalf("surrealtest: connect: %v", err)
	}
	if _, err := db.SignIn(context.Background(), map[string]interface{}{"user": "root", "pass": "root"}); err != nil {
		t.Fatalf("surrealtest: sign in: %v", err)
	}
	// Isolate each test into its own database on the shared namespace.
	database := fmt.Sprintf("test_%d", time.Now().UnixNano())
	if err := db.Use(context.Background(), "gardensync_test", database); err != nil {
		t.Fatalf("surrealtest: use namespace/database: %v", err)
	}
	for _, table := range []string{"job_queue", "queue_lease"} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](context.Background(), db, sql, nil); err != nil {
			t.Fatalf("surrealtest: define table %s: %v", table, err)
		}
	}

	t.Cleanup(func() { db.Close(context.Background()) })
	return &Container{DB: db, Address: address, Namespace: "gardensync_test", Database: database}
}

// Logger is a silent logger for test stores.
func Logger() *common.Logger { return common.NewSilentLogger() }
