package tcpostgres

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultImage = "postgres:17"
	dbPort       = "5432/tcp"
)

// DBContainer is a reusable postgres container holding the replay test database
type DBContainer struct {
	testcontainers.Container
	user     string
	password string
	dbName   string
}

type ContainerOption func(req *testcontainers.ContainerRequest)

// WithImage overrides the postgres image; TESTDB_IMAGE is used if set.
func WithImage(image string) ContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		if image != "" {
			req.Image = image
		}
	}
}

func WithName(containerName string) ContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.Name = containerName
	}
}

// WithStartupTimeout limits the time until postgres reports to be ready
func WithStartupTimeout(d time.Duration) ContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.WaitingFor = wait.ForAll(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort(dbPort),
		).WithDeadline(d)
	}
}

// StartContainer starts (or reuses) the postgres container. The data
// directory lives on a tmpfs, nothing survives a container restart.
func StartContainer(ctx context.Context, opts ...ContainerOption) (*DBContainer, error) {
	ret := &DBContainer{user: "postgres", password: "password", dbName: "replay"}
	req := testcontainers.ContainerRequest{
		Image: defaultImage,
		Env: map[string]string{
			"POSTGRES_USER":     ret.user,
			"POSTGRES_PASSWORD": ret.password,
			"POSTGRES_DB":       ret.dbName,
		},
		ExposedPorts: []string{dbPort},
		Cmd:          []string{"postgres", "-c", "fsync=off", "-c", "synchronous_commit=off"},
		Tmpfs:        map[string]string{"/var/lib/postgresql/data": "rw"},
	}
	WithStartupTimeout(time.Minute)(&req)
	WithImage(os.Getenv("TESTDB_IMAGE"))(&req)
	for _, opt := range opts {
		opt(&req)
	}

	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Reuse:            req.Name != "",
		})
	if err != nil {
		return nil, err
	}
	ret.Container = container
	return ret, nil
}

// ConnectionString returns the url to reach the database from the host
func (c *DBContainer) ConnectionString(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, nat.Port(dbPort))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.user, c.password, host, port.Port(), c.dbName), nil
}
