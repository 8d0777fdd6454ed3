package mcpstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// startMongoContainer brings up a throwaway MongoDB container for the
// duration of one test, skipping the test when Docker is unavailable rather
// than failing the suite. Grounded on registry/store/mongo/mongo_test.go's
// setupMongoDB, adapted to the v2 driver this package uses.
func startMongoContainer(t *testing.T) *mongodriver.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
		Tmpfs:        map[string]string{"/data/db": "rw"},
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker not available, skipping MongoDB-backed test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	client, err := mongodriver.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	require.NoError(t, client.Ping(ctx, readpref.Primary()))
	return client
}

func TestMongoStore_CreateGetRoundTrip(t *testing.T) {
	client := startMongoContainer(t)
	ctx := context.Background()

	store, err := NewMongoStore(ctx, client, "flowengine_test", "mcp_servers", 5*time.Second)
	require.NoError(t, err)

	rec := Record{
		Name: "github", DisplayName: "GitHub", Command: "npx",
		Args: []string{"-y", "@modelcontextprotocol/server-github"},
		Env:  map[string]string{"GITHUB_TOKEN": "x"}, Enabled: true,
	}
	require.NoError(t, store.Create(ctx, "tenant-1", rec))

	got, ok, err := store.Get(ctx, "tenant-1", "github")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.Name, got.Name)
	require.Equal(t, rec.Command, got.Command)
	require.Equal(t, rec.Env, got.Env)
}

// TestMongoStore_PerTenantIsolationProperty checks that records created
// under distinct tenant ids never leak into another tenant's List, for a
// range of generated (tenant, server name) pairs.
func TestMongoStore_PerTenantIsolationProperty(t *testing.T) {
	client := startMongoContainer(t)
	ctx := context.Background()

	store, err := NewMongoStore(ctx, client, "flowengine_test", "mcp_tenant_property", 5*time.Second)
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("a tenant only ever lists its own records", prop.ForAll(
		func(tenantA, tenantB, name string) bool {
			if tenantA == tenantB {
				return true
			}
			if err := store.Create(ctx, tenantA, Record{Name: name, Command: "echo"}); err != nil {
				return false
			}
			defer store.Delete(ctx, tenantA, name)

			listB, err := store.List(ctx, tenantB)
			if err != nil {
				return false
			}
			for _, r := range listB {
				if r.Name == name {
					return false
				}
			}
			return true
		},
		gen.OneConstOf("tenant-a", "tenant-x"),
		gen.OneConstOf("tenant-b", "tenant-y"),
		gen.OneConstOf("github", "slack", "filesystem"),
	))

	properties.TestingRun(t)
}
