package persist

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
)

func TestS3Store(t *testing.T) {
	endpoint := os.Getenv("S3_MINIO_ENDPOINT")
	if len(endpoint) == 0 {
		// Use testcontainers for reliable container management
		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     testAccessKey,
				"MINIO_ROOT_PASSWORD": testSecretKey,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		}

		minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			t.Skipf("Skipping S3 store test, cannot start MinIO container: %v", err)
		}

		defer func() {
			if err = minioContainer.Terminate(ctx); err != nil {
				t.Logf("Warning: Failed to terminate MinIO container: %v", err)
			}
		}()

		// Get the mapped port
		mappedPort, err := minioContainer.MappedPort(ctx, "9000")
		if err != nil {
			t.Fatalf("Failed to get mapped port: %v", err)
		}

		endpoint = fmt.Sprintf("http://localhost:%s", mappedPort.Port())
	}

	host, useSSL := parseEndpoint(endpoint)

	store, err := NewS3Store(S3Config{
		Endpoint:        host,
		AccessKeyID:     testAccessKey,
		SecretAccessKey: testSecretKey,
		UseSSL:          useSSL,
		Region:          "us-east-1",
		Bucket:          "test-rubeen-store",
		KeyPrefix:       "test/",
	})
	if err != nil {
		t.Fatalf("Failed to create S3 store: %v", err)
	}

	testStoreImplementation(t, store)
}

// parseEndpoint extracts host:port and SSL flag from an endpoint URL
func parseEndpoint(endpoint string) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, false
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, false
	}
	return u.Host, u.Scheme == "https"
}
