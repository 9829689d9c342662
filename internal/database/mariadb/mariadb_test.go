//go:build integration

package mariadb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/database/storetest"
)

func setupTestContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_USER":          "test",
			"MARIADB_PASSWORD":      "test",
			"MARIADB_DATABASE":      "testdb",
			"MARIADB_ROOT_PASSWORD": "root",
		},
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return "", func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("test:test@tcp(%s:%s)/testdb?parseTime=true", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func TestStoreContract(t *testing.T) {
	dsn, cleanup := setupTestContainer(t)
	defer cleanup()

	storetest.Run(t, func(t *testing.T) database.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn, 5, 2)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		for _, table := range []string{"faces", "representatives", "identity_sequence"} {
			if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				t.Fatalf("truncating %s: %v", table, err)
			}
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSetOverride_UnchangedValue(t *testing.T) {
	dsn, cleanup := setupTestContainer(t)
	defer cleanup()

	ctx := context.Background()
	s, err := Open(ctx, dsn, 5, 2)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	rec := database.FaceRecord{
		FaceID:    "face_0000",
		FileName:  "a.jpg",
		Location:  database.Location{Top: 1, Right: 2, Bottom: 3, Left: 0},
		Embedding: []float32{1, 0},
		PersonID:  "person_0",
	}
	if err := s.AppendFace(ctx, rec); err != nil {
		t.Fatalf("AppendFace failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		found, err := s.SetOverride(ctx, "face_0000", "person_1")
		if err != nil || !found {
			t.Fatalf("SetOverride #%d: found=%v err=%v", i, found, err)
		}
	}
}
