package gridfs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/storagetest"
)

// TestIntegration_GridFS requires a reachable MongoDB.
func TestIntegration_GridFS(t *testing.T) {
	uri := os.Getenv("STASH_MONGO_URI")
	if uri == "" {
		t.Skip("Skipping GridFS integration test: STASH_MONGO_URI not set")
	}

	rng := storagetest.NewRNG(42)

	storagetest.Run(t, func(t *testing.T) stash.Service {
		ctx := context.Background()
		svc, err := New(ctx, Config{URI: uri, Database: "stash_it", Bucket: "b" + rng.Name(10)})
		require.NoError(t, err)
		if err := svc.Healthcheck(ctx); err != nil {
			t.Skipf("MongoDB not available: %v", err)
		}
		t.Cleanup(func() { _ = svc.Close(context.Background()) })
		return svc
	}, storagetest.Options{})
}
