package stash_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/stash"
	"github.com/hupe1980/stash/compress"
	"github.com/hupe1980/stash/filesystem"
	"github.com/hupe1980/stash/memory"
)

// Example_memory uploads a JSON document and reads it back.
func Example_memory() {
	ctx := context.Background()
	svc := memory.New()

	if err := svc.Upload(ctx, "config.json", stash.NewUploadRequest([]byte(`{"a":1}`))); err != nil {
		log.Fatal(err)
	}

	blob, ok, err := svc.Blob(ctx, "config.json")
	if err != nil || !ok {
		log.Fatal(err)
	}
	fmt.Println(blob)
	// Output: file [memory://config.json] (7 bytes) | application/json; charset=utf-8
}

// Example_noClobber shows that a second upload to the same path is a no-op.
func Example_noClobber() {
	ctx := context.Background()
	svc := memory.New()

	_ = svc.Upload(ctx, "greeting.txt", stash.NewUploadRequest([]byte("hello")))
	_ = svc.Upload(ctx, "greeting.txt", stash.NewUploadRequest([]byte("goodbye")))

	data, _, _ := svc.Open(ctx, "greeting.txt")
	fmt.Println(string(data))
	// Output: hello
}

// Example_filesystem lists JSON files below a directory.
func Example_filesystem() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "stash-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	svc, err := filesystem.New(dir)
	if err != nil {
		log.Fatal(err)
	}
	if err := svc.Init(ctx); err != nil {
		log.Fatal(err)
	}

	_ = svc.Upload(ctx, "./a.json", stash.NewUploadRequest([]byte(`{"a":1}`)))
	_ = svc.Upload(ctx, "./b.txt", stash.NewUploadRequest([]byte("b")))

	blobs, err := svc.Blobs(ctx, "", stash.NewListBlobsRequest().WithExtensions(".json"))
	if err != nil {
		log.Fatal(err)
	}
	for _, b := range blobs {
		fmt.Println(b.BlobName())
	}
	// Output: a.json
}

// Example_instrument records metrics for every operation.
func Example_instrument() {
	ctx := context.Background()
	mc := &stash.BasicMetricsCollector{}
	svc := stash.Instrument(compress.New(memory.New()), stash.WithMetricsCollector(mc))

	_ = svc.Upload(ctx, "x.txt", stash.NewUploadRequest([]byte("payload")))
	_, _, _ = svc.Open(ctx, "x.txt")

	st := mc.GetStats()["memory/"+stash.OpOpen]
	fmt.Println(st.Count, st.Bytes)
	// Output: 1 7
}
