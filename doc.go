// Package stash provides a uniform abstraction over blob and object storage.
//
// Callers program against the Service interface and pick a backend at
// construction time:
//
//   - filesystem: local disk (paths "fs://...")
//   - s3 / minio: S3-compatible object stores ("s3://...")
//   - azure: Azure Blob Storage ("azure://...")
//   - gridfs: MongoDB GridFS ("gridfs://...")
//   - memory: in-process map, useful in tests ("memory://...")
//
// # Quick Start
//
//	svc, err := filesystem.New("./data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	req := stash.NewUploadRequest([]byte(`{"a":1}`))
//	_ = svc.Upload(ctx, "./config.json", req)
//
//	blob, ok, err := svc.Blob(ctx, "./config.json")
//	if ok {
//	    fmt.Println(blob) // file [fs:///abs/data/config.json] (7 bytes) | application/json; charset=utf-8
//	}
//
// # Semantics
//
// Uploads never overwrite: if the target exists the call is a successful
// no-op and a warning is logged. Deletes are idempotent. Reads report absence
// through a boolean rather than an error.
//
// # Errors
//
// Every backend returns *Error values. Use KindOf or errors.Is with the
// package sentinels to branch on the failure class:
//
//	if errors.Is(err, stash.ErrIsDirectory) { ... }
//	if stash.IsKind(err, stash.KindTransient) { ... }
//
// # Compression and configuration
//
// The compress package wraps any Service so payloads are stored zstd or lz4
// compressed. The config package builds a complete, instrumented Service
// from YAML and STASH_* environment variables:
//
//	cfg, err := config.Load("stash.yaml")
//	store, err := config.Open(ctx, cfg)
//
// # Observability
//
// Wrap any Service with Instrument to get structured logs and metrics:
//
//	svc = stash.Instrument(svc,
//	    stash.WithLogger(stash.NewJSONLogger(slog.LevelInfo)),
//	    stash.WithMetricsCollector(&stash.BasicMetricsCollector{}),
//	)
package stash
