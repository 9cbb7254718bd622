// Package compress provides a stash.Service decorator that stores payloads
// compressed with zstd or lz4.
//
// Uploaded data is wrapped in a small frame:
//
//	magic "STZ\x01" (4) | codec (1) | raw length, little endian (4) | body
//
// Reads decode framed payloads and pass anything else through untouched, so
// a compressed service can read blobs written without it. Payloads that do
// not shrink are stored in a frame with codec None.
package compress
