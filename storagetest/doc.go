// Package storagetest provides a conformance suite for stash.Service
// implementations.
//
// This package is intended for use in tests only.
//
//	func TestConformance(t *testing.T) {
//	    storagetest.Run(t, func(t *testing.T) stash.Service {
//	        svc, err := filesystem.New(t.TempDir())
//	        require.NoError(t, err)
//	        return svc
//	    }, storagetest.Options{Path: storagetest.RelativePath})
//	}
//
// Random payloads come from a seeded RNG so failures are reproducible:
//
//	rng := storagetest.NewRNG(4711)
//	data := rng.Bytes(1024)
package storagetest
