// Package property stores feature states in a properties document, either a
// local file or an S3 object.
//
// The document layout is one entry per line:
//
//	NEW_CHECKOUT=true
//	NEW_CHECKOUT.strategy=username
//	NEW_CHECKOUT.param.users=alice,bob
//
// Documents written by older releases may carry NEW_CHECKOUT.users instead of
// a strategy. Source reads such entries as the username strategy and rewrites
// them in the current layout the next time that feature is written.
//
// # Reloading
//
// Source checks the backend revision (modification time and size for files,
// ETag for S3) at the start of every call and reloads the whole document when
// it changed. Source starts no goroutines. A document that cannot be read or
// parsed is logged and ignored; callers keep getting the last good snapshot.
//
// When a CachingSource sits in front of a file source, Watch can purge it as
// soon as the file changes instead of waiting for the cache TTL:
//
//	go property.Watch(ctx, path, caching.Purge, property.WithWatchLogger(log))
//
// # Usage
//
//	source := property.NewFileSource("/etc/app/features.properties",
//		property.WithLogger(log),
//	)
//	manager := feature.NewManager(feature.NewCachingSource(source))
//
// For S3:
//
//	source, err := property.NewS3Source(ctx, property.S3Config{
//		Bucket: "config",
//		Key:    "features.properties",
//		Region: "eu-central-1",
//	}, nil)
package property
