// Package mongo stores feature states in a MongoDB collection.
//
// Each feature is one document whose _id is the feature name. Source
// implements feature.Source and feature.Lister; New and NewWithDatabase
// manage the client connection with retries.
//
// # Usage
//
//	cfg, err := config.Load[mongo.Config]()
//	if err != nil {
//		return err
//	}
//
//	source, client, err := mongo.NewSourceFromConfig(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Disconnect(context.Background())
//
//	manager := feature.NewManager(feature.NewCachingSource(source))
//
// # Configuration
//
// Config is read from MONGODB_* environment variables. MONGODB_DATABASE and
// MONGODB_COLLECTION default to "togglekit" and "features".
//
// # Error Handling
//
// Driver failures are wrapped with feature.ErrStorageUnavailable. A missing
// document is not an error: Read returns a nil state.
package mongo
