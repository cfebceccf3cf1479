// Package feature resolves whether application features (toggles) are active
// and defines the storage abstraction their configuration lives in.
//
// # Architecture
//
// The package is built around four concepts:
//
//  1. State - the persisted configuration of one feature: enabled flag,
//     optional strategy id and string parameters for that strategy.
//  2. Source - reads and writes states. MemorySource keeps them in memory,
//     CachingSource decorates any other Source with a TTL read cache, and the
//     property, redis, pg, sqlstore and mongo packages provide persistent ones.
//  3. Strategy - decides whether an enabled feature is active for a given
//     User. Strategies are looked up by id in a Registry built at startup.
//  4. Manager - ties the three together.
//
// Evaluation happens in a fixed order: read the state (falling back to the
// declared default, then to "disabled"), return false if the feature is
// disabled, return true if it has no strategy, otherwise ask the strategy.
//
// # Usage
//
//	const NewCheckout feature.Feature = "NEW_CHECKOUT"
//
//	source, _ := feature.NewMemorySource()
//	manager := feature.NewManager(
//		feature.NewCachingSource(source, feature.WithCacheTTL(time.Minute)),
//		feature.WithFeatures(NewCheckout),
//		feature.WithDefaults(feature.StaticDefaults{
//			NewCheckout: feature.NewState(NewCheckout),
//		}),
//	)
//
//	err := manager.SetState(ctx, feature.NewState(NewCheckout).
//		Enable().
//		SetStrategyID(feature.StrategyUsername).
//		SetParameter(feature.ParamUsers, "alice,bob"))
//
//	active, err := manager.IsActive(ctx, NewCheckout, feature.User{Name: "alice"})
//
// # Strategies
//
// Built-in strategies, registered by DefaultRegistry:
//
//   - username: active for the user names listed in "users"
//   - gradual: active for "percentage" percent of users, bucketed with FNV-1a
//   - release-date: active from "date" (and optional "time") onwards
//   - client-ip: active for callers inside "ips" (addresses or CIDR ranges)
//   - environment: active in the "environments" read from the context
//   - user-attribute: active when user attribute "name" is one of "values"
//   - env-var: active when process variable "name" equals "value"
//
// Custom strategies implement Strategy and are passed to NewRegistry.
//
// # Error Handling
//
// Sources report "nothing stored" as (nil, nil). Real failures propagate out
// of Manager.IsActive and are never turned into false:
//
//	active, err := manager.IsActive(ctx, f, user)
//	switch {
//	case errors.Is(err, feature.ErrStorageUnavailable):
//		// backend failed
//	case errors.Is(err, feature.ErrUnknownStrategy):
//		// state references a strategy that is not registered
//	}
//
// # Concurrency
//
// Every operation runs on the calling goroutine; the package starts none.
// All sources in this module are safe for concurrent use.
package feature
