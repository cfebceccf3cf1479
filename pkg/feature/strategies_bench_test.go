package feature_test

import (
	"context"
	"testing"

	"github.com/dmitrymomot/togglekit/pkg/clientip"
	"github.com/dmitrymomot/togglekit/pkg/feature"
)

func BenchmarkStrategies(b *testing.B) {
	ctx := clientip.SetIPToContext(context.Background(), "10.1.2.3")
	user := feature.User{Name: "user-123", Attributes: map[string]string{"plan": "pro"}}
	registry := feature.DefaultRegistry()

	cases := map[string]*feature.State{
		feature.StrategyUsername: feature.NewState("F").Enable().
			SetStrategyID(feature.StrategyUsername).
			SetParameter(feature.ParamUsers, "user-001,user-042,user-123,user-999"),
		feature.StrategyGradual: feature.NewState("F").Enable().
			SetStrategyID(feature.StrategyGradual).
			SetParameter(feature.ParamPercentage, "50"),
		feature.StrategyReleaseDate: feature.NewState("F").Enable().
			SetStrategyID(feature.StrategyReleaseDate).
			SetParameter(feature.ParamDate, "2024-06-01").
			SetParameter(feature.ParamTime, "12:00"),
		feature.StrategyClientIP: feature.NewState("F").Enable().
			SetStrategyID(feature.StrategyClientIP).
			SetParameter(feature.ParamIPs, "192.168.0.0/16,10.0.0.0/8"),
		feature.StrategyUserAttribute: feature.NewState("F").Enable().
			SetStrategyID(feature.StrategyUserAttribute).
			SetParameter(feature.ParamName, "plan").
			SetParameter(feature.ParamValues, "team,pro"),
	}

	for id, state := range cases {
		strategy, ok := registry.Lookup(id)
		if !ok {
			b.Fatalf("strategy %q not registered", id)
		}
		b.Run(id, func(b *testing.B) {
			for b.Loop() {
				_, _ = strategy.IsActive(ctx, state, user)
			}
		})
	}
}

func BenchmarkManager_IsActive(b *testing.B) {
	ctx := context.Background()
	user := feature.User{Name: "user-123"}
	state := feature.NewState("F").Enable().
		SetStrategyID(feature.StrategyGradual).
		SetParameter(feature.ParamPercentage, "25")

	b.Run("MemorySource", func(b *testing.B) {
		source, _ := feature.NewMemorySource(state)
		manager := feature.NewManager(source)
		for b.Loop() {
			_, _ = manager.IsActive(ctx, "F", user)
		}
	})

	b.Run("CachingSource", func(b *testing.B) {
		source, _ := feature.NewMemorySource(state)
		manager := feature.NewManager(feature.NewCachingSource(source))
		for b.Loop() {
			_, _ = manager.IsActive(ctx, "F", user)
		}
	})

	b.Run("Parallel", func(b *testing.B) {
		source, _ := feature.NewMemorySource(state)
		manager := feature.NewManager(feature.NewCachingSource(source))
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				_, _ = manager.IsActive(ctx, "F", user)
			}
		})
	})
}
