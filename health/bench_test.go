package health

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkAggregator_CheckAll(b *testing.B) {
	for _, n := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("probes=%d", n), func(b *testing.B) {
			agg := NewAggregator()
			for i := 0; i < n; i++ {
				name := fmt.Sprintf("p%d", i)
				agg.Register(name, fixed(name, StatusHealthy))
			}
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = agg.CheckAll(ctx)
			}
		})
	}
}

func BenchmarkOverallStatus(b *testing.B) {
	components := make([]ComponentHealth, 32)
	components[31].Status = StatusDegraded

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = OverallStatus(components)
	}
}
