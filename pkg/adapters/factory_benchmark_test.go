package adapters_test

import (
	"testing"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
)

// BenchmarkRegistry_Create measures a lookup plus constructor call.
func BenchmarkRegistry_Create(b *testing.B) {
	reg := adapters.NewRegistry()
	reg.Register("stub", func() adapters.Dialect { return stubDialect{name: "stub"} })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Create("stub"); err != nil {
			b.Fatalf("Create() error = %v", err)
		}
	}
}

// BenchmarkRegistry_Create_Parallel checks the read lock under contention.
func BenchmarkRegistry_Create_Parallel(b *testing.B) {
	reg := adapters.NewRegistry()
	reg.Register("stub", func() adapters.Dialect { return stubDialect{name: "stub"} })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := reg.Create("stub"); err != nil {
				b.Errorf("Create() error = %v", err)
				return
			}
		}
	})
}
