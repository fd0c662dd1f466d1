// Package benchmark provides performance benchmarks for the storage
// engines and the snapshot codec.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run only the durable engines:
//
//	go test -bench='BenchmarkEngine.*/(bolt|badger)' -benchmem ./internal/tests/benchmark/...
//
// Compare results:
//
//	go test -bench=. -benchmem -count=5 ./internal/tests/benchmark/... | tee new.txt
//	benchstat old.txt new.txt
package benchmark
