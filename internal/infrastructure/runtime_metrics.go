package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RegisterRuntimeMetrics registers observable gauges for Go runtime health
// on the given meter. The SDK invokes the callback on every scrape, so no
// collection goroutine is needed.
func RegisterRuntimeMetrics(meter metric.Meter, startTime time.Time) error {
	goroutines, err := meter.Int64ObservableGauge(
		"process_goroutines",
		metric.WithDescription("Number of live goroutines"),
	)
	if err != nil {
		return err
	}
	heapAlloc, err := meter.Int64ObservableGauge(
		"process_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}
	heapSys, err := meter.Int64ObservableGauge(
		"process_heap_sys_bytes",
		metric.WithDescription("Heap memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}
	gcTotal, err := meter.Int64ObservableCounter(
		"process_gc_total",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return err
	}
	uptime, err := meter.Float64ObservableGauge(
		"process_uptime_seconds",
		metric.WithDescription("Seconds since process start"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
			o.ObserveInt64(heapAlloc, int64(ms.HeapAlloc))
			o.ObserveInt64(heapSys, int64(ms.HeapSys))
			o.ObserveInt64(gcTotal, int64(ms.NumGC))
			o.ObserveFloat64(uptime, time.Since(startTime).Seconds())
			return nil
		},
		goroutines, heapAlloc, heapSys, gcTotal, uptime,
	)
	return err
}
