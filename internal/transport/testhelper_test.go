package transport

import (
	"io"
	"log/slog"

	"github.com/dkozlov/specbot/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.Metrics {
	return metrics.New(func() float64 { return 0 })
}
