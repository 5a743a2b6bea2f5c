package app

import (
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"proxywarden/internal/config"
	"proxywarden/internal/orchestrator"
)

func logPerformanceConfig(logger *log.Logger, workers, batchSize int, timeout time.Duration) {
	cpus := runtime.NumCPU()
	logger.Info("Performance configuration",
		"cpu_cores", cpus,
		"workers", workers,
		"dynamic", cpus*8,
		"timeout", timeout,
		"batch_size", batchSize,
		"tier", config.PerformanceTier(workers),
	)
}

func logReport(logger *log.Logger, report orchestrator.Report) {
	for _, tr := range report.Types {
		logger.Info("Type summary",
			"type", tr.Type,
			"existing", tr.ExistingLoaded,
			"existing_alive", tr.ExistingAlive,
			"skipped_dead", tr.SkippedDead,
			"fetched", tr.Fetched,
			"new_alive", tr.NewAlive,
			"total", tr.Total,
			"rounds", tr.Rounds,
			"state", tr.Reached,
		)
	}
	logger.Info("Run finished", "dead_proxies_tracked", report.DeadTracked, "interrupted", report.Interrupted)
}
