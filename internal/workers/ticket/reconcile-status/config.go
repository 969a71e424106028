// internal/workers/ticket/reconcile-status/config.go
package reconcilestatus

import (
	"time"

	"intake-service/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

func LoadConfig(appCfg *config.Config) *Config {
	wc := config.GetWorkerConfig(appCfg, TaskType)
	return &Config{
		Enabled:       wc.Enabled,
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       config.GetDuration(wc.Timeout),
	}
}
