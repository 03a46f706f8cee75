package controller

import (
	"context"
	"sync"
	"time"

	"ess/common"
	"ess/ess_sensors/db"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Recorder stores telemetry in the database. Every start begins a new run.
type Recorder struct {
	logger *zap.Logger

	mu    sync.RWMutex
	runId string
}

func NewRecorder(logger *zap.Logger) *Recorder {
	r := &Recorder{logger: logger.Named("Recorder")}
	r.NewRun()
	return r
}

func (r *Recorder) NewRun() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runId = uuid.NewString()
	r.logger.Info("new run", zap.String("run_id", r.runId))
}

func (r *Recorder) RunId() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runId
}

// Save stores telemetry replies and ignores responses.
func (r *Recorder) Save(_ context.Context, reply any) error {
	t, ok := reply.(common.Telemetry)
	if !ok {
		return nil
	}
	return db.SaveTelemetry(r.RunId(), t)
}

// scheduleCleanTelemetry removes telemetry older than holdDays now and every day.
func scheduleCleanTelemetry(cronJob *cron.Cron, holdDays int, logger *zap.Logger) error {
	job := func() {
		before := time.Now().Add(-time.Duration(holdDays) * 24 * time.Hour).UnixMilli()
		n, err := db.CleanTelemetry(before)
		if err != nil {
			logger.Error("failed to clean telemetry", zap.Error(err))
			return
		}
		logger.Info("cleaned telemetry", zap.Int64("rows", n), zap.Int("hold_days", holdDays))
	}
	job()
	_, err := cronJob.AddFunc("@daily", job)
	return err
}
