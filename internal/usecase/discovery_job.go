package usecase

import (
	"context"
	"fmt"
	"time"

	"PairScout/pkg/logger"
	"PairScout/pkg/queue"
	"PairScout/pkg/util"
)

// DiscoveryRunPayload is the queue message that triggers one run.
type DiscoveryRunPayload struct {
	AsOf     string   `json:"as_of"` // 2006-01-02, empty means today
	Universe []string `json:"universe"`
}

// RunReporter forwards finished run summaries to an external system.
type RunReporter interface {
	Report(ctx context.Context, sum *RunSummary)
}

// DiscoveryJob runs the discovery pipeline off the job queue and swaps
// the promoted pairs into the live monitor when the run finishes.
type DiscoveryJob struct {
	disc     *Discovery
	monitor  *LiveMonitor
	reporter RunReporter
	log      *logger.Logger
}

func NewDiscoveryJob(disc *Discovery, monitor *LiveMonitor, lgr *logger.Logger) *DiscoveryJob {
	return &DiscoveryJob{disc: disc, monitor: monitor, log: lgr}
}

// SetReporter enables run summary reporting.
func (j *DiscoveryJob) SetReporter(r RunReporter) { j.reporter = r }

func (j *DiscoveryJob) Name() string { return "discovery_run" }
func (j *DiscoveryJob) Type() string { return "discovery.run" }

func (j *DiscoveryJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[DiscoveryRunPayload](payload)
	if err != nil {
		return err
	}

	asOf := time.Now().UTC()
	if p.AsOf != "" {
		if t, perr := time.Parse("2006-01-02", p.AsOf); perr == nil {
			asOf = t
		} else if t, ok := util.ParseTime(p.AsOf); ok {
			asOf = t.UTC()
		} else {
			return fmt.Errorf("invalid as_of %q", p.AsOf)
		}
	}

	sum, err := j.disc.Run(ctx, asOf, p.Universe)
	if err != nil {
		j.log.Error("discovery run failed", logger.Error(err))
		return err
	}

	if j.monitor != nil {
		j.monitor.Replace(j.disc.Promoted())
		j.log.Info("live pair set refreshed",
			logger.Int("tracked", j.monitor.TrackedCount()),
			logger.Int("promoted", sum.Promoted))
	}
	if j.reporter != nil {
		j.reporter.Report(ctx, sum)
	}
	return nil
}

var _ queue.Job = (*DiscoveryJob)(nil)
