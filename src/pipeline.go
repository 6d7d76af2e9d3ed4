package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Stage int

const (
	StageIdle Stage = iota
	StageFetching
	StageNormalizing
	StageMerging
	StagePersisting
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "IDLE"
	case StageFetching:
		return "FETCHING"
	case StageNormalizing:
		return "NORMALIZING"
	case StageMerging:
		return "MERGING"
	case StagePersisting:
		return "PERSISTING"
	case StageDone:
		return "DONE"
	case StageFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// SinkOpener connects to the store a run persists into.
type SinkOpener func(ctx context.Context) (Sink, error)

const alertTimeout = 15 * time.Second

// Pipeline polls every source once, merges the normalized rates and upserts
// the result. Runs must not overlap.
type Pipeline struct {
	sources    []RateSource
	normalizer *Normalizer
	openSink   SinkOpener
	log        logrus.FieldLogger

	Notifiers    []Notifier
	Publishers   []Publisher
	AlertMessage string
	Now          func() time.Time

	stage    Stage
	failedAt Stage
}

func NewPipeline(sources []RateSource, normalizer *Normalizer, openSink SinkOpener, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		sources:    sources,
		normalizer: normalizer,
		openSink:   openSink,
		log:        withComponent(log, "pipeline"),
		Now:        time.Now,
	}
}

// Stage reports where the last run ended.
func (p *Pipeline) Stage() Stage {
	return p.stage
}

// FailedAt reports the stage the last failed run was in when it failed.
func (p *Pipeline) FailedAt() Stage {
	return p.failedAt
}

// Run executes one collection run. Any failure is alerted on once per
// notifier and then returned unchanged.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := p.log.WithField("run_id", runID)
	p.stage = StageIdle
	p.failedAt = StageIdle

	start := time.Now()
	err := p.safeRun(ctx, runID, log)
	if err != nil {
		p.failedAt = p.stage
		p.stage = StageFailed
		log.WithError(err).WithField("stage", p.failedAt.String()).Error("funding rate run failed")
		p.alert(ctx, log, err)
		return err
	}

	log.WithField("duration_ms", float64(time.Since(start).Nanoseconds())/1e6).Info("funding rate run completed")
	return nil
}

func (p *Pipeline) safeRun(ctx context.Context, runID string, log *logrus.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.run(ctx, runID, log)
}

func (p *Pipeline) run(ctx context.Context, runID string, log *logrus.Entry) error {
	p.stage = StageFetching

	// Credentials are checked before any source is polled.
	sink, err := p.openSink(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.WithError(err).Warn("closing sink")
		}
	}()

	raw := make([][]RawRate, len(p.sources))
	results := make([]FetchResult, len(p.sources))
	for i, src := range p.sources {
		results[i].Source = src.Name()
		rates, err := src.FetchRates(ctx)
		if err != nil {
			results[i].Err = &SourceFetchError{Source: src.Name(), Err: err}
			log.WithField("source", src.Name()).WithError(err).Warn("source degraded to empty")
			continue
		}
		raw[i] = rates
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.stage = StageNormalizing
	for i := range results {
		if !results[i].OK() {
			continue
		}
		results[i].Rates = p.normalizer.Normalize(raw[i])
		log.WithFields(logrus.Fields{
			"source": results[i].Source,
			"raw":    len(raw[i]),
			"rates":  len(results[i].Rates),
		}).Debug("source normalized")
	}

	p.stage = StageMerging
	rows, err := Merge(results)
	if err != nil {
		return err
	}
	records := BuildRecords(rows, RunTimestamp(p.Now()))

	p.stage = StagePersisting
	if err := sink.Upsert(ctx, records); err != nil {
		return &PersistenceError{Err: err}
	}

	for _, pub := range p.Publishers {
		if err := pub.Publish(ctx, runID, records); err != nil {
			log.WithField("publisher", pub.Name()).WithError(err).Warn("publishing run failed")
		}
	}

	p.stage = StageDone
	log.WithField("rows", len(records)).Info("funding rates persisted")
	return nil
}

// Close releases every publisher. The pipeline must not be run afterwards.
func (p *Pipeline) Close() error {
	var errs []error
	for _, pub := range p.Publishers {
		if err := pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s publisher: %w", pub.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// alert sends one message per notifier. Delivery errors are only logged.
func (p *Pipeline) alert(ctx context.Context, log *logrus.Entry, cause error) {
	if len(p.Notifiers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	message := p.AlertMessage
	if message == "" {
		message = "funding rate collector failed"
	}
	message = fmt.Sprintf("%s: %v", message, cause)

	for _, n := range p.Notifiers {
		if err := n.Notify(ctx, message); err != nil {
			log.WithError(&AlertDeliveryError{Channel: n.Name(), Err: err}).Error("alert not delivered")
		}
	}
}
