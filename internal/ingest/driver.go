package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/internal/metrics"
	"github.com/pkordes/tripfeed/internal/validation"
)

// ErrNoInput is returned by Driver.Run when the incoming file did not appear
// within the wait timeout. Nothing is archived.
var ErrNoInput = errors.New("no input file")

// KindLoadFailure is the failure kind recorded for runs rejected by the loader.
const KindLoadFailure = "load_failure"

// Validator checks a file and returns its rows.
type Validator interface {
	Validate(ctx context.Context, path string) (validation.Result, error)
}

// FileLoader writes a validated file to the store.
type FileLoader interface {
	Load(ctx context.Context, path string) (LoadResult, error)
}

// Archiver moves a processed file out of the incoming location.
type Archiver interface {
	Success(path string) (string, error)
	Reject(path string) (string, error)
}

// RunRecorder persists the run log. repo.IngestRunRepo satisfies it.
type RunRecorder interface {
	Create(ctx context.Context, run domain.IngestRun) error
}

// StatsInvalidator drops cached driver stats. *cache.StatsCache satisfies it.
type StatsInvalidator interface {
	InvalidateDriverStats(ctx context.Context, driverIDs ...string) error
}

// DriverConfig holds the scheduling knobs of a run.
type DriverConfig struct {
	IncomingPath string
	PollInterval time.Duration
	WaitTimeout  time.Duration
	Retries      int
	RetryDelay   time.Duration
}

// RunReport describes one finished run.
type RunReport struct {
	Run      domain.IngestRun
	Attempts int
}

// Driver runs one ingestion cycle: wait for the file, validate, load with
// retries, archive by outcome.
type Driver struct {
	cfg       DriverConfig
	validator Validator
	loader    FileLoader
	archiver  Archiver

	runs    RunRecorder
	cache   StatsInvalidator
	metrics *metrics.Ingest
	log     *slog.Logger
	now     func() time.Time
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithRunRecorder writes a run log row at the end of every run.
func WithRunRecorder(r RunRecorder) DriverOption {
	return func(d *Driver) { d.runs = r }
}

// WithStatsInvalidator invalidates cached stats of loaded drivers.
func WithStatsInvalidator(c StatsInvalidator) DriverOption {
	return func(d *Driver) { d.cache = c }
}

// WithMetrics records run outcomes on m.
func WithMetrics(m *metrics.Ingest) DriverOption {
	return func(d *Driver) { d.metrics = m }
}

// WithDriverLogger sets the logger. Defaults to slog.Default().
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.log = l }
}

// WithDriverClock sets the clock used for run timestamps.
func WithDriverClock(now func() time.Time) DriverOption {
	return func(d *Driver) { d.now = now }
}

// NewDriver wires a Driver.
func NewDriver(cfg DriverConfig, v Validator, l FileLoader, a Archiver, opts ...DriverOption) *Driver {
	d := &Driver{
		cfg:       cfg,
		validator: v,
		loader:    l,
		archiver:  a,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run performs one ingestion cycle.
//
// Once the file is found, exactly one of two outcomes happens: it is loaded
// and moved to history, or nothing is committed and it is moved to rejected.
// A rejected run returns the validation or load error. When ctx is cancelled
// the file is left in place for the next run.
func (d *Driver) Run(ctx context.Context) (RunReport, error) {
	path := d.cfg.IncomingPath
	runID := uuid.New()
	log := d.log.With("run_id", runID.String(), "path", path)

	if err := d.waitForFile(ctx, log); err != nil {
		return RunReport{}, err
	}

	started := d.now()
	report := RunReport{Run: domain.IngestRun{
		ID:        runID,
		FileName:  filepath.Base(path),
		StartedAt: started,
	}}
	if sum, err := checksum(path); err != nil {
		log.WarnContext(ctx, "checksum failed", "error", err)
	} else {
		report.Run.Checksum = sum
	}

	res, err := d.validator.Validate(ctx, path)
	if err != nil {
		log.WarnContext(ctx, "validation failed", "kind", validation.KindOf(err), "error", err)
		return d.reject(ctx, log, report, err)
	}
	report.Run.Rows = int64(len(res.Rows))

	lr, attempts, err := d.loadWithRetry(ctx, log, path)
	report.Attempts = attempts
	if err != nil {
		log.ErrorContext(ctx, "load failed", "attempts", attempts, "error", err)
		return d.reject(ctx, log, report, err)
	}
	report.Run.Rows = lr.Rows
	report.Run.Inserted = lr.Inserted
	report.Run.Skipped = lr.Skipped

	archived, err := d.archiver.Success(path)
	if err != nil {
		// The rows are committed; the file stays put and the next run skips them.
		return report, fmt.Errorf("ingest.Driver.Run: %w", err)
	}
	report.Run.ArchivedAs = archived
	report.Run.Outcome = domain.RunSuccess

	if d.cache != nil && len(lr.DriverIDs) > 0 {
		if err := d.cache.InvalidateDriverStats(ctx, lr.DriverIDs...); err != nil {
			log.WarnContext(ctx, "stats cache invalidation failed", "error", err)
		}
	}

	d.finish(ctx, log, &report)
	log.InfoContext(ctx, "ingestion succeeded",
		"archived_as", archived, "rows", lr.Rows, "inserted", lr.Inserted, "skipped", lr.Skipped)
	return report, nil
}

// reject archives the file under rejected and returns cause.
func (d *Driver) reject(ctx context.Context, log *slog.Logger, report RunReport, cause error) (RunReport, error) {
	if ctx.Err() != nil {
		return report, fmt.Errorf("ingest.Driver.Run: %w", cause)
	}

	report.Run.Outcome = domain.RunRejected
	report.Run.FailureKind = failureKind(cause)
	report.Run.Error = cause.Error()

	archived, err := d.archiver.Reject(d.cfg.IncomingPath)
	if err != nil {
		log.ErrorContext(ctx, "reject archival failed", "error", err)
		d.finish(ctx, log, &report)
		return report, fmt.Errorf("ingest.Driver.Run: %w", errors.Join(cause, err))
	}
	report.Run.ArchivedAs = archived

	d.finish(ctx, log, &report)
	log.WarnContext(ctx, "ingestion rejected", "archived_as", archived, "kind", report.Run.FailureKind)
	return report, fmt.Errorf("ingest.Driver.Run: %w", cause)
}

// finish stamps the run, records metrics and writes the run log.
func (d *Driver) finish(ctx context.Context, log *slog.Logger, report *RunReport) {
	report.Run.FinishedAt = d.now()
	run := report.Run

	d.metrics.ObserveRun(string(run.Outcome), run.FailureKind, run.Inserted, run.Skipped,
		run.FinishedAt.Sub(run.StartedAt))

	if d.runs == nil {
		return
	}
	if err := d.runs.Create(ctx, run); err != nil {
		log.WarnContext(ctx, "run log write failed", "error", err)
	}
}

// waitForFile polls for the incoming file every PollInterval until it exists
// or WaitTimeout elapses.
func (d *Driver) waitForFile(ctx context.Context, log *slog.Logger) error {
	path := d.cfg.IncomingPath
	interval := d.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	var b retry.Backoff = retry.NewConstant(interval)
	if d.cfg.WaitTimeout > 0 {
		b = retry.WithMaxDuration(d.cfg.WaitTimeout, b)
	} else {
		b = retry.WithMaxRetries(0, b)
	}

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			log.DebugContext(ctx, "waiting for input file")
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		log.InfoContext(ctx, "no input file", "waited", d.cfg.WaitTimeout)
		return fmt.Errorf("ingest.Driver.Run: %w: %s", ErrNoInput, path)
	default:
		return fmt.Errorf("ingest.Driver.Run: wait for %s: %w", path, err)
	}
}

// loadWithRetry calls the loader up to Retries+1 times, RetryDelay apart.
func (d *Driver) loadWithRetry(ctx context.Context, log *slog.Logger, path string) (LoadResult, int, error) {
	delay := d.cfg.RetryDelay
	if delay <= 0 {
		delay = time.Millisecond
	}
	retries := max(d.cfg.Retries, 0)
	b := retry.WithMaxRetries(uint64(retries), retry.NewConstant(delay))

	attempts := 0
	res, err := retry.DoValue(ctx, b, func(ctx context.Context) (LoadResult, error) {
		attempts++
		res, err := d.loader.Load(ctx, path)
		if err != nil {
			if attempts <= retries {
				log.WarnContext(ctx, "load attempt failed, retrying",
					"attempt", attempts, "retry_in", delay, "error", err)
			}
			return LoadResult{}, retry.RetryableError(err)
		}
		return res, nil
	})
	return res, attempts, err
}

func failureKind(err error) string {
	if k := validation.KindOf(err); k != "" {
		return string(k)
	}
	if errors.Is(err, ErrLoadFailure) {
		return KindLoadFailure
	}
	return "unknown"
}

// checksum returns the hex SHA-256 of the file at path.
func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
