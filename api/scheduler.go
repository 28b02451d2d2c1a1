/*
scheduler.go - Automated disbursement report audit

PURPOSE:
  Periodically re-checks every approved run against its stored
  disbursement report and flags drift. A report is a pure projection of
  its run; any difference means something outside the engine wrote to
  the store.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Approved runs without a report count as drift
  - Reports still waiting on ledger callbacks feed the open_reports gauge
  - Findings are logged, never repaired

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the auditor is active (default: true)

USAGE:
  auditor := NewReportAuditor(store, logger, metrics)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - payroll/disbursement.go: VerifyAgainstRun
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
)

// AuditResult summarizes one audit pass.
type AuditResult struct {
	Checked int
	Open    int
	Drifted []string // batch ids
}

// ReportAuditor verifies stored reports against their runs.
type ReportAuditor struct {
	Store         payroll.RunStore
	Logger        *zap.Logger
	Metrics       *Metrics
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex // guards ticker and stop

	lastMu  sync.Mutex
	lastRun time.Time
}

// NewReportAuditor creates a new auditor. A nil logger discards output.
func NewReportAuditor(store payroll.RunStore, logger *zap.Logger, metrics *Metrics) *ReportAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportAuditor{
		Store:         store,
		Logger:        logger.Named("audit"),
		Metrics:       metrics,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the auditor.
func (a *ReportAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		a.Logger.Info("report auditor disabled, not starting")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)

	go a.run()

	a.Logger.Info("report auditor started", zap.Duration("interval", a.CheckInterval))
}

// Stop stops the auditor and waits for an in-flight pass.
func (a *ReportAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker != nil {
		a.ticker.Stop()
		close(a.stop)
		a.wg.Wait()
		a.ticker = nil
		a.Logger.Info("report auditor stopped")
	}
}

func (a *ReportAuditor) run() {
	defer a.wg.Done()

	// Run immediately on start
	a.RunNow(context.Background())

	for {
		select {
		case <-a.ticker.C:
			a.RunNow(context.Background())
		case <-a.stop:
			return
		}
	}
}

// RunNow performs one pass and logs the outcome.
func (a *ReportAuditor) RunNow(ctx context.Context) {
	result, err := a.Check(ctx)
	if err != nil {
		a.Logger.Error("report audit failed", zap.Error(err))
		return
	}
	a.Logger.Info("report audit complete",
		zap.Int("checked", result.Checked),
		zap.Int("open", result.Open),
		zap.Int("drifted", len(result.Drifted)))
}

// Check audits every approved run once.
func (a *ReportAuditor) Check(ctx context.Context) (AuditResult, error) {
	var result AuditResult

	runs, err := a.Store.ListRuns(ctx)
	if err != nil {
		return result, err
	}

	for _, run := range runs {
		if run.Status != payroll.RunApproved {
			continue
		}
		result.Checked++

		report, err := a.Store.GetReport(ctx, run.BatchID)
		if errors.Is(err, payroll.ErrReportNotFound) {
			a.drift(&result, run.BatchID, err)
			continue
		}
		if err != nil {
			return result, err
		}

		if err := report.VerifyAgainstRun(run); err != nil {
			a.drift(&result, run.BatchID, err)
			continue
		}
		if !report.Status.Terminal() {
			result.Open++
		}
	}

	if a.Metrics != nil {
		a.Metrics.OpenReports.Set(float64(result.Open))
	}

	a.lastMu.Lock()
	a.lastRun = time.Now()
	a.lastMu.Unlock()
	return result, nil
}

func (a *ReportAuditor) drift(result *AuditResult, batchID string, err error) {
	result.Drifted = append(result.Drifted, batchID)
	if a.Metrics != nil {
		a.Metrics.ReportDrift.Inc()
	}
	a.Logger.Warn("disbursement report drifted from run",
		zap.String("batch_id", batchID),
		zap.Error(err))
}

// GetNextRunTime returns when the next pass is due.
func (a *ReportAuditor) GetNextRunTime() time.Time {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	if a.lastRun.IsZero() {
		return time.Now()
	}
	return a.lastRun.Add(a.CheckInterval)
}
