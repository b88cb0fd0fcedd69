package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/anomaly"
	"github.com/septivank/meter-reconciler/internal/config"
	"github.com/septivank/meter-reconciler/internal/db"
	"github.com/septivank/meter-reconciler/internal/logging"
	"github.com/septivank/meter-reconciler/internal/mq"
	"github.com/septivank/meter-reconciler/internal/reconcile"
	"github.com/septivank/meter-reconciler/internal/source"
)

// CredentialSource resolves the login for an upstream service
type CredentialSource interface {
	Load(serviceName string) (*config.ServiceCredentials, error)
}

// EventPublisher receives the results of successful runs
type EventPublisher interface {
	PublishReading(ctx context.Context, event mq.ReconciledReadingEvent) error
	PublishRunCompleted(ctx context.Context, event mq.RunCompletedEvent) error
}

// RunJournal stores run bookkeeping
type RunJournal interface {
	InsertRun(ctx context.Context, run *db.ReconciliationRun) error
	LastSucceededRun(ctx context.Context, siteID int64) (*db.ReconciliationRun, error)
}

// RunRequest parameterizes one run
type RunRequest struct {
	RequestID string
	// SiteID pins the secondary site; nil falls back to configuration
	SiteID *int64
}

// RunResult is the outcome of a successful run
type RunResult struct {
	RunID      uuid.UUID
	RequestID  string
	Site       source.Site
	Report     *reconcile.Report
	Findings   []anomaly.Finding
	StartedAt  time.Time
	FinishedAt time.Time
}

// Deps groups the collaborators of a RunService
type Deps struct {
	Credentials CredentialSource
	Primary     source.Primary
	Secondary   source.Secondary
	Engine      *reconcile.Engine
	Detector    *anomaly.Detector
	// Publisher and Journal are optional
	Publisher EventPublisher
	Journal   RunJournal
	Config    *config.Config
	Logger    *zap.Logger
}

// RunService performs load config → authenticate → fetch → reconcile
type RunService struct {
	deps Deps
	now  func() time.Time
}

// NewRunService creates a new run service
func NewRunService(deps Deps) *RunService {
	return &RunService{deps: deps, now: time.Now}
}

// Run executes one reconciliation run. Any failing stage aborts the run with
// a *StageError and no partial result
func (s *RunService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := uuid.New()
	logger := logging.WithRunID(s.deps.Logger, runID.String())
	if req.RequestID != "" {
		logger = logging.WithRequestID(logger, req.RequestID)
	}

	startedAt := s.now()
	logger.Info("reconciliation run started")

	result, err := s.run(ctx, req, logger)
	finishedAt := s.now()

	if err != nil {
		logger.Error("reconciliation run failed", zap.Error(err))
		s.journalFailure(ctx, runID, req, startedAt, finishedAt, err, logger)
		return nil, err
	}

	result.RunID = runID
	result.RequestID = req.RequestID
	result.StartedAt = startedAt
	result.FinishedAt = finishedAt

	logger.Info("reconciliation run finished",
		zap.Int64("site_id", result.Site.ID),
		zap.Int("total", result.Report.Total()),
		zap.Int("matched", result.Report.Matched),
		zap.Int("unmatched", result.Report.Unmatched()),
		zap.Int("anomalies", len(result.Findings)),
		zap.Duration("elapsed", finishedAt.Sub(startedAt)),
	)

	s.publish(ctx, result, logger)
	s.journalSuccess(ctx, result, logger)

	return result, nil
}

func (s *RunService) run(ctx context.Context, req RunRequest, logger *zap.Logger) (*RunResult, error) {
	names := s.deps.Config.Credentials

	primaryCreds, err := s.deps.Credentials.Load(names.PrimaryServiceName)
	if err != nil {
		return nil, stageErr(StageLoadConfig, err)
	}
	secondaryCreds, err := s.deps.Credentials.Load(names.SecondaryServiceName)
	if err != nil {
		return nil, stageErr(StageLoadConfig, err)
	}

	ok, err := s.deps.Primary.Authenticate(ctx, primaryCreds.Login, primaryCreds.Password)
	if err != nil {
		return nil, stageErr(StageAuthPrimary, err)
	}
	if !ok {
		return nil, stageErr(StageAuthPrimary, fmt.Errorf("%s: %w", names.PrimaryServiceName, source.ErrAuthenticationFailed))
	}

	records, err := s.deps.Primary.ListReadings(ctx)
	if err != nil {
		return nil, stageErr(StageFetchPrimary, err)
	}
	logger.Info("fetched primary readings", zap.Int("count", len(records)))

	session, err := s.deps.Secondary.Authenticate(ctx, secondaryCreds.Login, secondaryCreds.Password)
	if err != nil {
		return nil, stageErr(StageAuthSecondary, err)
	}

	sites, err := s.deps.Secondary.ListSites(ctx, session)
	if err != nil {
		return nil, stageErr(StageListSites, err)
	}
	site, err := s.chooseSite(sites, req)
	if err != nil {
		return nil, stageErr(StageListSites, err)
	}
	logger.Info("using secondary site", zap.Int64("site_id", site.ID), zap.String("label", site.Label))
	s.logLastSync(ctx, site.ID, logger)

	index, err := s.deps.Secondary.ListSiteMeters(ctx, session, site.ID)
	if err != nil {
		return nil, stageErr(StageFetchSecondary, err)
	}
	logger.Info("fetched secondary meters", zap.Int("count", len(index)))

	report, err := s.deps.Engine.Reconcile(records, index, reconcile.Scope{SiteID: site.ID})
	if err != nil {
		return nil, stageErr(StageReconcile, err)
	}
	logOutcomes(report, logger)

	return &RunResult{
		Site:     site,
		Report:   report,
		Findings: s.inspect(report, logger),
	}, nil
}

// chooseSite prefers the request's pin, then the configured pin, then the
// first accessible site
func (s *RunService) chooseSite(sites []source.Site, req RunRequest) (source.Site, error) {
	if len(sites) == 0 {
		return source.Site{}, source.ErrNoAccessibleSites
	}

	pin := s.deps.Config.Secondary.SiteID
	if req.SiteID != nil {
		pin = *req.SiteID
	}
	if pin == 0 {
		return sites[0], nil
	}

	for _, site := range sites {
		if site.ID == pin {
			return site, nil
		}
	}
	return source.Site{}, fmt.Errorf("%w: site %d is not among %d accessible sites", source.ErrNoAccessibleSites, pin, len(sites))
}

func (s *RunService) inspect(report *reconcile.Report, logger *zap.Logger) []anomaly.Finding {
	if s.deps.Detector == nil {
		return nil
	}
	findings := s.deps.Detector.Inspect(report.Records)
	for _, f := range findings {
		logger.Warn("suspicious reconciled value",
			zap.Int("record_id", f.RecordID),
			zap.String("service", f.Service),
			zap.String("serial", f.SerialNumber),
			zap.String("reason", f.Reason),
		)
	}
	return findings
}

func logOutcomes(report *reconcile.Report, logger *zap.Logger) {
	for _, o := range report.Outcomes {
		fields := []zap.Field{
			zap.Int("record_id", o.RecordID),
			zap.String("service", o.Service),
			zap.String("serial", o.SerialNumber),
			zap.String("serial_normalized", o.SerialNormalized),
		}
		if !o.Matched {
			logger.Info("meter not found in secondary source", fields...)
			continue
		}
		logger.Info("meter matched",
			append(fields, zap.String("value", o.Value), zap.Stringer("kind", o.Kind))...)
	}
}

func (s *RunService) logLastSync(ctx context.Context, siteID int64, logger *zap.Logger) {
	if s.deps.Journal == nil {
		return
	}
	last, err := s.deps.Journal.LastSucceededRun(ctx, siteID)
	if err != nil {
		logger.Warn("failed to look up previous run", zap.Error(err))
		return
	}
	if last == nil {
		logger.Info("no previous successful run for site")
		return
	}
	logger.Info("previous successful run",
		zap.String("previous_run_id", last.ID.String()),
		zap.Time("previous_finished_at", last.FinishedAt),
	)
}

// publish failures are logged; the run result stands
func (s *RunService) publish(ctx context.Context, result *RunResult, logger *zap.Logger) {
	if s.deps.Publisher == nil {
		return
	}

	anomalies := make(map[int]string, len(result.Findings))
	for _, f := range result.Findings {
		anomalies[f.RecordID] = f.Reason
	}

	runID := result.RunID.String()
	for _, r := range result.Report.Records {
		event := mq.ReconciledReadingEvent{
			RunID:   runID,
			SiteID:  result.Site.ID,
			Reading: r,
			Anomaly: anomalies[r.ID],
		}
		if err := s.deps.Publisher.PublishReading(ctx, event); err != nil {
			logger.Error("failed to publish reconciled reading",
				zap.Error(err),
				zap.String("meter_reading_id", r.MeterReadingID),
			)
		}
	}

	summary := mq.RunCompletedEvent{
		RunID:     runID,
		RequestID: result.RequestID,
		SiteID:    result.Site.ID,
		Total:     result.Report.Total(),
		Matched:   result.Report.Matched,
		Unmatched: result.Report.Unmatched(),
		Anomalies: len(result.Findings),
		SyncTime:  result.Report.SyncTime,
	}
	if err := s.deps.Publisher.PublishRunCompleted(ctx, summary); err != nil {
		logger.Error("failed to publish run summary", zap.Error(err))
	}
}

func (s *RunService) journalSuccess(ctx context.Context, result *RunResult, logger *zap.Logger) {
	if s.deps.Journal == nil {
		return
	}
	siteID := result.Site.ID
	run := &db.ReconciliationRun{
		ID:             result.RunID,
		RequestID:      optionalString(result.RequestID),
		SiteID:         &siteID,
		Status:         db.RunStatusSucceeded,
		TotalRecords:   result.Report.Total(),
		MatchedRecords: result.Report.Matched,
		AnomalyCount:   len(result.Findings),
		StartedAt:      result.StartedAt,
		FinishedAt:     result.FinishedAt,
	}
	if err := s.deps.Journal.InsertRun(ctx, run); err != nil {
		logger.Error("failed to journal run", zap.Error(err))
	}
}

func (s *RunService) journalFailure(ctx context.Context, runID uuid.UUID, req RunRequest, startedAt, finishedAt time.Time, runErr error, logger *zap.Logger) {
	if s.deps.Journal == nil {
		return
	}
	message := runErr.Error()
	run := &db.ReconciliationRun{
		ID:           runID,
		RequestID:    optionalString(req.RequestID),
		SiteID:       req.SiteID,
		Status:       db.RunStatusFailed,
		ErrorMessage: &message,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}
	var stageError *StageError
	if errors.As(runErr, &stageError) {
		stage := string(stageError.Stage)
		run.FailedStage = &stage
	}
	if err := s.deps.Journal.InsertRun(ctx, run); err != nil {
		logger.Error("failed to journal failed run", zap.Error(err))
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
