package service

import "fmt"

// Stage names a step of a reconciliation run
type Stage string

const (
	StageLoadConfig     Stage = "load_config"
	StageAuthPrimary    Stage = "authenticate_primary"
	StageFetchPrimary   Stage = "fetch_primary"
	StageAuthSecondary  Stage = "authenticate_secondary"
	StageListSites      Stage = "list_sites"
	StageFetchSecondary Stage = "fetch_secondary"
	StageReconcile      Stage = "reconcile"
)

// StageError reports which stage aborted a run and why
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("reconciliation run failed at %s: %v", e.Stage, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
