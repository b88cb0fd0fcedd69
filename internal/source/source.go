// Package source declares the contracts of the upstream meter data sources
// and the failures they share
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/septivank/meter-reconciler/internal/reading"
)

var (
	// ErrAuthenticationFailed indicates an upstream rejected the credentials
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNoAccessibleSites indicates the secondary source returned no sites
	ErrNoAccessibleSites = errors.New("no accessible sites")
)

// Site is a secondary-source object (building, flat) that groups meters
type Site struct {
	ID      int64  `json:"id"`
	Label   string `json:"label"`
	Address string `json:"address"`
}

// Primary is the property-management backend
type Primary interface {
	Authenticate(ctx context.Context, login, password string) (bool, error)
	ListReadings(ctx context.Context) ([]reading.MeterReading, error)
}

// Secondary is the telemetry service
type Secondary interface {
	Authenticate(ctx context.Context, login, password string) (string, error)
	ListSites(ctx context.Context, session string) ([]Site, error)
	ListSiteMeters(ctx context.Context, session string, siteID int64) (reading.SecondaryIndex, error)
}

// HTTPError is an unexpected HTTP status from an upstream
type HTTPError struct {
	Source     string
	StatusCode int
	Endpoint   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d from %s", e.Source, e.StatusCode, e.Endpoint)
}

// Is implements errors.Is support
func (e *HTTPError) Is(target error) bool {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return target == ErrAuthenticationFailed
	}
	return false
}
