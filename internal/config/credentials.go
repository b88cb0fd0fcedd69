package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Credential loading errors
var (
	// ErrConfigNotFound indicates the credentials file does not exist
	ErrConfigNotFound = errors.New("credentials file not found")

	// ErrConfigMalformed indicates the credentials file cannot be parsed or an
	// entry lacks required fields
	ErrConfigMalformed = errors.New("credentials file malformed")

	// ErrConfigServiceMissing indicates the requested service has no entry
	ErrConfigServiceMissing = errors.New("service not present in credentials file")
)

// ServiceCredentials holds the login for one upstream service
type ServiceCredentials struct {
	Name     string `yaml:"name"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

type credentialsFile struct {
	Services []ServiceCredentials `yaml:"services"`
}

// CredentialLoader reads service credentials from a YAML file
type CredentialLoader struct {
	path string
}

// NewCredentialLoader creates a loader for the file at path
func NewCredentialLoader(path string) *CredentialLoader {
	return &CredentialLoader{path: path}
}

// Path returns the credentials file location
func (l *CredentialLoader) Path() string {
	return l.path
}

// Load returns the credentials for serviceName. The file is read on every
// call so edits take effect on the next run
func (l *CredentialLoader) Load(serviceName string) (*ServiceCredentials, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, l.path)
		}
		return nil, fmt.Errorf("failed to read credentials file %s: %w", l.path, err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrConfigMalformed, l.path)
	}

	var file credentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigMalformed, l.path, err)
	}

	for _, svc := range file.Services {
		if svc.Name != serviceName {
			continue
		}
		if svc.Login == "" || svc.Password == "" {
			return nil, fmt.Errorf("%w: service %q requires login and password", ErrConfigMalformed, serviceName)
		}
		creds := svc
		return &creds, nil
	}

	return nil, fmt.Errorf("%w: %q in %s", ErrConfigServiceMissing, serviceName, l.path)
}
