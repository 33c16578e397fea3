// Package gcp implements the Google Compute Engine adapter.
package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hemantobora/mcc/internal/models"
)

// Credential keys read from the provider's config section
const (
	KeyProject        = "gcp_proj_id"
	KeyServiceAccount = "gcp_svc_acct_email"
	KeyKeyFile        = "gcp_pem_file"
	KeyAuthType       = "gcp_auth_type"
	KeyUser           = "gcp_user"
)

// Auth types accepted in gcp_auth_type
const (
	AuthServiceAccount = "S"
	AuthApplication    = "A"
)

const computeKey = ".ssh/google_compute_engine"

// Session is an authenticated handle to one GCP project
type Session struct {
	id      models.ProviderID
	project string
	svc     *compute.Service
	user    string
	keyPath string
	log     logrus.FieldLogger
}

// Option is a functional option for session configuration
type Option func(*Session)

// WithLogger sets the diagnostic logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithSSHUser overrides the login user
func WithSSHUser(name string) Option {
	return func(s *Session) { s.user = name }
}

// WithKeyPath sets the identity file passed to ssh
func WithKeyPath(p string) Option {
	return func(s *Session) { s.keyPath = p }
}

// NewSession wraps an existing compute service
func NewSession(id models.ProviderID, project string, svc *compute.Service, options ...Option) *Session {
	s := &Session{id: id, project: project, svc: svc, log: logrus.StandardLogger()}
	for _, opt := range options {
		opt(s)
	}
	s.log = s.log.WithField("provider", id)
	return s
}

// Connect builds a compute service from the configured credentials and
// validates them with a project lookup. It does not retry.
func Connect(ctx context.Context, id models.ProviderID, creds models.Credentials, options ...Option) (*Session, error) {
	project := creds.Get(KeyProject)
	if project == "" {
		return nil, &models.AuthenticationError{Provider: id, Cause: fmt.Errorf("%s is required", KeyProject)}
	}

	ts, err := tokenSource(ctx, creds)
	if err != nil {
		return nil, &models.AuthenticationError{Provider: id, Cause: err}
	}

	svc, err := compute.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, &models.ProviderError{
			Provider: id, Operation: "connect", Resource: project,
			Cause: pkgerrors.Wrap(err, "gcp compute service"),
		}
	}
	if _, err := svc.Projects.Get(project).Context(ctx).Do(); err != nil {
		return nil, classify(id, "connect", err)
	}

	opts := []Option{WithSSHUser(sshUser(creds)), WithKeyPath(defaultKeyPath())}
	return NewSession(id, project, svc, append(opts, options...)...), nil
}

// tokenSource selects service account or application default credentials.
// The key file may be a JSON service account key or a bare PEM private key.
func tokenSource(ctx context.Context, creds models.Credentials) (oauth2.TokenSource, error) {
	if creds.Get(KeyAuthType) == AuthApplication {
		found, err := google.FindDefaultCredentials(ctx, compute.ComputeScope)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "gcp default credentials")
		}
		return found.TokenSource, nil
	}

	keyFile := creds.Get(KeyKeyFile)
	if keyFile == "" {
		return nil, fmt.Errorf("%s is required", KeyKeyFile)
	}
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "gcp key file")
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		cfg, err := google.JWTConfigFromJSON(data, compute.ComputeScope)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "gcp service account key")
		}
		return cfg.TokenSource(ctx), nil
	}

	email := creds.Get(KeyServiceAccount)
	if email == "" {
		return nil, fmt.Errorf("%s is required with a PEM key", KeyServiceAccount)
	}
	cfg := &jwt.Config{
		Email:      email,
		PrivateKey: data,
		Scopes:     []string{compute.ComputeScope},
		TokenURL:   google.JWTTokenURL,
	}
	return cfg.TokenSource(ctx), nil
}

func sshUser(creds models.Credentials) string {
	if name := creds.Get(KeyUser); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func defaultKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, computeKey)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// ID returns the configured provider identifier
func (s *Session) ID() models.ProviderID {
	return s.id
}

// ListInstances returns every instance in every zone of the project
func (s *Session) ListInstances(ctx context.Context) ([]models.Instance, error) {
	var out []models.Instance
	err := s.svc.Instances.AggregatedList(s.project).Pages(ctx, func(page *compute.InstanceAggregatedList) error {
		for _, scoped := range page.Items {
			for _, inst := range scoped.Instances {
				out = append(out, Normalize(s.id, inst))
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(s.id, "list", err)
	}
	s.log.WithField("count", len(out)).Debug("listed instances")
	return out, nil
}

// Start starts the instance and waits for the zone operation
func (s *Session) Start(ctx context.Context, inst models.Instance) error {
	s.log.WithField("instance", inst.Name).Debug("starting instance")
	op, err := s.svc.Instances.Start(s.project, inst.Zone, inst.Name).Context(ctx).Do()
	if err != nil {
		return classify(s.id, "start", err)
	}
	return s.wait(ctx, "start", inst.Zone, op)
}

// Stop stops the instance and waits for the zone operation
func (s *Session) Stop(ctx context.Context, inst models.Instance) error {
	s.log.WithField("instance", inst.Name).Debug("stopping instance")
	op, err := s.svc.Instances.Stop(s.project, inst.Zone, inst.Name).Context(ctx).Do()
	if err != nil {
		return classify(s.id, "stop", err)
	}
	return s.wait(ctx, "stop", inst.Zone, op)
}

// wait blocks until the operation is DONE. ZoneOperations.Wait returns early
// on its own deadline, so it is called until the status settles.
func (s *Session) wait(ctx context.Context, operation, zone string, op *compute.Operation) error {
	for op.Status != "DONE" {
		next, err := s.svc.ZoneOperations.Wait(s.project, zone, op.Name).Context(ctx).Do()
		if err != nil {
			return classify(s.id, operation, err)
		}
		op = next
	}
	if op.Error != nil && len(op.Error.Errors) > 0 {
		e := op.Error.Errors[0]
		return &models.ProviderError{
			Provider: s.id, Operation: operation, Resource: op.TargetLink,
			Cause: fmt.Errorf("%s: %s", e.Code, e.Message),
		}
	}
	return nil
}

// SSHTarget uses the configured or local user and the gcloud compute key
func (s *Session) SSHTarget(inst models.Instance) (models.SSHTarget, error) {
	if !inst.HasPublicIP() {
		return models.SSHTarget{}, &models.ProviderError{
			Provider: s.id, Operation: "connect-ssh", Resource: inst.Name,
			Cause: errors.New("instance has no public IP"),
		}
	}
	return models.SSHTarget{User: s.user, Host: inst.PublicIP, KeyPath: s.keyPath}, nil
}

func classify(id models.ProviderID, op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 401 || apiErr.Code == 403) {
		return &models.AuthenticationError{Provider: id, Cause: err}
	}
	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		return &models.AuthenticationError{Provider: id, Cause: err}
	}
	return &models.TransportError{Provider: id, Operation: op, Cause: pkgerrors.Wrap(err, "gcp "+op)}
}
