package cloud

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hemantobora/mcc/internal/cloud/aws"
	"github.com/hemantobora/mcc/internal/cloud/azure"
	"github.com/hemantobora/mcc/internal/cloud/gcp"
	"github.com/hemantobora/mcc/internal/models"
)

// Factory connects provider entries to their adapters
type Factory struct {
	configDir string
	log       logrus.FieldLogger
}

// Option is a functional option for factory configuration
type Option func(*Factory)

// WithConfigDir sets the directory holding AWS key-pair files
func WithConfigDir(dir string) Option {
	return func(f *Factory) { f.configDir = dir }
}

// WithLogger sets the logger handed to every adapter
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Factory) { f.log = l }
}

// NewFactory creates a new adapter factory
func NewFactory(options ...Option) *Factory {
	f := &Factory{log: logrus.StandardLogger()}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Connect dispatches on the provider kind encoded in id
// Supported kinds: "aws", "azure", "gcp"
func (f *Factory) Connect(ctx context.Context, id models.ProviderID, creds models.Credentials) (Session, error) {
	kind, ok := id.Kind()
	if !ok {
		return nil, &models.ProviderError{Provider: id, Operation: "connect", Cause: fmt.Errorf("unsupported provider: %s", id)}
	}

	f.log.WithField("provider", id).Debug("connecting")
	var (
		s   Session
		err error
	)
	switch kind {
	case models.ProviderAWS:
		s, err = session(aws.Connect(ctx, id, creds, aws.WithKeyDir(f.configDir), aws.WithLogger(f.log)))
	case models.ProviderAzure:
		s, err = session(azure.Connect(ctx, id, creds, azure.WithLogger(f.log)))
	case models.ProviderGCP:
		s, err = session(gcp.Connect(ctx, id, creds, gcp.WithLogger(f.log)))
	default:
		err = &models.ProviderError{Provider: id, Operation: "connect", Cause: fmt.Errorf("unsupported provider: %s", id)}
	}
	return s, err
}

// session keeps a typed nil adapter out of the Session interface
func session[S Session](s S, err error) (Session, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
