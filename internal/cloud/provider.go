// Package cloud defines the provider adapter contract shared by the AWS, Azure
// and GCP adapters, and the collector that fans out over them.
package cloud

import (
	"context"

	"github.com/hemantobora/mcc/internal/models"
)

// Session is an authenticated handle to one configured provider entry
type Session interface {
	// ID returns the configured provider identifier, e.g. "aws2"
	ID() models.ProviderID

	// ListInstances returns every instance visible to the session, unordered
	ListInstances(ctx context.Context) ([]models.Instance, error)

	// Start powers the instance on
	Start(ctx context.Context, inst models.Instance) error

	// Stop powers the instance off. Some providers return before the
	// instance has settled; see SettleDelay.
	Stop(ctx context.Context, inst models.Instance) error

	// SSHTarget resolves the login user, host and identity file
	SSHTarget(inst models.Instance) (models.SSHTarget, error)
}

// Connector authenticates a provider entry and returns its session
type Connector interface {
	Connect(ctx context.Context, id models.ProviderID, creds models.Credentials) (Session, error)
}
