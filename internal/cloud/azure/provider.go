// Package azure implements the Azure Resource Manager adapter.
package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hemantobora/mcc/internal/models"
)

// Credential keys read from the provider's config section
const (
	KeyTenantID       = "az_tenant_id"
	KeySubscriptionID = "az_sub_id"
	KeyAppID          = "az_app_id"
	KeyAppSecret      = "az_app_sec"
)

const (
	managementScope = "https://management.azure.com/.default"
	defaultUser     = "azureuser"
)

// Session is an authenticated handle to one Azure subscription
type Session struct {
	id           models.ProviderID
	subscription string
	vms          *armcompute.VirtualMachinesClient
	nics         *armnetwork.InterfacesClient
	publicIPs    *armnetwork.PublicIPAddressesClient
	clientOpts   *arm.ClientOptions
	log          logrus.FieldLogger
}

// Option is a functional option for session configuration
type Option func(*Session)

// WithLogger sets the diagnostic logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithClientOptions sets the ARM pipeline options shared by every client
func WithClientOptions(o *arm.ClientOptions) Option {
	return func(s *Session) { s.clientOpts = o }
}

// Connect authenticates a service principal and requests a management token
// to validate it. It does not retry.
func Connect(ctx context.Context, id models.ProviderID, creds models.Credentials, options ...Option) (*Session, error) {
	for _, k := range []string{KeyTenantID, KeySubscriptionID, KeyAppID, KeyAppSecret} {
		if creds.Get(k) == "" {
			return nil, &models.AuthenticationError{Provider: id, Cause: fmt.Errorf("%s is required", k)}
		}
	}

	cred, err := azidentity.NewClientSecretCredential(
		creds.Get(KeyTenantID), creds.Get(KeyAppID), creds.Get(KeyAppSecret), nil)
	if err != nil {
		return nil, &models.AuthenticationError{Provider: id, Cause: err}
	}
	if _, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{managementScope}}); err != nil {
		return nil, classify(id, "connect", err)
	}

	return NewSession(id, creds.Get(KeySubscriptionID), cred, options...)
}

// NewSession builds the compute and network clients for one subscription
func NewSession(id models.ProviderID, subscription string, cred azcore.TokenCredential, options ...Option) (*Session, error) {
	s := &Session{id: id, subscription: subscription, log: logrus.StandardLogger()}
	for _, opt := range options {
		opt(s)
	}
	s.log = s.log.WithField("provider", id)

	var err error
	if s.vms, err = armcompute.NewVirtualMachinesClient(subscription, cred, s.clientOpts); err != nil {
		return nil, &models.ProviderError{Provider: id, Operation: "connect", Resource: subscription, Cause: err}
	}
	if s.nics, err = armnetwork.NewInterfacesClient(subscription, cred, s.clientOpts); err != nil {
		return nil, &models.ProviderError{Provider: id, Operation: "connect", Resource: subscription, Cause: err}
	}
	if s.publicIPs, err = armnetwork.NewPublicIPAddressesClient(subscription, cred, s.clientOpts); err != nil {
		return nil, &models.ProviderError{Provider: id, Operation: "connect", Resource: subscription, Cause: err}
	}
	return s, nil
}

// ID returns the configured provider identifier
func (s *Session) ID() models.ProviderID {
	return s.id
}

// ListInstances returns every virtual machine in the subscription
func (s *Session) ListInstances(ctx context.Context) ([]models.Instance, error) {
	var out []models.Instance
	pager := s.vms.NewListAllPager(&armcompute.VirtualMachinesClientListAllOptions{StatusOnly: to.Ptr("true")})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(s.id, "list", err)
		}
		for _, vm := range page.Value {
			if vm == nil {
				continue
			}
			group := ResourceGroup(str(vm.ID))
			if vm.Properties != nil && vm.Properties.InstanceView == nil {
				s.loadInstanceView(ctx, group, vm)
			}
			addrs := s.addresses(ctx, vm)
			out = append(out, Normalize(s.id, vm, addrs))
		}
	}
	s.log.WithField("count", len(out)).Debug("listed instances")
	return out, nil
}

func (s *Session) loadInstanceView(ctx context.Context, group string, vm *armcompute.VirtualMachine) {
	resp, err := s.vms.InstanceView(ctx, group, str(vm.Name), nil)
	if err != nil {
		s.log.WithError(err).WithField("instance", str(vm.Name)).Debug("instance view failed")
		return
	}
	vm.Properties.InstanceView = &resp.VirtualMachineInstanceView
}

// addresses resolves the first NIC's private and public address
func (s *Session) addresses(ctx context.Context, vm *armcompute.VirtualMachine) Addresses {
	var addrs Addresses
	if vm.Properties == nil || vm.Properties.NetworkProfile == nil {
		return addrs
	}
	var nicID string
	for _, ref := range vm.Properties.NetworkProfile.NetworkInterfaces {
		if ref != nil && ref.ID != nil {
			nicID = *ref.ID
			break
		}
	}
	if nicID == "" {
		return addrs
	}

	nic, err := s.nics.Get(ctx, ResourceGroup(nicID), ResourceName(nicID), nil)
	if err != nil {
		s.log.WithError(err).WithField("nic", nicID).Debug("network interface lookup failed")
		return addrs
	}
	if nic.Properties == nil {
		return addrs
	}
	var private, public []string
	for _, cfg := range nic.Properties.IPConfigurations {
		if cfg == nil || cfg.Properties == nil {
			continue
		}
		private = append(private, str(cfg.Properties.PrivateIPAddress))
		if models.FirstAddress(public) == "" {
			public = append(public, s.publicAddress(ctx, cfg.Properties.PublicIPAddress))
		}
	}
	addrs.Private = models.FirstAddress(private)
	addrs.Public = models.FirstAddress(public)
	return addrs
}

// publicAddress returns the address of pip, fetching the resource when the
// NIC only carries a reference
func (s *Session) publicAddress(ctx context.Context, pip *armnetwork.PublicIPAddress) string {
	if pip == nil || pip.ID == nil {
		return ""
	}
	if pip.Properties != nil && pip.Properties.IPAddress != nil {
		return *pip.Properties.IPAddress
	}
	resp, err := s.publicIPs.Get(ctx, ResourceGroup(*pip.ID), ResourceName(*pip.ID), nil)
	if err != nil {
		s.log.WithError(err).WithField("public_ip", *pip.ID).Debug("public ip lookup failed")
		return ""
	}
	if resp.Properties == nil {
		return ""
	}
	return str(resp.Properties.IPAddress)
}

// Start powers on the VM and waits for the operation to finish
func (s *Session) Start(ctx context.Context, inst models.Instance) error {
	s.log.WithField("instance", inst.Name).Debug("starting instance")
	poller, err := s.vms.BeginStart(ctx, inst.ResourceGroup, inst.Name, nil)
	if err != nil {
		return classify(s.id, "start", err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return classify(s.id, "start", err)
	}
	return nil
}

// Stop deallocates the VM. The call returns once Azure has accepted the
// request; deallocation continues in the background.
func (s *Session) Stop(ctx context.Context, inst models.Instance) error {
	s.log.WithField("instance", inst.Name).Debug("deallocating instance")
	if _, err := s.vms.BeginDeallocate(ctx, inst.ResourceGroup, inst.Name, nil); err != nil {
		return classify(s.id, "stop", err)
	}
	return nil
}

// SSHTarget uses the OS profile admin user. Azure VMs authenticate with the
// operator's default ssh keys, so no identity file is set.
func (s *Session) SSHTarget(inst models.Instance) (models.SSHTarget, error) {
	if !inst.HasPublicIP() {
		return models.SSHTarget{}, &models.ProviderError{
			Provider: s.id, Operation: "connect-ssh", Resource: inst.Name,
			Cause: errors.New("instance has no public IP"),
		}
	}
	user := inst.SSHUser
	if user == "" {
		user = defaultUser
	}
	return models.SSHTarget{User: user, Host: inst.PublicIP}, nil
}

func classify(id models.ProviderID, op string, err error) error {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return &models.AuthenticationError{Provider: id, Cause: err}
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && (respErr.StatusCode == 401 || respErr.StatusCode == 403) {
		return &models.AuthenticationError{Provider: id, Cause: err}
	}
	return &models.TransportError{Provider: id, Operation: op, Cause: pkgerrors.WithStack(err)}
}
