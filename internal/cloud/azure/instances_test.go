package azure

import (
	"context"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemantobora/mcc/internal/models"
)

const vmID = "/subscriptions/0000/resourceGroups/prod-rg/providers/Microsoft.Compute/virtualMachines/web"

func statuses(codes ...string) []*armcompute.InstanceViewStatus {
	var out []*armcompute.InstanceViewStatus
	for _, c := range codes {
		out = append(out, &armcompute.InstanceViewStatus{Code: to.Ptr(c)})
	}
	return out
}

func TestResourceGroup(t *testing.T) {
	assert.Equal(t, "prod-rg", ResourceGroup(vmID))
	assert.Equal(t, "Lower", ResourceGroup("/subscriptions/1/resourcegroups/Lower/providers/x"))
	assert.Equal(t, "tail", ResourceGroup("/subscriptions/1/resourceGroups/tail"))
	assert.Equal(t, "", ResourceGroup("/subscriptions/1"))
}

func TestResourceName(t *testing.T) {
	assert.Equal(t, "web", ResourceName(vmID))
	assert.Equal(t, "web", ResourceName(vmID+"/"))
	assert.Equal(t, "bare", ResourceName("bare"))
}

func TestPowerState(t *testing.T) {
	tests := []struct {
		codes []string
		want  string
	}{
		{[]string{"ProvisioningState/succeeded", "PowerState/running"}, models.StateRunning},
		{[]string{"ProvisioningState/succeeded", "PowerState/deallocated"}, models.StateStopped},
		{[]string{"PowerState/deallocating"}, models.StateStopping},
		{[]string{"PowerState/starting"}, models.StateStarting},
		{[]string{"ProvisioningState/failed/InternalError"}, models.StateFailed},
		{[]string{"ProvisioningState/updating"}, models.StateUnknown},
		{nil, models.StateUnknown},
		{[]string{"PowerState/hibernated"}, "hibernated"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PowerState(statuses(tt.codes...)), "%v", tt.codes)
	}
}

func TestNormalize(t *testing.T) {
	size := armcompute.VirtualMachineSizeTypesStandardB1S
	vm := &armcompute.VirtualMachine{
		ID:       to.Ptr(vmID),
		Name:     to.Ptr("web"),
		Location: to.Ptr("eastus"),
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{VMSize: &size},
			OSProfile:       &armcompute.OSProfile{AdminUsername: to.Ptr("ops")},
			StorageProfile: &armcompute.StorageProfile{ImageReference: &armcompute.ImageReference{
				Offer: to.Ptr("0001-com-ubuntu-server-jammy"), SKU: to.Ptr("22_04-lts"),
			}},
			InstanceView: &armcompute.VirtualMachineInstanceView{Statuses: statuses("PowerState/running")},
		},
	}

	got := Normalize("azure", vm, Addresses{Public: "20.1.1.1", Private: "10.1.0.4"})
	assert.Equal(t, models.Instance{
		ID:            vmID,
		Name:          "web",
		Provider:      "azure",
		Kind:          models.ProviderAzure,
		Zone:          "eastus",
		Size:          "Standard_B1s",
		PublicIP:      "20.1.1.1",
		PrivateIP:     "10.1.0.4",
		State:         models.StateRunning,
		Image:         "0001-com-ubuntu-server-jammy:22_04-lts",
		ResourceGroup: "prod-rg",
		SSHUser:       "ops",
	}, got)
}

func TestNormalize_MissingProperties(t *testing.T) {
	got := Normalize("azure2", &armcompute.VirtualMachine{ID: to.Ptr(vmID), Name: to.Ptr("bare")}, Addresses{})
	assert.Equal(t, models.StateUnknown, got.State)
	assert.Equal(t, "prod-rg", got.ResourceGroup)
	assert.False(t, got.HasPublicIP())
}

func TestSSHTarget(t *testing.T) {
	s := &Session{id: "azure"}

	target, err := s.SSHTarget(models.Instance{Name: "web", PublicIP: "20.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, models.SSHTarget{User: "azureuser", Host: "20.1.1.1"}, target)

	target, err = s.SSHTarget(models.Instance{Name: "web", PublicIP: "20.1.1.1", SSHUser: "ops"})
	require.NoError(t, err)
	assert.Equal(t, "ops", target.User)

	_, err = s.SSHTarget(models.Instance{Name: "private"})
	assert.Error(t, err)
}

func TestConnect_MissingKeysIsAuthFailure(t *testing.T) {
	_, err := Connect(context.Background(), "azure", models.Credentials{KeyTenantID: "t"})
	assert.True(t, models.IsAuthentication(err))
}
