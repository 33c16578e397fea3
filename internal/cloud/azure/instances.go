package azure

import (
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/hemantobora/mcc/internal/models"
)

const (
	groupToken      = "resourcegroups/"
	powerPrefix     = "PowerState/"
	provisionFailed = "ProvisioningState/failed"
)

var powerStates = map[string]string{
	"running":      models.StateRunning,
	"starting":     models.StateStarting,
	"stopping":     models.StateStopping,
	"stopped":      models.StateStopped,
	"deallocating": models.StateStopping,
	"deallocated":  models.StateStopped,
	"unknown":      models.StateUnknown,
}

// Addresses holds the resolved addresses of a VM's primary NIC
type Addresses struct {
	Public  string
	Private string
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ResourceGroup extracts the resource group from an ARM resource id. The
// segment is matched case-insensitively since ARM is inconsistent about it.
func ResourceGroup(id string) string {
	i := strings.Index(strings.ToLower(id), groupToken)
	if i < 0 {
		return ""
	}
	rest := id[i+len(groupToken):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// ResourceName returns the last path segment of an ARM resource id
func ResourceName(id string) string {
	id = strings.TrimRight(id, "/")
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// PowerState maps instance view status codes onto the shared vocabulary
func PowerState(statuses []*armcompute.InstanceViewStatus) string {
	failed := false
	for _, st := range statuses {
		if st == nil || st.Code == nil {
			continue
		}
		code := *st.Code
		if strings.HasPrefix(code, provisionFailed) {
			failed = true
		}
		if raw, ok := strings.CutPrefix(code, powerPrefix); ok {
			if mapped, ok := powerStates[raw]; ok {
				return mapped
			}
			return raw
		}
	}
	if failed {
		return models.StateFailed
	}
	return models.StateUnknown
}

// Normalize maps an ARM virtual machine onto the shared instance model
func Normalize(id models.ProviderID, vm *armcompute.VirtualMachine, addrs Addresses) models.Instance {
	out := models.Instance{
		ID:            str(vm.ID),
		Name:          str(vm.Name),
		Provider:      id,
		Kind:          models.ProviderAzure,
		Zone:          str(vm.Location),
		ResourceGroup: ResourceGroup(str(vm.ID)),
		PublicIP:      addrs.Public,
		PrivateIP:     addrs.Private,
		State:         models.StateUnknown,
	}
	props := vm.Properties
	if props == nil {
		return out
	}
	if props.HardwareProfile != nil && props.HardwareProfile.VMSize != nil {
		out.Size = string(*props.HardwareProfile.VMSize)
	}
	if props.OSProfile != nil {
		out.SSHUser = str(props.OSProfile.AdminUsername)
	}
	if props.StorageProfile != nil && props.StorageProfile.ImageReference != nil {
		ref := props.StorageProfile.ImageReference
		out.Image = strings.Trim(str(ref.Offer)+":"+str(ref.SKU), ":")
	}
	if props.InstanceView != nil {
		out.State = PowerState(props.InstanceView.Statuses)
	}
	return out
}
