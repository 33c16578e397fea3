package gcp

import (
	"path"
	"strconv"

	"google.golang.org/api/compute/v1"

	"github.com/hemantobora/mcc/internal/models"
)

var statusMap = map[string]string{
	"RUNNING":      models.StateRunning,
	"PROVISIONING": models.StatePending,
	"STAGING":      models.StatePending,
	"STOPPING":     models.StateStopping,
	"SUSPENDING":   models.StateStopping,
	"SUSPENDED":    models.StateSuspended,
	"TERMINATED":   models.StateStopped,
	"REPAIRING":    models.StateReconfiguring,
}

// Normalize maps a compute instance onto the shared instance model
func Normalize(id models.ProviderID, inst *compute.Instance) models.Instance {
	out := models.Instance{
		ID:       strconv.FormatUint(inst.Id, 10),
		Name:     inst.Name,
		Provider: id,
		Kind:     models.ProviderGCP,
		Zone:     lastElem(inst.Zone),
		Size:     lastElem(inst.MachineType),
		State:    inst.Status,
	}
	if mapped, ok := statusMap[inst.Status]; ok {
		out.State = mapped
	}
	if len(inst.NetworkInterfaces) > 0 && inst.NetworkInterfaces[0] != nil {
		nic := inst.NetworkInterfaces[0]
		out.PrivateIP = nic.NetworkIP
		var nat []string
		for _, ac := range nic.AccessConfigs {
			if ac != nil {
				nat = append(nat, ac.NatIP)
			}
		}
		out.PublicIP = models.FirstAddress(nat)
	}
	for _, d := range inst.Disks {
		if d != nil && d.Boot && len(d.Licenses) > 0 {
			out.Image = lastElem(d.Licenses[len(d.Licenses)-1])
			break
		}
	}
	return out
}

// lastElem returns the final path element of a resource URL
func lastElem(url string) string {
	if url == "" {
		return ""
	}
	return path.Base(url)
}
