package aws

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/hemantobora/mcc/internal/models"
)

var stateMap = map[types.InstanceStateName]string{
	types.InstanceStateNamePending:      models.StatePending,
	types.InstanceStateNameRunning:      models.StateRunning,
	types.InstanceStateNameShuttingDown: models.StateStopping,
	types.InstanceStateNameTerminated:   models.StateTerminated,
	types.InstanceStateNameStopping:     models.StateStopping,
	types.InstanceStateNameStopped:      models.StateStopped,
}

// userByImage is matched in order against the lowercased image name
var userByImage = []struct {
	match string
	user  string
}{
	{"ubuntu", "ubuntu"},
	{"debian", "admin"},
	{"centos", "centos"},
	{"fedora", "fedora"},
	{"bitnami", "bitnami"},
	{"amzn", "ec2-user"},
	{"rhel", "ec2-user"},
	{"suse", "ec2-user"},
}

const defaultUser = "ec2-user"

// ListInstances returns every instance in the session's region
func (s *Session) ListInstances(ctx context.Context) ([]models.Instance, error) {
	var raw []types.Instance
	pager := ec2.NewDescribeInstancesPaginator(s.client, &ec2.DescribeInstancesInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(s.id, "list", err)
		}
		for _, r := range page.Reservations {
			raw = append(raw, r.Instances...)
		}
	}

	images := s.imageNames(ctx, raw)
	out := make([]models.Instance, 0, len(raw))
	for _, inst := range raw {
		out = append(out, Normalize(s.id, inst, images))
	}
	s.log.WithField("count", len(out)).Debug("listed instances")
	return out, nil
}

// imageNames resolves image ids to names. Lookup failures only degrade SSH
// user inference, so they are logged and ignored.
func (s *Session) imageNames(ctx context.Context, raw []types.Instance) map[string]string {
	seen := make(map[string]bool)
	var ids []string
	for _, inst := range raw {
		id := aws.ToString(inst.ImageId)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	out, err := s.client.DescribeImages(ctx, &ec2.DescribeImagesInput{ImageIds: ids})
	if err != nil {
		s.log.WithError(err).Debug("describe images failed")
		return names
	}
	for _, img := range out.Images {
		names[aws.ToString(img.ImageId)] = aws.ToString(img.Name)
	}
	return names
}

// Normalize maps an EC2 instance onto the shared instance model. images maps
// image id to image name.
func Normalize(id models.ProviderID, inst types.Instance, images map[string]string) models.Instance {
	out := models.Instance{
		ID:        aws.ToString(inst.InstanceId),
		Provider:  id,
		Kind:      models.ProviderAWS,
		Size:      string(inst.InstanceType),
		PublicIP:  aws.ToString(inst.PublicIpAddress),
		PrivateIP: aws.ToString(inst.PrivateIpAddress),
		KeyName:   aws.ToString(inst.KeyName),
		Name:      nameTag(inst.Tags),
	}
	if out.Name == "" {
		out.Name = out.ID
	}
	if inst.Placement != nil {
		out.Zone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	if name, ok := images[aws.ToString(inst.ImageId)]; ok && name != "" {
		out.Image = name
	} else {
		out.Image = aws.ToString(inst.ImageId)
	}
	if inst.State != nil {
		raw := inst.State.Name
		if mapped, ok := stateMap[raw]; ok {
			out.State = mapped
		} else {
			out.State = string(raw)
		}
	}
	return out
}

func nameTag(tags []types.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == "Name" {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

// SSHUser infers the login user from an image name
func SSHUser(image string) string {
	image = strings.ToLower(image)
	for _, u := range userByImage {
		if strings.Contains(image, u.match) {
			return u.user
		}
	}
	return defaultUser
}
