// internal/cloud/aws/provider.go
package aws

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hemantobora/mcc/internal/models"
)

// Credential keys read from the provider's config section
const (
	KeyAccessKeyID     = "aws_access_key_id"
	KeySecretAccessKey = "aws_secret_access_key"
	KeyRegion          = "aws_default_region"
)

const defaultRegion = "us-east-1"

// ec2API is the subset of the EC2 client the session uses
type ec2API interface {
	ec2.DescribeInstancesAPIClient
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

// Session is an authenticated handle to one AWS account and region
type Session struct {
	id     models.ProviderID
	client ec2API
	keyDir string
	log    logrus.FieldLogger
}

// Option is a functional option for session configuration
type Option func(*Session)

// WithKeyDir sets the directory holding key-pair identity files
func WithKeyDir(dir string) Option {
	return func(s *Session) { s.keyDir = dir }
}

// WithLogger sets the diagnostic logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession wraps an existing EC2 client
func NewSession(id models.ProviderID, region string, client ec2API, options ...Option) *Session {
	s := &Session{
		id:     id,
		client: client,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"provider": id, "region": region})
	return s
}

// Connect builds a client from static credentials and validates them with
// STS GetCallerIdentity. It does not retry.
func Connect(ctx context.Context, id models.ProviderID, creds models.Credentials, options ...Option) (*Session, error) {
	keyID, secret := creds.Get(KeyAccessKeyID), creds.Get(KeySecretAccessKey)
	if keyID == "" || secret == "" {
		return nil, &models.AuthenticationError{
			Provider: id,
			Cause:    fmt.Errorf("%s and %s are required", KeyAccessKeyID, KeySecretAccessKey),
		}
	}
	region := creds.Get(KeyRegion)
	if region == "" {
		region = defaultRegion
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(keyID, secret, "")),
	)
	if err != nil {
		return nil, &models.ProviderError{
			Provider:  id,
			Operation: "load-config",
			Resource:  region,
			Cause:     pkgerrors.Wrap(err, "failed to load AWS config"),
		}
	}

	if _, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return nil, classify(id, "connect", err)
	}

	return NewSession(id, region, ec2.NewFromConfig(cfg), options...), nil
}

// ID returns the configured provider identifier
func (s *Session) ID() models.ProviderID {
	return s.id
}

// Start issues StartInstances for inst
func (s *Session) Start(ctx context.Context, inst models.Instance) error {
	s.log.WithField("instance", inst.ID).Debug("starting instance")
	_, err := s.client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{inst.ID}})
	if err != nil {
		return classify(s.id, "start", err)
	}
	return nil
}

// Stop issues StopInstances for inst. EC2 returns while the instance is
// still stopping.
func (s *Session) Stop(ctx context.Context, inst models.Instance) error {
	s.log.WithField("instance", inst.ID).Debug("stopping instance")
	_, err := s.client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{inst.ID}})
	if err != nil {
		return classify(s.id, "stop", err)
	}
	return nil
}

// SSHTarget resolves the login user from the image name and the identity
// file from the instance key pair.
func (s *Session) SSHTarget(inst models.Instance) (models.SSHTarget, error) {
	if !inst.HasPublicIP() {
		return models.SSHTarget{}, &models.ProviderError{
			Provider: s.id, Operation: "connect-ssh", Resource: inst.Name,
			Cause: errors.New("instance has no public IP"),
		}
	}
	target := models.SSHTarget{User: SSHUser(inst.Image), Host: inst.PublicIP}
	if inst.KeyName != "" && s.keyDir != "" {
		target.KeyPath = filepath.Join(s.keyDir, inst.KeyName+".pem")
	}
	return target, nil
}

var authErrorCodes = map[string]bool{
	"AuthFailure":                 true,
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"UnrecognizedClientException": true,
	"ExpiredToken":                true,
	"InvalidAccessKeyId":          true,
	"UnauthorizedOperation":       true,
}

// classify maps an SDK error onto the authentication/transport taxonomy
func classify(id models.ProviderID, op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return &models.AuthenticationError{Provider: id, Cause: err}
	}
	return &models.TransportError{Provider: id, Operation: op, Cause: err}
}
