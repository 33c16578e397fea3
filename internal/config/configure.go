package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/hemantobora/mcc/internal/models"
)

// Field is one credential key prompted for by Configure
type Field struct {
	Key      string
	Prompt   string
	Secret   bool
	Optional bool
	Default  string
}

// Fields lists the credential keys each provider kind reads
var Fields = map[models.ProviderKind][]Field{
	models.ProviderAWS: {
		{Key: "aws_access_key_id", Prompt: "AWS access key id"},
		{Key: "aws_secret_access_key", Prompt: "AWS secret access key", Secret: true},
		{Key: "aws_default_region", Prompt: "AWS region", Default: "us-east-1"},
	},
	models.ProviderAzure: {
		{Key: "az_tenant_id", Prompt: "Azure tenant id"},
		{Key: "az_sub_id", Prompt: "Azure subscription id"},
		{Key: "az_app_id", Prompt: "Azure application (client) id"},
		{Key: "az_app_sec", Prompt: "Azure application secret", Secret: true},
	},
	models.ProviderGCP: {
		{Key: "gcp_auth_type", Prompt: "GCP auth type (S = service account, A = application default)", Default: "S"},
		{Key: "gcp_proj_id", Prompt: "GCP project id"},
		{Key: "gcp_svc_acct_email", Prompt: "GCP service account email", Optional: true},
		{Key: "gcp_pem_file", Prompt: "GCP key file (relative to config dir)", Optional: true},
		{Key: "gcp_user", Prompt: "SSH user for GCP instances", Optional: true},
	},
}

// Entry is one provider section written by Write
type Entry struct {
	ID          models.ProviderID
	Credentials models.Credentials
}

// Write saves entries as a complete configuration file at path, replacing
// any existing file.
func Write(path string, entries []Entry) error {
	if len(entries) == 0 {
		return &models.ConfigError{Path: path, Cause: errors.New("no providers to write")}
	}
	file := ini.Empty()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, string(e.ID))
	}
	info, err := file.NewSection(infoSection)
	if err != nil {
		return errors.Wrap(err, "create info section")
	}
	if _, err := info.NewKey(providersKey, strings.Join(ids, ", ")); err != nil {
		return errors.Wrap(err, "write providers key")
	}

	for _, e := range entries {
		section, err := file.NewSection(string(e.ID))
		if err != nil {
			return errors.Wrapf(err, "create section %s", e.ID)
		}
		kind, _ := e.ID.Kind()
		for _, f := range Fields[kind] {
			v, ok := e.Credentials[f.Key]
			if !ok {
				continue
			}
			if _, err := section.NewKey(f.Key, v); err != nil {
				return errors.Wrapf(err, "write %s.%s", e.ID, f.Key)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &models.ConfigError{Path: path, Cause: errors.Wrap(err, "create config directory")}
	}
	if err := file.SaveTo(path); err != nil {
		return &models.ConfigError{Path: path, Cause: errors.Wrap(err, "save config file")}
	}
	return os.Chmod(path, 0o600)
}

// Configure interactively collects provider credentials and writes them to
// path. opts are passed to every survey prompt.
func Configure(path string, opts ...survey.AskOpt) error {
	var kinds []string
	options := make([]string, 0, len(models.SupportedKinds))
	for _, k := range models.SupportedKinds {
		options = append(options, string(k))
	}
	if err := survey.AskOne(&survey.MultiSelect{
		Message: "Which providers do you want to configure?",
		Options: options,
	}, &kinds, append(opts, survey.WithValidator(survey.Required))...); err != nil {
		return err
	}

	var entries []Entry
	for _, name := range kinds {
		kind := models.ProviderKind(name)
		accounts := 1
		var count string
		if err := survey.AskOne(&survey.Input{
			Message: fmt.Sprintf("How many %s accounts?", kind.Label()),
			Default: "1",
		}, &count, opts...); err != nil {
			return err
		}
		if _, err := fmt.Sscanf(count, "%d", &accounts); err != nil || accounts < 1 {
			accounts = 1
		}

		for n := 1; n <= accounts; n++ {
			id := models.ProviderID(kind)
			if n > 1 {
				id = models.ProviderID(fmt.Sprintf("%s%d", kind, n))
			}
			fmt.Printf("\n🔑 Credentials for %s\n", id)
			creds, err := askCredentials(kind, opts)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{ID: id, Credentials: creds})
		}
	}

	if _, err := os.Stat(path); err == nil {
		overwrite := false
		if err := survey.AskOne(&survey.Confirm{
			Message: fmt.Sprintf("%s exists. Overwrite?", path),
			Default: false,
		}, &overwrite, opts...); err != nil {
			return err
		}
		if !overwrite {
			return errors.New("configuration not written")
		}
	}
	return Write(path, entries)
}

func askCredentials(kind models.ProviderKind, opts []survey.AskOpt) (models.Credentials, error) {
	creds := make(models.Credentials)
	for _, f := range Fields[kind] {
		var prompt survey.Prompt
		if f.Secret {
			prompt = &survey.Password{Message: f.Prompt + ":"}
		} else {
			prompt = &survey.Input{Message: f.Prompt + ":", Default: f.Default}
		}
		fieldOpts := opts
		if !f.Optional {
			fieldOpts = append(append([]survey.AskOpt(nil), opts...), survey.WithValidator(survey.Required))
		}
		var value string
		if err := survey.AskOne(prompt, &value, fieldOpts...); err != nil {
			return nil, err
		}
		if value = strings.TrimSpace(value); value != "" {
			creds[f.Key] = value
		}
	}
	return creds, nil
}
