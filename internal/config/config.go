// Package config reads the provider list and credentials from the mcc
// configuration file, creating it from a template on first use.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/hemantobora/mcc/internal/models"
)

const (
	// DirName is the dot-directory under the user's home
	DirName = ".cloud"
	// FileName is the configuration file inside DirName
	FileName = "config.ini"

	infoSection  = "info"
	providersKey = "providers"

	// keys ending in fileKeySuffix hold paths relative to the config dir
	fileKeySuffix = "_file"
)

//go:embed config.ini
var template []byte

// ErrConfigCreated is returned by Load when the template was copied into
// place. The operator has to fill in credentials before running again.
var ErrConfigCreated = errors.New("configuration file created")

// Config is the loaded, validated configuration. It is immutable after Load.
type Config struct {
	Path        string
	Dir         string
	Providers   []models.ProviderID
	Credentials map[models.ProviderID]models.Credentials
	// Warnings lists providers dropped while loading
	Warnings []string
}

// DefaultPath returns ~/.cloud/config.ini
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, DirName, FileName), nil
}

// Load reads the configuration at path. A missing file is replaced by the
// template and ErrConfigCreated is returned.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := CreateTemplate(path); err != nil {
			return nil, err
		}
		return nil, ErrConfigCreated
	}

	file, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, path)
	if err != nil {
		return nil, &models.ConfigError{Path: path, Cause: errors.Wrap(err, "read config file")}
	}
	return parse(path, file)
}

func parse(path string, file *ini.File) (*Config, error) {
	providers, err := readProviders(path, file)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Path:        path,
		Dir:         filepath.Dir(path),
		Credentials: make(map[models.ProviderID]models.Credentials),
	}
	for _, id := range providers {
		if _, ok := id.Kind(); !ok {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("Unsupported provider: '%s' listed in config - ignoring", id))
			continue
		}
		section, err := file.GetSection(string(id))
		if err != nil {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("No credentials section in config file for '%s' - provider will be skipped", id))
			continue
		}
		creds := models.Credentials(section.KeysHash())
		for k, v := range creds {
			if strings.HasSuffix(k, fileKeySuffix) {
				creds[k] = cfg.ResolvePath(strings.TrimSpace(v))
			}
		}
		cfg.Providers = append(cfg.Providers, id)
		cfg.Credentials[id] = creds
	}

	if len(cfg.Providers) == 0 {
		return nil, &models.ConfigError{
			Path:  path,
			Key:   infoSection + "." + providersKey,
			Cause: errors.New("no supported provider with a credentials section"),
		}
	}
	return cfg, nil
}

// readProviders returns the de-duplicated provider list in file order
func readProviders(path string, file *ini.File) ([]models.ProviderID, error) {
	section, err := file.GetSection(infoSection)
	if err != nil || !section.HasKey(providersKey) {
		return nil, &models.ConfigError{
			Path:  path,
			Key:   infoSection + "." + providersKey,
			Cause: errors.New("missing providers list"),
		}
	}
	providers := ParseProviders(section.Key(providersKey).String())
	if len(providers) == 0 {
		return nil, &models.ConfigError{
			Path:  path,
			Key:   infoSection + "." + providersKey,
			Cause: errors.New("providers list is empty"),
		}
	}
	return providers, nil
}

// ParseProviders splits a comma separated list, trimming entries and
// dropping blanks and repeats while keeping first-seen order.
func ParseProviders(raw string) []models.ProviderID {
	seen := make(map[string]bool)
	var out []models.ProviderID
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, models.ProviderID(name))
	}
	return out
}

// CreateTemplate copies the bundled sample configuration to path
func CreateTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &models.ConfigError{Path: path, Cause: errors.Wrap(err, "create config directory")}
	}
	if err := os.WriteFile(path, template, 0o600); err != nil {
		return &models.ConfigError{Path: path, Cause: errors.Wrap(err, "copy sample config file")}
	}
	return nil
}

// ResolvePath returns p unchanged when absolute, otherwise relative to dir
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(c.Dir, p)
}
