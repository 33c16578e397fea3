// Package models provides shared data structures used across the mcc application
package models

import (
	"strings"
)

// ProviderKind is one of the supported cloud platforms
type ProviderKind string

const (
	ProviderAWS   ProviderKind = "aws"
	ProviderAzure ProviderKind = "azure"
	ProviderGCP   ProviderKind = "gcp"
)

// SupportedKinds lists every provider kind in display order
var SupportedKinds = []ProviderKind{ProviderAWS, ProviderAzure, ProviderGCP}

// Label returns the display label used in tables and messages
func (k ProviderKind) Label() string {
	switch k {
	case ProviderAWS:
		return "AWS"
	case ProviderAzure:
		return "Azure"
	case ProviderGCP:
		return "GCP"
	default:
		return string(k)
	}
}

// ProviderID is a configured provider entry, e.g. "aws" or "aws2" for a
// second AWS account. It keys credentials and sessions.
type ProviderID string

// Kind strips the numeric account suffix and resolves the provider kind.
func (id ProviderID) Kind() (ProviderKind, bool) {
	base := strings.TrimRight(string(id), "0123456789")
	for _, k := range SupportedKinds {
		if base == string(k) {
			return k, true
		}
	}
	return "", false
}

// Credentials holds one provider entry's credential keys
type Credentials map[string]string

// Get returns the trimmed value of key, or "" when unset
func (c Credentials) Get(key string) string {
	return strings.TrimSpace(c[key])
}

// Instance states. Provider adapters map their own vocabulary onto these.
const (
	StateRunning       = "running"
	StateStarting      = "starting"
	StateRebooting     = "rebooting"
	StatePending       = "pending"
	StateSuspended     = "suspended"
	StatePaused        = "paused"
	StateStopping      = "stopping"
	StateStopped       = "stopped"
	StateFailed        = "error"
	StateUnknown       = "unknown"
	StateReconfiguring = "reconfiguring"
	StateTerminated    = "terminated"
)

// Instance is the normalized view of a remote compute instance
type Instance struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Provider      ProviderID   `json:"provider"`
	Kind          ProviderKind `json:"kind"`
	Zone          string       `json:"zone"`
	Size          string       `json:"size"`
	PublicIP      string       `json:"public_ip,omitempty"`
	PrivateIP     string       `json:"private_ip,omitempty"`
	State         string       `json:"state"`
	Image         string       `json:"image,omitempty"`
	ResourceGroup string       `json:"resource_group,omitempty"` // azure
	SSHUser       string       `json:"ssh_user,omitempty"`       // explicit OS profile user
	KeyName       string       `json:"key_name,omitempty"`       // aws key pair
}

// ProviderLabel returns the display label of the instance's provider
func (i Instance) ProviderLabel() string {
	return i.Kind.Label()
}

// HasPublicIP reports whether a public address is assigned
func (i Instance) HasPublicIP() bool {
	return i.PublicIP != ""
}

// SSHTarget describes how to open a remote shell on an instance
type SSHTarget struct {
	User    string
	Host    string
	KeyPath string // empty when the provider uses agent/default keys
}

// Args returns the ssh command line arguments for the target
func (t SSHTarget) Args() []string {
	var args []string
	if t.KeyPath != "" {
		args = append(args, "-i", t.KeyPath)
	}
	return append(args, t.User+"@"+t.Host)
}

// FirstAddress converts an address list to its first entry, or "" when empty
func FirstAddress(addrs []string) string {
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			return a
		}
	}
	return ""
}
