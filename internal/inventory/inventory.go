// Package inventory builds the numbered, sorted snapshot of instances the
// command loop addresses.
package inventory

import (
	"sort"
	"strings"

	"github.com/hemantobora/mcc/internal/models"
)

// Entry is one numbered row of the inventory
type Entry struct {
	Number   int
	Instance models.Instance
}

// Inventory is an immutable, 1-based numbered list of instances sorted by
// provider id and case-insensitive name. Numbers are positional and are
// recomputed from scratch on every Build.
type Inventory struct {
	entries []Entry
}

// Build sorts a copy of instances and numbers them 1..N
func Build(instances []models.Instance) *Inventory {
	sorted := append([]models.Instance(nil), instances...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	entries := make([]Entry, len(sorted))
	for i, inst := range sorted {
		entries[i] = Entry{Number: i + 1, Instance: inst}
	}
	return &Inventory{entries: entries}
}

// Len returns the number of instances
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.entries)
}

// Get returns the instance numbered n
func (inv *Inventory) Get(n int) (models.Instance, bool) {
	if n < 1 || n > inv.Len() {
		return models.Instance{}, false
	}
	return inv.entries[n-1].Instance, true
}

// Entries returns the numbered rows in display order
func (inv *Inventory) Entries() []Entry {
	if inv == nil {
		return nil
	}
	return append([]Entry(nil), inv.entries...)
}

// Instances returns the instances in display order
func (inv *Inventory) Instances() []models.Instance {
	out := make([]models.Instance, 0, inv.Len())
	for _, e := range inv.Entries() {
		out = append(out, e.Instance)
	}
	return out
}
