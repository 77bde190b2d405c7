// Package domain contains client and asset configuration models.
package domain

import (
	"sort"
	"time"

	tariffdomain "github.com/smallbiznis/servicebill/internal/tariff/domain"
)

// DefaultAssetKind is assumed when an asset declaration omits kind.
const DefaultAssetKind = "server"

// Asset is a billable unit (server, storage target, ...) owned by exactly one
// client and identified by its fqdn across tariff and usage records.
type Asset struct {
	FQDN        string `yaml:"fqdn"`
	Kind        string `yaml:"kind"`
	Active      bool   `yaml:"active"`
	Location    string `yaml:"location"`
	Description string `yaml:"description"`

	// Tariffs is the version history, ordered by activation descending.
	Tariffs []tariffdomain.Version `yaml:"tariffs"`

	// ActivatedTariff is attached eagerly at resolve time: the plans of
	// the version effective at the resolution instant, with file refs
	// expanded.
	ActivatedTariff []tariffdomain.Plan `yaml:"-"`
	// Licenses aggregates license grants across the activated plans.
	Licenses []string `yaml:"-"`
}

// FirstActivated returns the asset's earliest tariff activation date. The
// history is ordered descending, so this is the last entry.
func (a Asset) FirstActivated() time.Time {
	if len(a.Tariffs) == 0 {
		return time.Time{}
	}
	return a.Tariffs[len(a.Tariffs)-1].ActivatedAt()
}

// Contract carries the client's contract metadata used on invoice documents.
type Contract struct {
	Recipient string `yaml:"recipient"`
	Details   string `yaml:"details"`
	Name      string `yaml:"name"`
	Person    string `yaml:"person"`
	Sign      string `yaml:"sign"`
}

// Billing is the per-client billing configuration.
type Billing struct {
	Code     string   `yaml:"code"`
	Currency string   `yaml:"currency"`
	Template string   `yaml:"template"`
	Locale   string   `yaml:"locale"`
	Contract Contract `yaml:"contract"`

	// EmployeeShare maps employee usernames to their revenue share
	// percent. Missing entries fall back to the operator default.
	EmployeeShare map[string]float64 `yaml:"employee_share"`
}

// Include declares layered configuration fragments merged into the client
// document.
type Include struct {
	Dirs      []string `yaml:"dirs"`
	Files     []string `yaml:"files"`
	SkipFiles []string `yaml:"skip_files"`
}

// Salt holds management-node declarations for clients managed via a master.
type Salt struct {
	Masters []Asset `yaml:"masters"`
}

// ConfigurationManagement selects how the client's servers are managed.
// Masters of mode "salt" are billable assets in their own right.
type ConfigurationManagement struct {
	Type string `yaml:"type"`
	Salt Salt   `yaml:"salt"`
}

// Client is a managed-services customer with its full asset declaration.
type Client struct {
	Name      string    `yaml:"name"`
	Active    bool      `yaml:"active"`
	Vendor    string    `yaml:"vendor"`
	StartDate time.Time `yaml:"start_date"`

	Billing Billing  `yaml:"billing"`
	Include *Include `yaml:"include"`

	ConfigurationManagement ConfigurationManagement `yaml:"configuration_management"`

	// Servers is the deprecated spelling of Assets; both lists are
	// concatenated across include layers.
	Servers []Asset `yaml:"servers"`
	Assets  []Asset `yaml:"assets"`
}

// SortAssetsForReport orders assets by first tariff activation, then fqdn,
// to keep report output deterministic.
func SortAssetsForReport(assets []Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		ai, aj := assets[i].FirstActivated(), assets[j].FirstActivated()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return assets[i].FQDN < assets[j].FQDN
	})
}
