// Package domain contains tariff plan models and the activation resolver.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Rate is one priced dimension of a tariff plan.
type Rate struct {
	Rate              decimal.Decimal `yaml:"rate"`
	Currency          string          `yaml:"currency"`
	ExternalProductID string          `yaml:"external_product_id"`
}

// Plan is a stored or inline tariff plan. Revision distinguishes re-priced
// versions of the same plan.
type Plan struct {
	Service  string `yaml:"service"`
	Plan     string `yaml:"plan"`
	Revision int    `yaml:"revision"`
	Currency string `yaml:"currency"`

	Monthly *Rate `yaml:"monthly"`
	Hourly  *Rate `yaml:"hourly"`
	Storage *Rate `yaml:"storage"`

	Licenses []string `yaml:"licenses"`
}

// Label identifies a plan group on invoice summaries.
func (p Plan) Label() string {
	return fmt.Sprintf("%s %s %d", p.Service, p.Plan, p.Revision)
}

// PlanRef is either an inline plan or a reference to a plan stored under the
// tariffs directory. Exactly one side is set after decoding; file references
// are resolved eagerly at load time, never at pricing time.
type PlanRef struct {
	File   string
	Inline *Plan
}

// UnmarshalYAML decodes the two historical shapes of a tariff entry: a
// mapping with a "file" key, or an inline plan mapping.
func (r *PlanRef) UnmarshalYAML(value *yaml.Node) error {
	var probe struct {
		File string `yaml:"file"`
	}
	if err := value.Decode(&probe); err != nil {
		return err
	}
	if probe.File != "" {
		r.File = probe.File
		r.Inline = nil
		return nil
	}

	var plan Plan
	if err := value.Decode(&plan); err != nil {
		return err
	}
	if plan.Service == "" {
		return fmt.Errorf("tariff entry has neither file nor inline service/plan")
	}
	r.Inline = &plan
	return nil
}

// IsFile reports whether the ref still points at a stored plan file.
func (r PlanRef) IsFile() bool { return r.File != "" }

// Version is a dated snapshot of which tariff plan(s) apply to an asset from
// that date forward until superseded. Within one asset the version history is
// ordered by Activated descending.
type Version struct {
	Activated time.Time `yaml:"activated"`
	// Added is the date the version entry itself appeared in the client
	// configuration. The proration gap rule compares it against the
	// client's last billing date; when omitted it defaults to Activated.
	Added        time.Time `yaml:"added"`
	Tariffs      []PlanRef `yaml:"tariffs"`
	MigratedFrom string    `yaml:"migrated_from"`
}

// AddedAt returns midnight UTC of the added date, falling back to the
// activation date when the entry never recorded one.
func (v Version) AddedAt() time.Time {
	src := v.Added
	if src.IsZero() {
		src = v.Activated
	}
	y, m, d := src.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Migrated reports whether this version was carried over from a predecessor
// contract, which forces flat whole-month billing.
func (v Version) Migrated() bool { return v.MigratedFrom != "" }

// ActivatedAt returns the activation boundary: midnight UTC of the activation
// date.
func (v Version) ActivatedAt() time.Time {
	y, m, d := v.Activated.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
