package manifest

import (
	"encoding/json"
	"strings"

	"github.com/vsprovision/vsprovision/errors"
)

// ConstraintType is the dependency strength: Required deps must resolve,
// Recommended/Optional may be filtered by CLI flags (spec.md §4.3).
type ConstraintType string

const (
	Required    ConstraintType = "Required"
	Recommended ConstraintType = "Recommended"
	Optional    ConstraintType = "Optional"
)

// Constraint is spec.md §3's tagged union: a bare version string, or a
// record with version/id/chip/machineArch/type. UnmarshalJSON normalizes
// both wire shapes into this one Go type (spec.md §9's "normalized at the
// edge of the Resolver").
type Constraint struct {
	Version     string
	ID          string
	Chip        string
	MachineArch string
	Type        ConstraintType
}

// UnmarshalJSON accepts either a JSON string (bare version) or a JSON
// object ({"version": ..., "id": ..., "chip": ..., "machineArch": ...,
// "type": ...}).
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Constraint{Version: s, Type: Required}
		return nil
	}
	var rec struct {
		Version     string `json:"version"`
		ID          string `json:"id"`
		Chip        string `json:"chip"`
		MachineArch string `json:"machineArch"`
		Type        string `json:"type"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return errors.Wrap(err, "dependency constraint")
	}
	typ := ConstraintType(rec.Type)
	if typ == "" {
		typ = Required
	}
	*c = Constraint{
		Version:     rec.Version,
		ID:          rec.ID,
		Chip:        rec.Chip,
		MachineArch: rec.MachineArch,
		Type:        typ,
	}
	return nil
}

// MarshalJSON always emits the record form, for --save-manifest round
// trips and for tests constructing literal manifests.
func (c Constraint) MarshalJSON() ([]byte, error) {
	typ := c.Type
	if typ == "" {
		typ = Required
	}
	rec := struct {
		Version     string `json:"version,omitempty"`
		ID          string `json:"id,omitempty"`
		Chip        string `json:"chip,omitempty"`
		MachineArch string `json:"machineArch,omitempty"`
		Type        string `json:"type"`
	}{c.Version, c.ID, c.Chip, c.MachineArch, string(typ)}
	return json.Marshal(rec)
}

// TargetID returns the dependency's effective target package id: the
// constraint's own id if present (it "overrides the map key", spec.md §3),
// else the map key it was looked up under.
func (c Constraint) TargetID(mapKey string) string {
	if c.ID != "" {
		return c.ID
	}
	return mapKey
}

// lowerChip / lowerMachineArch give case-insensitive arch tags for findPackage.
func (c Constraint) lowerChip() string        { return strings.ToLower(c.Chip) }
func (c Constraint) lowerMachineArch() string { return strings.ToLower(c.MachineArch) }
