// Package lane implements the lane registry and admission control: WIP
// limits, lock policies, sub-lane taxonomy validation, and the
// suggestion-only lane inference scorer.
//
// Lane configuration arrives in several historically accepted YAML shapes.
// All of them are normalized here, at the boundary, into one Registry so
// that admission logic has exactly one representation to reason about.
package lane

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LockPolicy determines which statuses count toward a lane's WIP occupancy.
type LockPolicy string

const (
	// LockPolicyAll counts in_progress and blocked units (the default,
	// and the strictest: a blocked unit still holds its lane slot)
	LockPolicyAll LockPolicy = "all"
	// LockPolicyActive counts only in_progress units; blocking releases the slot
	LockPolicyActive LockPolicy = "active"
	// LockPolicyNone disables occupancy counting entirely
	LockPolicyNone LockPolicy = "none"
)

// IsValid checks if the lock policy is one of the defined values.
func (p LockPolicy) IsValid() bool {
	return p == LockPolicyAll || p == LockPolicyActive || p == LockPolicyNone
}

// Def is one normalized lane definition.
type Def struct {
	Name             string     `yaml:"name"`
	WipLimit         int        `yaml:"wip_limit"`
	LockPolicy       LockPolicy `yaml:"lock_policy"`
	WipJustification string     `yaml:"wip_justification"`
	// Patterns are code-path globs used by the inference scorer
	Patterns []string `yaml:"patterns"`
	// Keywords are description terms used by the inference scorer
	Keywords []string `yaml:"keywords"`
}

// Registry is the normalized lane configuration: one case-insensitive
// lookup plus the original definition order (the inference tie-break).
type Registry struct {
	defs  map[string]*Def // keyed by lower-cased name
	order []string        // original config order, lower-cased
}

// rawConfig covers every accepted YAML shape in one decode pass:
//
//	flat list:            lanes: [{name: Core, wip_limit: 2}, ...]
//	nested definitions:   definitions: {Core: {wip_limit: 2}, "Docs: API": {}}
//	legacy grouped:       groups: {Platform: [{name: Core}, ...]}
type rawConfig struct {
	Lanes       []Def            `yaml:"lanes"`
	Definitions yaml.Node        `yaml:"definitions"`
	Groups      map[string][]Def `yaml:"groups"`
}

// ParseConfig normalizes lane configuration YAML in any accepted shape.
func ParseConfig(data []byte) (*Registry, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed lane config: %w", err)
	}

	r := &Registry{defs: make(map[string]*Def)}

	for i := range raw.Lanes {
		if err := r.add(raw.Lanes[i]); err != nil {
			return nil, err
		}
	}

	// definitions is a mapping keyed by lane name; decode via yaml.Node to
	// preserve document order, which map[string]Def would destroy.
	if raw.Definitions.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(raw.Definitions.Content); i += 2 {
			keyNode := raw.Definitions.Content[i]
			valNode := raw.Definitions.Content[i+1]
			var def Def
			if err := valNode.Decode(&def); err != nil {
				return nil, fmt.Errorf("malformed lane definition %q: %w", keyNode.Value, err)
			}
			def.Name = keyNode.Value
			if err := r.add(def); err != nil {
				return nil, err
			}
		}
	} else if raw.Definitions.Kind != 0 && raw.Definitions.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("malformed lane config: definitions must be a mapping")
	}

	for _, defs := range raw.Groups {
		for i := range defs {
			if err := r.add(defs[i]); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

// LoadConfig reads and normalizes a lane configuration file. A missing
// file yields an empty registry: every lane then falls back to defaults.
func LoadConfig(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{defs: make(map[string]*Def)}, nil
		}
		return nil, fmt.Errorf("failed to read lane config: %w", err)
	}
	return ParseConfig(data)
}

func (r *Registry) add(def Def) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("malformed lane config: lane with empty name")
	}
	def.Name = name
	key := strings.ToLower(name)
	if _, dup := r.defs[key]; dup {
		return fmt.Errorf("malformed lane config: duplicate lane %q", name)
	}
	r.defs[key] = &def
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the definition for a lane by case-insensitive name.
func (r *Registry) Lookup(lane string) (*Def, bool) {
	def, ok := r.defs[strings.ToLower(strings.TrimSpace(lane))]
	return def, ok
}

// Names returns all configured lane names in original config order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.defs[key].Name)
	}
	return out
}

// WipLimitFor returns the WIP limit for a lane. Unknown lanes and
// non-positive configured limits default to 1.
func (r *Registry) WipLimitFor(lane string) int {
	def, ok := r.Lookup(lane)
	if !ok || def.WipLimit < 1 {
		return 1
	}
	return def.WipLimit
}

// LockPolicyFor returns the lock policy for a lane. Unknown lanes and
// invalid policy strings fall back to "all", the strictest policy, so a
// typo in config can only make admission tighter, never looser.
func (r *Registry) LockPolicyFor(lane string) LockPolicy {
	def, ok := r.Lookup(lane)
	if !ok || !def.LockPolicy.IsValid() {
		return LockPolicyAll
	}
	return def.LockPolicy
}

// Justification is the result of a WIP-justification check. It is always
// advisory: Valid is true even when Warning is set.
type Justification struct {
	Valid   bool
	Warning string
}

// CheckJustification checks whether a lane with WIP limit above 1 carries
// a written justification. This never blocks: a raised limit without a
// justification produces a warning advising better lane boundaries
// instead of a hard error.
func (r *Registry) CheckJustification(lane string) Justification {
	if r.WipLimitFor(lane) == 1 {
		return Justification{Valid: true}
	}
	def, _ := r.Lookup(lane)
	if def != nil && strings.TrimSpace(def.WipJustification) != "" {
		return Justification{Valid: true}
	}
	return Justification{
		Valid:   true,
		Warning: fmt.Sprintf("lane %q has wip_limit > 1 without wip_justification; if you need WIP>1, you need better lanes, not higher limits", lane),
	}
}
