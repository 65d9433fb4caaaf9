package lane

import (
	"fmt"
	"log"
	"strings"

	"github.com/wucoord/wu/internal/types"
)

// TaxonomyError is raised when a lane string violates the sub-lane
// taxonomy registered for its parent. ValidSubLanes is attached so the
// caller can print the allowed list.
type TaxonomyError struct {
	Lane          string
	Parent        string
	ValidSubLanes []string
	Reason        string
}

func (e *TaxonomyError) Error() string {
	return fmt.Sprintf("invalid lane %q: %s (valid sub-lanes of %s: %s)",
		e.Lane, e.Reason, e.Parent, strings.Join(e.ValidSubLanes, ", "))
}

// SubLanesOf returns the registered sub-lane names under a parent, in
// config order. A parent "bears a taxonomy" when at least one
// "Parent: Sub" lane is configured for it.
func (r *Registry) SubLanesOf(parent string) []string {
	parentKey := strings.ToLower(strings.TrimSpace(parent))
	var subs []string
	for _, key := range r.order {
		def := r.defs[key]
		p, sub, err := types.ParseLane(def.Name)
		if err != nil || sub == "" {
			continue
		}
		if strings.ToLower(p) == parentKey {
			subs = append(subs, sub)
		}
	}
	return subs
}

// ValidateLane validates a lane string against the registered taxonomy.
//
// Rules:
//   - malformed lane strings are rejected outright
//   - a bare parent whose taxonomy has registered sub-lanes is rejected in
//     strict mode (the valid sub-lane list rides on the error); in
//     non-strict mode it logs a warning and passes
//   - an unknown sub-lane under a taxonomy-bearing parent is rejected by
//     name regardless of mode
//   - parents without a registered taxonomy accept bare usage and any
//     sub-lane unconditionally
func (r *Registry) ValidateLane(lane string, strict bool) error {
	parent, sub, err := types.ParseLane(lane)
	if err != nil {
		return err
	}

	subs := r.SubLanesOf(parent)
	if len(subs) == 0 {
		return nil
	}

	if sub == "" {
		terr := &TaxonomyError{
			Lane:          lane,
			Parent:        parent,
			ValidSubLanes: subs,
			Reason:        "parent has registered sub-lanes; pick one",
		}
		if !strict {
			log.Printf("warning: %v", terr)
			return nil
		}
		return terr
	}

	subKey := strings.ToLower(sub)
	for _, s := range subs {
		if strings.ToLower(s) == subKey {
			return nil
		}
	}
	return &TaxonomyError{
		Lane:          lane,
		Parent:        parent,
		ValidSubLanes: subs,
		Reason:        fmt.Sprintf("unknown sub-lane %q", sub),
	}
}
