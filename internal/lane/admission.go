package lane

import (
	"fmt"
	"strings"

	"github.com/wucoord/wu/internal/types"
)

// UnitStatus is the slice of derived state admission control needs: one
// entry per known unit. Callers adapt the event-log projection into this
// shape so the lane package stays free of storage concerns.
type UnitStatus struct {
	ID     string
	Lane   string
	Status types.Status
}

// Availability reports whether a lane has a free WIP slot.
type Availability struct {
	Free          bool
	CurrentCount  int
	WipLimit      int
	OccupiedBy    string // first occupant id, for error messages
	InProgressWUs []string
}

// CapacityError is raised when a claim is rejected because the lane is at
// its WIP limit.
type CapacityError struct {
	Lane       string
	OccupiedBy string
	WipLimit   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("lane %q is at WIP capacity (%d): occupied by %s; finish or release %s first, or claim a unit in another lane",
		e.Lane, e.WipLimit, e.OccupiedBy, e.OccupiedBy)
}

// CheckLaneFree counts the units currently occupying a lane, filtered by
// the lane's lock policy, and reports whether candidateID can be admitted.
//
// Policy all counts in_progress + blocked; policy active counts only
// in_progress (a blocked unit gives its slot back); policy none disables
// counting and the lane is always free.
//
// The check is optimistic and advisory: two truly simultaneous claims can
// both see a free slot. The VCS push that carries the claim event is the
// real serialization point; this check exists for user experience.
func (r *Registry) CheckLaneFree(snapshot []UnitStatus, lane, candidateID string) Availability {
	limit := r.WipLimitFor(lane)
	policy := r.LockPolicyFor(lane)

	avail := Availability{WipLimit: limit}
	if policy == LockPolicyNone {
		avail.Free = true
		return avail
	}

	laneKey := strings.ToLower(strings.TrimSpace(lane))
	for _, u := range snapshot {
		if u.ID == candidateID {
			continue
		}
		if strings.ToLower(strings.TrimSpace(u.Lane)) != laneKey {
			continue
		}
		occupies := u.Status == types.StatusInProgress ||
			(policy == LockPolicyAll && u.Status == types.StatusBlocked)
		if !occupies {
			continue
		}
		avail.CurrentCount++
		if avail.OccupiedBy == "" {
			avail.OccupiedBy = u.ID
		}
		if u.Status == types.StatusInProgress {
			avail.InProgressWUs = append(avail.InProgressWUs, u.ID)
		}
	}

	avail.Free = avail.CurrentCount < limit
	return avail
}

// Admit is the claim-path convenience over CheckLaneFree: it returns a
// *CapacityError when the lane is full.
func (r *Registry) Admit(snapshot []UnitStatus, lane, candidateID string) (Availability, error) {
	avail := r.CheckLaneFree(snapshot, lane, candidateID)
	if !avail.Free {
		return avail, &CapacityError{Lane: lane, OccupiedBy: avail.OccupiedBy, WipLimit: avail.WipLimit}
	}
	return avail, nil
}
