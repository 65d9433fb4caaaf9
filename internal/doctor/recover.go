package doctor

import (
	"context"
	"fmt"
)

// RecoveryOutcome reports what recovery did for one zombie unit.
type RecoveryOutcome struct {
	WU        string
	Attempt   int
	Recovered bool
	Escalated bool
}

// Recover handles zombie units: units the log says are in_progress but
// whose claim workspace has vanished. Recovery releases the unit back
// to ready so someone can claim it again. Attempts are counted per
// unit in the local bookkeeping database; once a unit has burned
// through MaxRecoveryAttempts it is escalated instead, and stays
// escalated until an operator resets it.
func (d *Doctor) Recover(ctx context.Context, id string, dryRun bool) (*RecoveryOutcome, error) {
	violations, err := d.Check(ctx, id)
	if err != nil {
		return nil, err
	}

	var zombie *Violation
	for i := range violations {
		if violations[i].Kind == KindZombie {
			zombie = &violations[i]
			break
		}
	}
	if zombie == nil {
		return nil, fmt.Errorf("%s is not a zombie, nothing to recover", id)
	}

	rec, err := d.Store.GetRecovery(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Escalated {
		return &RecoveryOutcome{WU: id, Attempt: rec.Attempts, Escalated: true},
			fmt.Errorf("%s: %w (reset with 'wu recover --reset %s')", id, ErrManualIntervention, id)
	}

	if dryRun {
		return &RecoveryOutcome{WU: id, Attempt: rec.Attempts + 1}, nil
	}

	rec, err = d.Store.RecordRecoveryAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Attempts > d.Config.MaxRecoveryAttempts {
		if err := d.Store.MarkEscalated(ctx, id); err != nil {
			return nil, err
		}
		return &RecoveryOutcome{WU: id, Attempt: rec.Attempts, Escalated: true},
			fmt.Errorf("%s: recovery attempted %d times: %w", id, rec.Attempts-1, ErrManualIntervention)
	}

	res, err := d.Repair(ctx, []Violation{*zombie}, false)
	if err != nil {
		return nil, err
	}
	if len(res.Applied) != 1 {
		return nil, fmt.Errorf("recovery repair for %s was not applied", id)
	}

	return &RecoveryOutcome{WU: id, Attempt: rec.Attempts, Recovered: true}, nil
}

// RecoverAll runs Recover for every zombie found by CheckAll.
// Escalated units are reported, not treated as errors, so one stuck
// unit doesn't stop the sweep.
func (d *Doctor) RecoverAll(ctx context.Context, dryRun bool) ([]RecoveryOutcome, error) {
	violations, err := d.CheckAll(ctx)
	if err != nil {
		return nil, err
	}

	var outcomes []RecoveryOutcome
	for _, v := range violations {
		if v.Kind != KindZombie {
			continue
		}
		out, err := d.Recover(ctx, v.WU, dryRun)
		if err != nil {
			if out != nil && out.Escalated {
				outcomes = append(outcomes, *out)
				continue
			}
			return outcomes, err
		}
		outcomes = append(outcomes, *out)
	}
	return outcomes, nil
}

// ResetRecovery clears the attempt counter and escalation flag,
// re-arming automatic recovery for a unit an operator has fixed.
func (d *Doctor) ResetRecovery(ctx context.Context, id string) error {
	return d.Store.ResetRecovery(ctx, id)
}
