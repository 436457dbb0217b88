package engine

import (
	"context"
	"errors"
	"fmt"

	"signalis/internal/events"
)

// ErrTransmissionCompleted is returned when a pool mutation targets a
// transmission that has already been finalized.
var ErrTransmissionCompleted = errors.New("transmission already completed")

// PoolChangeResult reports exactly what a pool mutation did, per candidate.
// The counters are telemetry for the submitting user, not correctness state,
// but they must be exact: Added+NotAdded always equals the candidate count.
type PoolChangeResult struct {
	Before   int `json:"before"`
	After    int `json:"after"`
	Added    int `json:"added,omitempty"`
	Removed  int `json:"removed,omitempty"`
	NotAdded int `json:"not_added,omitempty"`

	Incomplete            int `json:"incomplete,omitempty"`
	AlreadyTransmitted    int `json:"already_transmitted,omitempty"`
	AlreadyInTransmission int `json:"already_in_transmission,omitempty"`
	// Other counts candidates rejected for reasons not otherwise classified.
	// It is computed as a reconciling remainder (transmissible minus actually
	// added, plus unknown ids) rather than enumerated per reason.
	Other int `json:"other,omitempty"`
}

// AddToTransmission moves the eligible subset of the candidates into the
// transmission's pool and accounts for every candidate that was left out.
func (e Engine) AddToTransmission(ctx context.Context, transmissionID string, candidateIDs []string, actorID string) (PoolChangeResult, error) {
	var res PoolChangeResult
	t, err := e.Repo.GetTransmission(ctx, transmissionID)
	if err != nil {
		return res, err
	}
	if t.Completed() {
		return res, ErrTransmissionCompleted
	}
	candidates, err := e.Repo.GetReportsByIDs(ctx, candidateIDs)
	if err != nil {
		return res, err
	}
	missing := len(candidateIDs) - len(candidates)

	var transmissible []string
	for _, rp := range candidates {
		switch {
		case !rp.Completed:
			res.Incomplete++
		case rp.PackageID != nil:
			res.AlreadyTransmitted++
		case rp.TransmissionID != nil && *rp.TransmissionID == transmissionID:
			res.AlreadyInTransmission++
		default:
			transmissible = append(transmissible, rp.ID)
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	res.Before, err = e.Repo.CountTransmissionReportsTx(ctx, tx, transmissionID)
	if err != nil {
		return res, err
	}
	if err := e.Repo.AssignReportsToTransmissionTx(ctx, tx, transmissionID, transmissible); err != nil {
		return res, fmt.Errorf("assign reports: %w", err)
	}
	res.After, err = e.Repo.CountTransmissionReportsTx(ctx, tx, transmissionID)
	if err != nil {
		return res, err
	}
	res.Added = res.After - res.Before
	res.Other = len(transmissible) - res.Added + missing
	res.NotAdded = res.Incomplete + res.AlreadyTransmitted + res.AlreadyInTransmission + res.Other

	if res.Added > 0 {
		if err := e.Events.Append(ctx, tx, "transmission.reports_added", "transmission", transmissionID, actorID, events.EventPayload{
			"added": res.Added,
			"after": res.After,
		}); err != nil {
			return res, err
		}
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	return res, nil
}

// RemoveFromTransmission takes the candidates out of the transmission's pool.
// Reports that are not members are untouched.
func (e Engine) RemoveFromTransmission(ctx context.Context, transmissionID string, candidateIDs []string, actorID string) (PoolChangeResult, error) {
	var res PoolChangeResult
	t, err := e.Repo.GetTransmission(ctx, transmissionID)
	if err != nil {
		return res, err
	}
	if t.Completed() {
		return res, ErrTransmissionCompleted
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	res.Before, err = e.Repo.CountTransmissionReportsTx(ctx, tx, transmissionID)
	if err != nil {
		return res, err
	}
	if err := e.Repo.RemoveReportsFromTransmissionTx(ctx, tx, transmissionID, candidateIDs); err != nil {
		return res, fmt.Errorf("remove reports: %w", err)
	}
	res.After, err = e.Repo.CountTransmissionReportsTx(ctx, tx, transmissionID)
	if err != nil {
		return res, err
	}
	res.Removed = res.Before - res.After

	if res.Removed > 0 {
		if err := e.Events.Append(ctx, tx, "transmission.reports_removed", "transmission", transmissionID, actorID, events.EventPayload{
			"removed": res.Removed,
			"after":   res.After,
		}); err != nil {
			return res, err
		}
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	return res, nil
}
