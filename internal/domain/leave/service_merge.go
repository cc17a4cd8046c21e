package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/policy"
	"leavedesk/internal/platform/jobs"
	"leavedesk/internal/platform/metrics"
)

// CarryForwardList builds the admin processing queue: every tagged
// request past the pending stage, split into unmerged and merged lanes,
// with the target-year wallet position alongside.
func (s *Service) CarryForwardList(ctx context.Context, f CarryForwardFilter) ([]CarryForwardRow, error) {
	requests, err := s.Store.CarryForwardRequests(ctx, f.Search)
	if err != nil {
		return nil, err
	}

	var rows []CarryForwardRow
	for _, r := range requests {
		switch r.Status {
		case StatusPending, StatusRejected, StatusCancelled, StatusWithdrawn:
			continue
		}

		originYear := r.StartDate.Year()
		targetYear := originYear + 1
		merged := r.Status == StatusMerged
		if f.Merged != merged {
			continue
		}
		if f.Year != 0 && originYear != f.Year {
			continue
		}

		cfDays := decimal.Zero
		if v, ok := CarryForwardDays(r.Reason); ok {
			cfDays = v
		}

		remain := decimal.Zero
		bal, err := s.calculateShared(ctx, r.EmployeeID, targetYear, policy.TypeAnnual, false)
		switch {
		case err == nil:
			remain = bal.Remaining
		case !errors.Is(err, ErrEntitlementNotFound):
			return nil, err
		}

		rows = append(rows, CarryForwardRow{
			ID:               r.ID,
			EmployeeID:       r.EmployeeID,
			EmployeeName:     r.EmployeeName,
			OriginYear:       originYear,
			TargetYear:       targetYear,
			CFDays:           cfDays,
			Merged:           merged,
			TargetYearRemain: remain,
		})
	}
	return rows, nil
}

// MergeCarryForward credits each approved tagged request into the next
// year's annual wallet and marks it Merged. Ineligible ids are skipped,
// never fatal; the returned count is the number actually merged. Runs
// are recorded in the job ledger when one is wired.
func (s *Service) MergeCarryForward(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no requests selected for merge", ErrInvalidInput)
	}
	if s.Jobs == nil {
		return s.mergeCarryForward(ctx, ids)
	}

	var merged int
	_, err := s.Jobs.RunNow(ctx, jobs.JobCarryForwardMerge, func(ctx context.Context) (string, error) {
		var err error
		merged, err = s.mergeCarryForward(ctx, ids)
		return fmt.Sprintf("merged %d of %d selected requests", merged, len(ids)), err
	})
	return merged, err
}

func (s *Service) mergeCarryForward(ctx context.Context, ids []uuid.UUID) (int, error) {
	pol, err := s.Policy.Get(ctx)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, id := range ids {
		r, err := s.Store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return merged, err
		}
		if r.Status != StatusApproved || !IsCarryForward(r.Reason) {
			continue
		}

		cfDays := decimal.Zero
		if v, ok := CarryForwardDays(r.Reason); ok {
			cfDays = v
		}
		targetYear := r.StartDate.Year() + 1
		line := fmt.Sprintf("\n> Merged to %d Wallet", targetYear)

		ok, err := s.Store.MergeOne(ctx, id, r.EmployeeID, targetYear, cfDays, pol.AnnualDays, line)
		if err != nil {
			return merged, err
		}
		if ok {
			merged++
		}
	}

	metrics.RecordCarryForwardMerged(merged)
	return merged, nil
}
