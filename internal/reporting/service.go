package reporting

import (
	"context"
	"errors"

	"agent-console/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service aggregates persisted call records. Reads are always scoped to one agent line.
type Service struct {
	repo calls.Repository
}

func NewService(repo calls.Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.AgentNumber == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.List(ctx, req.AgentNumber, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{AgentNumber: req.AgentNumber, Range: req.Range}
	answered := 0
	for _, r := range rows {
		out.TotalCalls++
		switch r.Status {
		case calls.StatusCompleted:
			out.CompletedCalls++
			answered++
			out.TotalDurationSeconds += r.DurationSeconds
		case calls.StatusMissed:
			out.MissedCalls++
		}
		switch r.Direction {
		case calls.DirectionInbound:
			out.InboundCalls++
		case calls.DirectionOutbound:
			out.OutboundCalls++
		}
	}
	// missed calls carry no talk time; the average is over answered calls
	if answered > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / answered
	}
	return out, nil
}
