package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository"
)

const maxTitleLength = 200

// TaskParams holds the writable attributes of a task.
type TaskParams struct {
	Title        string
	Description  string
	StartAt      time.Time
	DeadlineAt   time.Time
	Responsibles []string
}

// Validator handles permission and input validation for task operations.
type Validator struct {
	memberRepo *repository.MemberRepository
}

// NewValidator creates a new Validator.
func NewValidator(memberRepo *repository.MemberRepository) *Validator {
	return &Validator{memberRepo: memberRepo}
}

// NormalizeTaskParams trims text, deduplicates responsibles and checks the
// field-level invariants. It returns the cleaned params.
func NormalizeTaskParams(p TaskParams) (TaskParams, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)

	if p.Title == "" {
		return p, domain.ErrEmptyTitle
	}
	if utf8.RuneCountInString(p.Title) > maxTitleLength {
		return p, domain.ErrTitleTooLong
	}
	if p.StartAt.IsZero() || p.DeadlineAt.IsZero() {
		return p, domain.ErrMissingDates
	}
	if p.DeadlineAt.Before(p.StartAt) {
		return p, domain.ErrDeadlineBefore
	}

	canonical := make([]string, 0, len(p.Responsibles))
	for _, id := range p.Responsibles {
		parsed, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return p, fmt.Errorf("%w: responsible %q is not a valid member id", domain.ErrValidation, id)
		}
		canonical = append(canonical, parsed.String())
	}

	responsibles := uniqueRecipients(canonical)
	if len(responsibles) == 0 {
		return p, domain.ErrNoResponsibles
	}
	p.Responsibles = responsibles

	return p, nil
}

// CanManageTasks checks that the actor leads the team owning the task.
func (v *Validator) CanManageTasks(actor *domain.Member, teamID string) error {
	if actor.TeamID != teamID {
		return fmt.Errorf("%w: member %s is not in team %s", domain.ErrPermissionDenied, actor.ID, teamID)
	}
	if !actor.IsLeader() {
		return fmt.Errorf("%w: member %s is not a team leader", domain.ErrPermissionDenied, actor.ID)
	}
	return nil
}

// CanViewTasks checks that the actor belongs to the team owning the task.
func (v *Validator) CanViewTasks(actor *domain.Member, teamID string) error {
	if actor.TeamID != teamID {
		return fmt.Errorf("%w: member %s is not in team %s", domain.ErrPermissionDenied, actor.ID, teamID)
	}
	return nil
}

// CheckResponsibles verifies every responsible is an active member of the team.
func (v *Validator) CheckResponsibles(ctx context.Context, teamID string, responsibles []string) error {
	found, err := v.memberRepo.ActiveTeamMemberIDs(ctx, teamID, responsibles)
	if err != nil {
		return fmt.Errorf("check responsibles: %w", err)
	}

	known := make(map[string]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for _, id := range responsibles {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrForeignMember, id)
		}
	}
	return nil
}
