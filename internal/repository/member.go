package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

var memberColumns = []string{"id", "team_id", "name", "role", "token", "is_active", "created_at"}

// MemberRepository handles database operations for team members.
type MemberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

func scanMember(row pgx.Row) (*domain.Member, error) {
	var member domain.Member
	err := row.Scan(
		&member.ID,
		&member.TeamID,
		&member.Name,
		&member.Role,
		&member.Token,
		&member.IsActive,
		&member.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, domain.StoreError("scan member", err)
	}
	return &member, nil
}

// GetByToken finds a member by authentication token.
func (r *MemberRepository) GetByToken(ctx context.Context, token string) (*domain.Member, error) {
	query, args, err := psql.
		Select(memberColumns...).
		From("members").
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build GetByToken query", err)
	}

	return scanMember(r.pool.QueryRow(ctx, query, args...))
}

// GetByID retrieves a member by ID.
func (r *MemberRepository) GetByID(ctx context.Context, memberID string) (*domain.Member, error) {
	query, args, err := psql.
		Select(memberColumns...).
		From("members").
		Where(sq.Eq{"id": memberID}).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build GetByID query for member", err)
	}

	return scanMember(r.pool.QueryRow(ctx, query, args...))
}

// ActiveTeamMemberIDs returns the subset of memberIDs that are active members
// of the team. Unknown ids are silently left out.
func (r *MemberRepository) ActiveTeamMemberIDs(ctx context.Context, teamID string, memberIDs []string) ([]string, error) {
	if len(memberIDs) == 0 {
		return []string{}, nil
	}

	query, args, err := psql.
		Select("id").
		From("members").
		Where(sq.Eq{
			"team_id":   teamID,
			"id":        memberIDs,
			"is_active": true,
		}).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build ActiveTeamMemberIDs query", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError("query team members", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, domain.StoreError("collect team members", err)
	}
	return ids, nil
}
