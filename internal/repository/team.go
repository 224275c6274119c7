package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

// TeamRepository handles database operations for teams.
type TeamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository creates a new TeamRepository.
func NewTeamRepository(pool *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

// GetByID retrieves a team by ID.
func (r *TeamRepository) GetByID(ctx context.Context, teamID string) (*domain.Team, error) {
	query, args, err := psql.
		Select("id", "name", "created_at").
		From("teams").
		Where(sq.Eq{"id": teamID}).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build GetByID query for team", err)
	}

	var team domain.Team
	err = r.pool.QueryRow(ctx, query, args...).Scan(&team.ID, &team.Name, &team.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, domain.StoreError("query team", err)
	}

	return &team, nil
}
