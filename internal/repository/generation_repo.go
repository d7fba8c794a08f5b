package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GenerationRepository is the append-only audit log of executed generations.
type GenerationRepository interface {
	InsertGeneration(ctx context.Context, g *model.Generation) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Generation, error)
}

type generationRepo struct {
	pool *pgxpool.Pool
}

// NewGenerationRepo creates a new GenerationRepository.
func NewGenerationRepo(pool *pgxpool.Pool) GenerationRepository {
	return &generationRepo{pool: pool}
}

func (r *generationRepo) InsertGeneration(ctx context.Context, g *model.Generation) error {
	const q = `
        INSERT INTO generations (user_id, mode, input_kind, storage_path)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	err := r.pool.QueryRow(ctx, q, g.UserID, g.Mode, g.InputKind, g.StoragePath).
		Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("record generation for user %s: %w", g.UserID, err)
	}
	return nil
}

func (r *generationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Generation, error) {
	const q = `
        SELECT id, user_id, mode, input_kind, storage_path, created_at
        FROM generations
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list generations for user %s: %w", userID, err)
	}
	defer rows.Close()

	var gens []model.Generation
	for rows.Next() {
		var g model.Generation
		if err := rows.Scan(&g.ID, &g.UserID, &g.Mode, &g.InputKind, &g.StoragePath, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		gens = append(gens, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations for user %s: %w", userID, err)
	}
	return gens, nil
}
