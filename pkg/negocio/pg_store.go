package negocio

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed tenant directory. It implements Provider,
// Lister and Deactivator.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool. Panics on nil.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("negocio: nil pgx pool")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (*Negocio, error) {
	var n Negocio
	err := s.pool.QueryRow(ctx,
		`SELECT id, nombre, email, plan_id, activo, registrado FROM negocios WHERE id = $1`, id).
		Scan(&n.ID, &n.Nombre, &n.Email, &n.PlanID, &n.Activo, &n.Registrado)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNegocioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get negocio: %w", err)
	}
	return &n, nil
}

func (s *PGStore) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM negocios ORDER BY registrado`)
	if err != nil {
		return nil, fmt.Errorf("list negocios: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan negocio id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) SetActivo(ctx context.Context, id uuid.UUID, activo bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE negocios SET activo = $2 WHERE id = $1`, id, activo)
	if err != nil {
		return fmt.Errorf("set negocio activo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNegocioNotFound
	}
	return nil
}
