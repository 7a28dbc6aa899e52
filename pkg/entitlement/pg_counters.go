package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCounters builds the standard usage counters over the resource tables.
// Monthly resources (citas, recordatorios) count the current calendar
// month; the rest count live rows.
func PGCounters(pool *pgxpool.Pool) map[Resource]CounterFunc {
	return map[Resource]CounterFunc{
		ResourceCitas:         monthlyCounter(pool, "citas", "inicio"),
		ResourceRecordatorios: monthlyCounter(pool, "recordatorios", "enviado"),
		ResourceProfesionales: rowCounter(pool, "profesionales"),
		ResourceSucursales:    rowCounter(pool, "sucursales"),
		ResourceServicios:     rowCounter(pool, "servicios"),
		ResourceClientes:      rowCounter(pool, "clientes"),
	}
}

func rowCounter(pool *pgxpool.Pool, table string) CounterFunc {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE negocio_id = $1`, table)
	return func(ctx context.Context, negocioID uuid.UUID) (int64, error) {
		var n int64
		if err := pool.QueryRow(ctx, query, negocioID).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		return n, nil
	}
}

func monthlyCounter(pool *pgxpool.Pool, table, tsColumn string) CounterFunc {
	query := fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE negocio_id = $1 AND %s >= date_trunc('month', now())`,
		table, tsColumn)
	return func(ctx context.Context, negocioID uuid.UUID) (int64, error) {
		var n int64
		if err := pool.QueryRow(ctx, query, negocioID).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		return n, nil
	}
}
