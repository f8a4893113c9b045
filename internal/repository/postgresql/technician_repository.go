package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
)

type TechnicianRepository struct {
	db *sql.DB
}

func NewTechnicianRepository(db *sql.DB) *TechnicianRepository {
	return &TechnicianRepository{db: db}
}

func (r *TechnicianRepository) GetTechnician(ctx context.Context, companyID, techID uuid.UUID) (*entity.Technician, error) {
	q := `SELECT ` + technicianColumns + `
FROM technicians t
WHERE t.id = $1 AND t.company_id = $2;`

	t, err := scanTechnician(r.db.QueryRowContext(ctx, q, techID, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrTechnicianNotFound
		}
		return nil, errors.Wrap(err, "get technician")
	}
	return t, nil
}

// ListTechnicians returns the company's active technicians ordered by name.
func (r *TechnicianRepository) ListTechnicians(ctx context.Context, companyID uuid.UUID) ([]entity.Technician, error) {
	q := `SELECT ` + technicianColumns + `
FROM technicians t
WHERE t.company_id = $1 AND t.active
ORDER BY t.name, t.id;`

	rows, err := r.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, errors.Wrap(err, "list technicians")
	}
	defer rows.Close()

	out := []entity.Technician{}
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan technician")
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list technicians")
	}
	return out, nil
}

func (r *TechnicianRepository) SetTechnicianStatus(ctx context.Context, companyID, techID uuid.UUID, st entity.TechnicianStatus) (*entity.Technician, error) {
	q := `UPDATE technicians t SET status = $3, updated_at = now()
WHERE t.id = $1 AND t.company_id = $2
RETURNING ` + technicianColumns + `;`

	t, err := scanTechnician(r.db.QueryRowContext(ctx, q, techID, companyID, string(st)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrTechnicianNotFound
		}
		return nil, errors.Wrap(err, "set technician status")
	}
	return t, nil
}

// SetTechnicianLocation stores the last reported position on the technician
// row. A nil location clears it.
func (r *TechnicianRepository) SetTechnicianLocation(ctx context.Context, companyID, techID uuid.UUID, loc *geo.LatLng, at time.Time) error {
	const q = `UPDATE technicians SET current_lat = $3, current_lng = $4, last_location_update = $5, updated_at = now()
WHERE id = $1 AND company_id = $2;`

	lat, lng := latLngArgs(loc)
	res, err := r.db.ExecContext(ctx, q, techID, companyID, lat, lng, at)
	if err != nil {
		return errors.Wrap(err, "set technician location")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "set technician location")
	}
	if n == 0 {
		return apperr.ErrTechnicianNotFound
	}
	return nil
}
