package postgresql

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
)

const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

const jobColumns = `
	j.id, j.company_id, j.trade_type, j.priority, j.status,
	j.scheduled_start, j.scheduled_end, j.actual_start, j.actual_end, j.completed_at,
	j.time_window_start, j.time_window_end, j.actual_duration, j.lat, j.lng,
	(SELECT count(*) FROM assignments x WHERE x.job_id = j.id AND x.active) AS active_assignments,
	j.created_at, j.updated_at`

const technicianColumns = `
	t.id, t.company_id, t.user_id, t.name, t.status,
	array_to_json(t.trade_types)::text, t.active,
	t.current_lat, t.current_lng, t.last_location_update`

const assignmentColumns = `
	a.id, a.company_id, a.job_id, a.technician_id, a.is_primary, a.active,
	a.assigned_by, a.assigned_at, a.superseded_at`

func jobScanTargets(j *entity.Job, n *jobNulls) []any {
	return []any{
		&j.ID, &j.CompanyID, &j.TradeType, &n.priority, &n.status,
		&n.scheduledStart, &n.scheduledEnd, &n.actualStart, &n.actualEnd, &n.completedAt,
		&n.windowStart, &n.windowEnd, &n.duration, &n.lat, &n.lng,
		&j.ActiveAssignments,
		&j.CreatedAt, &j.UpdatedAt,
	}
}

type jobNulls struct {
	priority, status                    string
	scheduledStart, scheduledEnd        sql.NullTime
	actualStart, actualEnd, completedAt sql.NullTime
	windowStart, windowEnd              sql.NullTime
	duration                            sql.NullInt32
	lat, lng                            sql.NullFloat64
}

func (n *jobNulls) apply(j *entity.Job) {
	j.Priority = entity.Priority(n.priority)
	j.Status = entity.JobStatus(n.status)
	j.ScheduledStart = timeOrNil(n.scheduledStart)
	j.ScheduledEnd = timeOrNil(n.scheduledEnd)
	j.ActualStart = timeOrNil(n.actualStart)
	j.ActualEnd = timeOrNil(n.actualEnd)
	j.CompletedAt = timeOrNil(n.completedAt)
	j.TimeWindowStart = timeOrNil(n.windowStart)
	j.TimeWindowEnd = timeOrNil(n.windowEnd)
	if n.duration.Valid {
		d := int(n.duration.Int32)
		j.ActualDuration = &d
	}
	if n.lat.Valid && n.lng.Valid {
		j.Location = &geo.LatLng{Lat: n.lat.Float64, Lng: n.lng.Float64}
	}
}

func scanJob(row rowScanner) (*entity.Job, error) {
	var (
		j entity.Job
		n jobNulls
	)
	if err := row.Scan(jobScanTargets(&j, &n)...); err != nil {
		return nil, err
	}
	n.apply(&j)
	return &j, nil
}

func scanTechnician(row rowScanner) (*entity.Technician, error) {
	var (
		t          entity.Technician
		status     string
		trades     string
		lat, lng   sql.NullFloat64
		lastUpdate sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.CompanyID, &t.UserID, &t.Name, &status,
		&trades, &t.Active,
		&lat, &lng, &lastUpdate,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(trades), &t.TradeTypes); err != nil {
		return nil, errors.Wrap(err, "decode trade_types")
	}
	t.Status = entity.TechnicianStatus(status)
	if lat.Valid && lng.Valid {
		t.CurrentLocation = &geo.LatLng{Lat: lat.Float64, Lng: lng.Float64}
	}
	t.LastLocationUpdate = timeOrNil(lastUpdate)
	if t.TradeTypes == nil {
		t.TradeTypes = []string{}
	}
	return &t, nil
}

func assignmentScanTargets(a *entity.Assignment, superseded *sql.NullTime) []any {
	return []any{
		&a.ID, &a.CompanyID, &a.JobID, &a.TechnicianID, &a.IsPrimary, &a.Active,
		&a.AssignedBy, &a.AssignedAt, superseded,
	}
}

func timeOrNil(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func latLngArgs(p *geo.LatLng) (lat, lng any) {
	if p == nil {
		return nil, nil
	}
	return p.Lat, p.Lng
}
