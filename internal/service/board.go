package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch-service/internal/apperr"
	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/route"
)

type BoardOrder string

const (
	OrderChronological BoardOrder = "chronological"
	OrderRoute         BoardOrder = "route"
)

func ParseBoardOrder(s string) (BoardOrder, error) {
	switch BoardOrder(s) {
	case "", OrderChronological:
		return OrderChronological, nil
	case OrderRoute:
		return OrderRoute, nil
	default:
		return "", apperr.Validationf("order must be %q or %q, got %q", OrderChronological, OrderRoute, s)
	}
}

const (
	StartLive  = "live"
	StartDepot = "depot"
)

const dayLayout = "2006-01-02"

// Board is one day of dispatch. Technicians and Unassigned are never nil.
type Board struct {
	Date        string           `json:"date"`
	Order       BoardOrder       `json:"order"`
	Technicians []TechnicianLane `json:"technicians"`
	Unassigned  []entity.Job     `json:"unassigned"`
}

type TechnicianLane struct {
	Technician entity.Technician `json:"technician"`
	Jobs       []entity.Job      `json:"jobs"`

	// Set only for route order.
	RouteStart  *geo.LatLng `json:"route_start,omitempty"`
	StartSource string      `json:"start_source,omitempty"`
	TotalMiles  *float64    `json:"total_miles,omitempty"`

	// NeedsAttention lists jobs left out of sequencing for lack of usable
	// coordinates.
	NeedsAttention []uuid.UUID `json:"needs_attention"`
}

// TechnicianRoute is a sequenced plan of one technician's open jobs for a day.
type TechnicianRoute struct {
	TechnicianID   uuid.UUID    `json:"technician_id"`
	Date           string       `json:"date"`
	StartSource    string       `json:"start_source"`
	Plan           route.Plan   `json:"plan"`
	Jobs           []entity.Job `json:"jobs"`
	NeedsAttention []uuid.UUID  `json:"needs_attention"`
}

// DayBounds returns [start, next start) of date (YYYY-MM-DD) in the
// dispatch time zone. Board and TechnicianRoute both place a job on the day
// its scheduled start falls in, so a visit running past midnight belongs to
// the day it began.
func (s *DispatchService) DayBounds(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dayLayout, date, s.opts.Location)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validationf("date %q must be YYYY-MM-DD", date)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// Board lists every active technician of the company with their jobs
// scheduled to start on date, plus the day's jobs nobody is assigned to.
// Cancelled jobs are left out. It never writes.
func (s *DispatchService) Board(ctx context.Context, p entity.Principal, date string, order BoardOrder) (*Board, error) {
	started := s.now()

	from, to, err := s.DayBounds(date)
	if err != nil {
		return nil, err
	}

	techs, err := s.techs.ListTechnicians(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}
	all, err := s.jobs.ListJobsScheduledBetween(ctx, p.CompanyID, from, to)
	if err != nil {
		return nil, err
	}

	jobs := make([]entity.Job, 0, len(all))
	ids := make([]uuid.UUID, 0, len(all))
	for _, j := range all {
		if j.Status == entity.StatusCancelled {
			continue
		}
		jobs = append(jobs, j)
		ids = append(ids, j.ID)
	}

	assignments, err := s.assignments.ListActiveForJobs(ctx, p.CompanyID, ids)
	if err != nil {
		return nil, err
	}
	byJob := make(map[uuid.UUID][]entity.Assignment, len(ids))
	for _, a := range assignments {
		byJob[a.JobID] = append(byJob[a.JobID], a)
	}

	board := &Board{
		Date:        date,
		Order:       order,
		Technicians: make([]TechnicianLane, 0, len(techs)),
		Unassigned:  []entity.Job{},
	}
	lane := make(map[uuid.UUID]int, len(techs))
	for _, t := range techs {
		lane[t.ID] = len(board.Technicians)
		board.Technicians = append(board.Technicians, TechnicianLane{
			Technician:     t,
			Jobs:           []entity.Job{},
			NeedsAttention: []uuid.UUID{},
		})
	}

	for _, j := range jobs {
		primary, ok := entity.PrimaryAssignment(byJob[j.ID])
		if !ok {
			board.Unassigned = append(board.Unassigned, j)
			continue
		}
		i, listed := lane[primary.TechnicianID]
		if !listed {
			// assigned to a technician who is no longer active; still show it
			t, err := s.techs.GetTechnician(ctx, p.CompanyID, primary.TechnicianID)
			if err != nil {
				if apperr.Is(err, apperr.ErrNotFound) {
					board.Unassigned = append(board.Unassigned, j)
					continue
				}
				return nil, err
			}
			i = len(board.Technicians)
			lane[t.ID] = i
			board.Technicians = append(board.Technicians, TechnicianLane{
				Technician:     *t,
				Jobs:           []entity.Job{},
				NeedsAttention: []uuid.UUID{},
			})
		}
		board.Technicians[i].Jobs = append(board.Technicians[i].Jobs, j)
	}

	if order == OrderRoute {
		techIDs := make([]uuid.UUID, len(board.Technicians))
		for i, l := range board.Technicians {
			techIDs[i] = l.Technician.ID
		}
		live := s.livePositions(ctx, p.CompanyID, techIDs)
		for i := range board.Technicians {
			if err := s.sequenceLane(&board.Technicians[i], live); err != nil {
				return nil, err
			}
		}
	} else {
		for i := range board.Technicians {
			_, board.Technicians[i].NeedsAttention = routable(board.Technicians[i].Jobs)
		}
	}

	s.metrics.BoardBuilt(len(board.Technicians), len(jobs), s.now().Sub(started))
	return board, nil
}

// TechnicianRoute sequences the technician's open assigned jobs starting on
// date.
func (s *DispatchService) TechnicianRoute(ctx context.Context, p entity.Principal, techID uuid.UUID, date string) (*TechnicianRoute, error) {
	from, to, err := s.DayBounds(date)
	if err != nil {
		return nil, err
	}
	t, err := s.techs.GetTechnician(ctx, p.CompanyID, techID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListForTechnician(ctx, p.CompanyID, techID, from, to)
	if err != nil {
		return nil, err
	}

	jobs := make([]entity.Job, 0, len(assignments))
	seen := make(map[uuid.UUID]bool, len(assignments))
	for _, a := range assignments {
		if a.Job == nil || seen[a.JobID] || !startsWithin(*a.Job, from, to) {
			continue
		}
		seen[a.JobID] = true
		jobs = append(jobs, *a.Job)
	}

	live := s.livePositions(ctx, p.CompanyID, []uuid.UUID{t.ID})
	start, source := s.routeStart(*t, live)

	stops, skipped := routable(jobs)
	plan, err := s.sequence(t.ID, start, stops)
	if err != nil {
		return nil, err
	}

	return &TechnicianRoute{
		TechnicianID:   t.ID,
		Date:           date,
		StartSource:    source,
		Plan:           plan,
		Jobs:           route.Order(plan, jobs, jobID),
		NeedsAttention: skipped,
	}, nil
}

func (s *DispatchService) sequenceLane(l *TechnicianLane, live map[uuid.UUID]entity.Position) error {
	start, source := s.routeStart(l.Technician, live)

	stops, skipped := routable(l.Jobs)
	plan, err := s.sequence(l.Technician.ID, start, stops)
	if err != nil {
		return err
	}

	miles := plan.TotalMiles
	l.Jobs = route.Order(plan, l.Jobs, jobID)
	l.RouteStart = &start
	l.StartSource = source
	l.TotalMiles = &miles
	l.NeedsAttention = skipped
	return nil
}

func (s *DispatchService) sequence(techID uuid.UUID, start geo.LatLng, stops []entity.Stop) (route.Plan, error) {
	if len(stops) > s.opts.LargeRouteWarn {
		s.log.Warn("sequencing large route",
			zap.String("technician_id", techID.String()),
			zap.Int("stops", len(stops)),
		)
	}
	started := s.now()
	plan, err := route.Sequence(start, stops)
	if err != nil {
		return route.Plan{}, err
	}
	s.metrics.RouteSequenced(len(stops), plan.TotalMiles, s.now().Sub(started))
	return plan, nil
}

// livePositions asks the tracker for current positions. A tracker failure
// degrades to the positions stored on technician records.
func (s *DispatchService) livePositions(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) map[uuid.UUID]entity.Position {
	live, err := s.tracker.Latest(ctx, companyID, ids)
	if err != nil {
		s.log.Warn("location tracker unavailable", zap.Error(err))
		return map[uuid.UUID]entity.Position{}
	}
	return live
}

// routeStart picks the newer of the tracked and stored positions, falling
// back to the depot when neither is fresh.
func (s *DispatchService) routeStart(t entity.Technician, live map[uuid.UUID]entity.Position) (geo.LatLng, string) {
	best, ok := t.LastPosition()
	if pos, tracked := live[t.ID]; tracked && (!ok || pos.At.After(best.At)) {
		best, ok = pos, true
	}
	if !ok || best.Location.Validate() != nil || s.now().Sub(best.At) > s.opts.StaleAfter {
		return s.opts.Depot, StartDepot
	}
	return best.Location, StartLive
}

// routable splits jobs into sequencer stops and the IDs of jobs that cannot
// be placed on a map. Finished jobs are neither.
func routable(jobs []entity.Job) ([]entity.Stop, []uuid.UUID) {
	stops := make([]entity.Stop, 0, len(jobs))
	skipped := []uuid.UUID{}
	for _, j := range jobs {
		if j.Status.Terminal() {
			continue
		}
		stop, ok := j.Stop()
		if !ok || stop.Location.Validate() != nil {
			skipped = append(skipped, j.ID)
			continue
		}
		stops = append(stops, stop)
	}
	return stops, skipped
}

func jobID(j entity.Job) uuid.UUID { return j.ID }

// startsWithin reports whether j's scheduled start lies in [from, to).
func startsWithin(j entity.Job, from, to time.Time) bool {
	return j.ScheduledStart != nil && !j.ScheduledStart.Before(from) && j.ScheduledStart.Before(to)
}
