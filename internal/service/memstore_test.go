package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/repository"
)

// memStore is an in-memory Store.  Transactions run one at a time on a
// copy of the state that replaces the original only on success, which
// gives the rollback and serialization behaviour of the MySQL store.
type memStore struct {
	mu sync.Mutex
	st *memState
}

type memUser struct {
	org      uint64
	userType string
}

type memState struct {
	nextID     uint64
	events     map[uint64]model.Event
	timeslots  map[uint64]model.Timeslot
	bookings   map[uint64]model.Booking
	points     map[uint64]model.EventPoints
	profiles   map[uint64]model.PointTotals
	users      map[uint64]memUser
	categories map[uint64][]uint64
	jahrgaenge map[uint64][]uint64
}

func newMemStore() *memStore {
	return &memStore{st: &memState{
		nextID:     100,
		events:     map[uint64]model.Event{},
		timeslots:  map[uint64]model.Timeslot{},
		bookings:   map[uint64]model.Booking{},
		points:     map[uint64]model.EventPoints{},
		profiles:   map[uint64]model.PointTotals{},
		users:      map[uint64]memUser{},
		categories: map[uint64][]uint64{},
		jahrgaenge: map[uint64][]uint64{},
	}}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		nextID:     s.nextID,
		events:     cloneMap(s.events),
		timeslots:  cloneMap(s.timeslots),
		bookings:   cloneMap(s.bookings),
		points:     cloneMap(s.points),
		profiles:   cloneMap(s.profiles),
		users:      cloneMap(s.users),
		categories: cloneMap(s.categories),
		jahrgaenge: cloneMap(s.jahrgaenge),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.st.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	m.st = work
	return nil
}

// read runs fn on the committed state, for assertions.
func (m *memStore) read(fn func(st *memState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.st)
}

func (m *memStore) addUser(id, org uint64, userType string) {
	m.read(func(st *memState) { st.users[id] = memUser{org: org, userType: userType} })
}

type memTx struct {
	st *memState
}

func (t *memTx) id() uint64 {
	t.st.nextID++
	return t.st.nextID
}

func (t *memTx) GetEvent(_ context.Context, orgID, eventID uint64) (*model.Event, error) {
	e, ok := t.st.events[eventID]
	if !ok || e.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (t *memTx) LockEvent(ctx context.Context, orgID, eventID uint64) (*model.Event, error) {
	return t.GetEvent(ctx, orgID, eventID)
}

func (t *memTx) InsertEvent(_ context.Context, e *model.Event) error {
	e.ID = t.id()
	t.st.events[e.ID] = *e
	return nil
}

func (t *memTx) UpdateEvent(_ context.Context, e *model.Event) error {
	old, ok := t.st.events[e.ID]
	if !ok {
		return repository.ErrNotFound
	}
	upd := *e
	upd.OrganizationID = old.OrganizationID
	upd.IsSeries, upd.SeriesID = old.IsSeries, old.SeriesID
	upd.Cancelled, upd.CancelledAt = old.Cancelled, old.CancelledAt
	t.st.events[e.ID] = upd
	return nil
}

func (t *memTx) SetSeriesID(_ context.Context, eventID, seriesID uint64) error {
	e, ok := t.st.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	e.SeriesID = &seriesID
	t.st.events[eventID] = e
	return nil
}

func (t *memTx) MarkEventCancelled(_ context.Context, eventID uint64, at time.Time) error {
	e, ok := t.st.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	e.Cancelled, e.CancelledAt = true, &at
	t.st.events[eventID] = e
	return nil
}

func (t *memTx) DeleteEvent(_ context.Context, eventID uint64) error {
	if _, ok := t.st.events[eventID]; !ok {
		return repository.ErrNotFound
	}
	delete(t.st.events, eventID)
	delete(t.st.categories, eventID)
	delete(t.st.jahrgaenge, eventID)
	for id, ts := range t.st.timeslots {
		if ts.EventID == eventID {
			delete(t.st.timeslots, id)
		}
	}
	return nil
}

func (t *memTx) ListSeriesEvents(_ context.Context, orgID, seriesID uint64) ([]model.Event, error) {
	var out []model.Event
	for _, e := range t.st.events {
		if e.OrganizationID == orgID && e.SeriesID != nil && *e.SeriesID == seriesID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].StartAt.Before(out[j].StartAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) ListEventsWithPending(_ context.Context) ([]model.EventRef, error) {
	seen := map[uint64]bool{}
	var out []model.EventRef
	for _, b := range t.st.bookings {
		e := t.st.events[b.EventID]
		if b.Status != model.BookingPending || e.Cancelled || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, model.EventRef{OrganizationID: e.OrganizationID, EventID: e.ID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (t *memTx) EventCategories(_ context.Context, eventID uint64) ([]uint64, error) {
	return append([]uint64{}, t.st.categories[eventID]...), nil
}

func (t *memTx) SetEventCategories(_ context.Context, eventID uint64, ids []uint64) error {
	t.st.categories[eventID] = append([]uint64(nil), ids...)
	return nil
}

func (t *memTx) EventJahrgaenge(_ context.Context, eventID uint64) ([]uint64, error) {
	return append([]uint64{}, t.st.jahrgaenge[eventID]...), nil
}

func (t *memTx) SetEventJahrgaenge(_ context.Context, eventID uint64, ids []uint64) error {
	t.st.jahrgaenge[eventID] = append([]uint64(nil), ids...)
	return nil
}

func (t *memTx) ListTimeslots(_ context.Context, eventID uint64) ([]model.Timeslot, error) {
	var out []model.Timeslot
	for _, ts := range t.st.timeslots {
		if ts.EventID == eventID {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].StartAt.Before(out[j].StartAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) LockTimeslot(_ context.Context, eventID, timeslotID uint64) (*model.Timeslot, error) {
	ts, ok := t.st.timeslots[timeslotID]
	if !ok || ts.EventID != eventID {
		return nil, repository.ErrNotFound
	}
	return &ts, nil
}

func (t *memTx) InsertTimeslot(_ context.Context, ts *model.Timeslot) error {
	ts.ID = t.id()
	t.st.timeslots[ts.ID] = *ts
	return nil
}

func (t *memTx) UpdateTimeslot(_ context.Context, ts *model.Timeslot) error {
	old, ok := t.st.timeslots[ts.ID]
	if !ok || old.EventID != ts.EventID {
		return repository.ErrNotFound
	}
	t.st.timeslots[ts.ID] = *ts
	return nil
}

func (t *memTx) DeleteTimeslot(_ context.Context, timeslotID uint64) error {
	if _, ok := t.st.timeslots[timeslotID]; !ok {
		return repository.ErrNotFound
	}
	delete(t.st.timeslots, timeslotID)
	return nil
}

func inScope(b model.Booking, scope model.Scope) bool {
	if b.EventID != scope.EventID {
		return false
	}
	if scope.TimeslotID == nil {
		return true
	}
	return b.TimeslotID != nil && *b.TimeslotID == *scope.TimeslotID
}

func (t *memTx) CountBookings(_ context.Context, scope model.Scope, status model.BookingStatus) (int, error) {
	n := 0
	for _, b := range t.st.bookings {
		if inScope(b, scope) && b.Status == status {
			n++
		}
	}
	return n, nil
}

func (t *memTx) FindBooking(_ context.Context, eventID, userID uint64) (*model.Booking, error) {
	for _, b := range t.st.bookings {
		if b.EventID == eventID && b.UserID == userID {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *memTx) GetBooking(_ context.Context, eventID, bookingID uint64) (*model.Booking, error) {
	b, ok := t.st.bookings[bookingID]
	if !ok || b.EventID != eventID {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func fifoLess(a, b model.Booking) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (t *memTx) ListBookings(_ context.Context, eventID uint64) ([]model.Booking, error) {
	out := []model.Booking{}
	for _, b := range t.st.bookings {
		if b.EventID == eventID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status == model.BookingConfirmed
		}
		return fifoLess(out[i], out[j])
	})
	return out, nil
}

func (t *memTx) OldestPending(_ context.Context, scope model.Scope) (*model.Booking, error) {
	var best *model.Booking
	for _, b := range t.st.bookings {
		if !inScope(b, scope) || b.Status != model.BookingPending {
			continue
		}
		if best == nil || fifoLess(b, *best) {
			c := b
			best = &c
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	for _, x := range t.st.bookings {
		if x.EventID == b.EventID && x.UserID == b.UserID {
			return repository.ErrDuplicate
		}
	}
	b.ID = t.id()
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *memTx) DeleteBooking(_ context.Context, bookingID uint64) error {
	if _, ok := t.st.bookings[bookingID]; !ok {
		return repository.ErrNotFound
	}
	delete(t.st.bookings, bookingID)
	return nil
}

func (t *memTx) SetBookingStatus(_ context.Context, bookingID uint64, status model.BookingStatus) error {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	t.st.bookings[bookingID] = b
	return nil
}

func (t *memTx) SetAttendance(_ context.Context, bookingID uint64, status model.AttendanceStatus) error {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return repository.ErrNotFound
	}
	b.Attendance = &status
	t.st.bookings[bookingID] = b
	return nil
}

func (t *memTx) UserInOrg(_ context.Context, orgID, userID uint64) (bool, error) {
	u, ok := t.st.users[userID]
	return ok && u.org == orgID, nil
}

func (t *memTx) ListOrgAdmins(_ context.Context, orgID uint64) ([]uint64, error) {
	var out []uint64
	for id, u := range t.st.users {
		if u.org == orgID && u.userType == model.UserTypeAdmin {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *memTx) InsertEventPoints(_ context.Context, p *model.EventPoints) (bool, error) {
	for _, x := range t.st.points {
		if x.KonfiID == p.KonfiID && x.EventID == p.EventID {
			return false, nil
		}
	}
	p.ID = t.id()
	t.st.points[p.ID] = *p
	return true, nil
}

func (t *memTx) GetEventPoints(_ context.Context, konfiID, eventID uint64) (*model.EventPoints, error) {
	for _, p := range t.st.points {
		if p.KonfiID == konfiID && p.EventID == eventID {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *memTx) DeleteEventPoints(_ context.Context, id uint64) error {
	if _, ok := t.st.points[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.st.points, id)
	return nil
}

func (t *memTx) AdjustProfilePoints(_ context.Context, konfiID uint64, c model.PointCategory, delta int) error {
	tot := t.st.profiles[konfiID]
	tot.Add(c, delta)
	if tot.Gottesdienst < 0 {
		tot.Gottesdienst = 0
	}
	if tot.Gemeinde < 0 {
		tot.Gemeinde = 0
	}
	t.st.profiles[konfiID] = tot
	return nil
}

func (t *memTx) ProfileTotals(_ context.Context, konfiID uint64) (model.PointTotals, error) {
	tot, ok := t.st.profiles[konfiID]
	if !ok {
		return tot, repository.ErrNotFound
	}
	return tot, nil
}

func (t *memTx) LedgerTotals(_ context.Context, konfiID uint64) (model.PointTotals, error) {
	var tot model.PointTotals
	for _, p := range t.st.points {
		if p.KonfiID == konfiID {
			tot.Add(p.Category, p.Points)
		}
	}
	return tot, nil
}

func (t *memTx) SetProfileTotals(_ context.Context, konfiID uint64, tot model.PointTotals) error {
	if _, ok := t.st.profiles[konfiID]; !ok {
		return repository.ErrNotFound
	}
	t.st.profiles[konfiID] = tot
	return nil
}

func (t *memTx) ListKonfiProfiles(_ context.Context) ([]uint64, error) {
	out := make([]uint64, 0, len(t.st.profiles))
	for id := range t.st.profiles {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

var _ Tx = (*memTx)(nil)
