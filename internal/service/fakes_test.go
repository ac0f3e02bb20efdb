package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/journey-reconciler/internal/catalog"
	"github.com/noah-isme/journey-reconciler/internal/models"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
)

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)
	return cat
}

func strPtr(v string) *string { return &v }

func record(student, term, token, program, grade string) models.RawEnrollmentRecord {
	r := models.RawEnrollmentRecord{
		ID:             student + "/" + term + "/" + token,
		StudentID:      student,
		TermCode:       term,
		RawToken:       token,
		ProgramCode:    program,
		AttendanceFlag: models.AttendanceValid,
	}
	if grade != "" {
		r.Grade = strPtr(grade)
	}
	return r
}

// csStudent switches from Computer Science to Data Science and takes IEAP alongside.
func csStudent(id string) []models.RawEnrollmentRecord {
	return []models.RawEnrollmentRecord{
		record(id, "2019-1", "CORE_CS101", "BS", "A"),
		record(id, "2019-1", "E1-A_MORNING", "IEAP", "B"),
		record(id, "2019-2", "CS201", "BS", "B+"),
		record(id, "2019-2", "IEAP-2A", "IEAP", "A"),
		record(id, "2019-3", "GEN100", "BS", "A"),
		record(id, "2019-4", "CAPSTONE_DS501", "MS", "A-"),
		record(id, "2020-1", "DS510", "MS", "B"),
	}
}

type fakeStudents struct {
	ids     []string
	missing map[string]bool
	listErr error
	pages   int
}

func (f *fakeStudents) Exists(_ context.Context, id string) (bool, error) {
	return !f.missing[id], nil
}

func (f *fakeStudents) ListIDs(_ context.Context, page models.StudentPage) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.pages++
	sorted := append([]string(nil), f.ids...)
	sort.Strings(sorted)
	var out []string
	for _, id := range sorted {
		if id > page.AfterID && len(out) < page.Limit {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeEnrollments struct {
	records map[string][]models.RawEnrollmentRecord
	panicOn map[string]bool
	err     error
}

func (f *fakeEnrollments) ListByStudent(_ context.Context, filter models.EnrollmentFilter) ([]models.RawEnrollmentRecord, error) {
	if f.panicOn[filter.StudentID] {
		panic("corrupt ledger row")
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RawEnrollmentRecord
	for _, r := range f.records[filter.StudentID] {
		if filter.AttendanceFlag == "" || r.AttendanceFlag == filter.AttendanceFlag {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEnrollments) CountByStudent(_ context.Context, id string) (int, error) {
	return len(f.records[id]), nil
}

type fakeJourneyStore struct {
	mu        sync.Mutex
	stored    map[string][]*models.AcademicJourney
	createErr error
	creates   int

	// existsDelay widens the window between the existence check and the write.
	existsDelay time.Duration
}

func newFakeJourneyStore() *fakeJourneyStore {
	return &fakeJourneyStore{stored: make(map[string][]*models.AcademicJourney)}
}

func (f *fakeJourneyStore) ExistsForStudent(_ context.Context, id string) (bool, error) {
	time.Sleep(f.existsDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored[id]) > 0, nil
}

func (f *fakeJourneyStore) Create(_ context.Context, journeys []*models.AcademicJourney) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	for _, j := range journeys {
		if len(f.stored[j.StudentID]) > 0 {
			return appErrors.Clone(appErrors.ErrDuplicateJourney, "")
		}
	}
	for _, j := range journeys {
		f.stored[j.StudentID] = append(f.stored[j.StudentID], j)
	}
	return nil
}

func (f *fakeJourneyStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, list := range f.stored {
		n += len(list)
	}
	return n
}

type fakeRejections struct {
	mu    sync.Mutex
	items []models.JourneyRejection
}

func (f *fakeRejections) Create(_ context.Context, r *models.JourneyRejection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, *r)
	return nil
}

func (f *fakeRejections) byStudent() map[string]models.RejectionCategory {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.RejectionCategory, len(f.items))
	for _, r := range f.items {
		out[r.StudentID] = r.Category
	}
	return out
}

type fakeCalendar struct {
	terms []models.Term
	err   error
}

func (f *fakeCalendar) ListByCodes(_ context.Context, codes []string) ([]models.Term, error) {
	if f.err != nil {
		return nil, f.err
	}
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	var out []models.Term
	for _, t := range f.terms {
		if want[strings.ToUpper(t.Code)] {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeCache round-trips through JSON like the Redis-backed repository does.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.data[key] = payload
	return nil
}
