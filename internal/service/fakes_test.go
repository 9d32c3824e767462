package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/noah-isme/ayandah-api/internal/catalog"
	"github.com/noah-isme/ayandah-api/internal/models"
	"github.com/noah-isme/ayandah-api/internal/repository"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
	"github.com/noah-isme/ayandah-api/pkg/jobs"
)

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	sets    int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	m.sets++
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

// fakeScholarshipRepo evaluates queries in memory with the catalog matcher.
type fakeScholarshipRepo struct {
	mu          sync.Mutex
	records     []models.Scholarship
	searchCalls int
	searchErr   error
	views       map[string]int
	stats       *models.ScholarshipStats
	statsErr    error
}

func newFakeScholarshipRepo(records ...models.Scholarship) *fakeScholarshipRepo {
	return &fakeScholarshipRepo{records: records, views: make(map[string]int)}
}

func (f *fakeScholarshipRepo) Search(ctx context.Context, q catalog.Query) ([]models.Scholarship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return q.Apply(f.records), nil
}

func (f *fakeScholarshipRepo) Recent(ctx context.Context, limit int) ([]models.Scholarship, error) {
	all := catalog.Query{Sort: catalog.SortNewest}.Apply(f.records)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeScholarshipRepo) List(ctx context.Context, page, pageSize int) ([]models.Scholarship, int64, error) {
	all := catalog.Query{Sort: catalog.SortNewest}.Apply(f.records)
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []models.Scholarship{}, int64(len(all)), nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (f *fakeScholarshipRepo) All(ctx context.Context) ([]models.Scholarship, error) {
	return catalog.Query{Sort: catalog.SortNewest}.Apply(f.records), nil
}

func (f *fakeScholarshipRepo) Upcoming(ctx context.Context, from, to time.Time, limit int) ([]models.Scholarship, error) {
	var out []models.Scholarship
	for _, r := range f.records {
		if r.IsActive && !r.Deadline.Before(from) && !r.Deadline.After(to) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeScholarshipRepo) Stats(ctx context.Context, topCountries int) (*models.ScholarshipStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if f.stats != nil {
		return f.stats, nil
	}
	return &models.ScholarshipStats{Total: int64(len(f.records))}, nil
}

func (f *fakeScholarshipRepo) FindBySlug(ctx context.Context, slug string) (*models.Scholarship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].Slug == slug {
			record := f.records[i]
			return &record, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeScholarshipRepo) Create(ctx context.Context, s *models.Scholarship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.Normalize()
	for _, r := range f.records {
		if r.Slug == s.Slug {
			return repository.ErrDuplicateSlug
		}
	}
	s.ID = "new-" + s.Slug
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	f.records = append(f.records, *s)
	return nil
}

func (f *fakeScholarshipRepo) IncrementViews(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Views++
			f.views[id]++
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (f *fakeScholarshipRepo) SetBrochure(ctx context.Context, slug, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].Slug == slug {
			f.records[i].BrochureFile = key
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

type recordingEnqueuer struct {
	jobs []jobs.Job
	full bool
}

func (r *recordingEnqueuer) TryEnqueue(job jobs.Job) error {
	if r.full {
		return jobs.ErrQueueFull
	}
	r.jobs = append(r.jobs, job)
	return nil
}

var errBoom = errors.New("boom")

func sampleScholarships(now time.Time) []models.Scholarship {
	return []models.Scholarship{
		{
			ID: "a1", Title: "Maple Leaf Engineering Award", Slug: "maple-leaf", Description: "Full tuition for engineers",
			Type: models.TypeFullyFunded, Level: "Masters", FieldOfStudy: []string{"Engineering", "Physics"},
			Universities: []string{"University of Toronto"}, Country: []string{"Canada"}, Requirements: "Bachelor degree",
			Deadline: now.AddDate(0, 0, 10), IsActive: true, CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			ID: "b2", Title: "Rhine Economics Grant", Slug: "rhine-economics", Description: "Partial stipend",
			Type: models.TypePartial, Level: "Masters", FieldOfStudy: []string{"Economics"},
			Universities: []string{"LMU Munich"}, Country: []string{"Germany"}, Requirements: "Engineering or economics background",
			Deadline: now.AddDate(0, 0, 40), IsActive: true, CreatedAt: now.Add(-1 * time.Hour),
		},
		{
			ID: "c3", Title: "Sorbonne Arts Bursary", Slug: "sorbonne-arts", Description: "Self funded arts program",
			Type: models.TypeSelfFunded, Level: "Bachelor", FieldOfStudy: []string{"Arts"},
			Universities: []string{"Sorbonne"}, Country: []string{"France", "Germany"}, Requirements: "Portfolio",
			Deadline: now.AddDate(0, 0, 5), IsActive: true, CreatedAt: now.Add(-3 * time.Hour),
		},
	}
}
