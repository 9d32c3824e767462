package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/ayandah-api/internal/catalog"
	"github.com/noah-isme/ayandah-api/internal/models"
)

const scholarshipsCollection = "scholarships"

// ErrDuplicateSlug is returned when a scholarship slug is already taken.
var ErrDuplicateSlug = errors.New("duplicate scholarship slug")

// ScholarshipRepository provides document store access for the catalog.
type ScholarshipRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewScholarshipRepository creates a repository over the scholarships collection.
func NewScholarshipRepository(db *mongo.Database) *ScholarshipRepository {
	return &ScholarshipRepository{
		coll: db.Collection(scholarshipsCollection),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the unique slug index and the sort indexes.
func (r *ScholarshipRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("slug_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("created_desc"),
		},
		{
			Keys:    bson.D{{Key: "deadline", Value: 1}},
			Options: options.Index().SetName("deadline_asc"),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("ensure scholarship indexes: %w", err)
	}
	return nil
}

// Search returns every scholarship matching q in the query's sort order.
func (r *ScholarshipRepository) Search(ctx context.Context, q catalog.Query) ([]models.Scholarship, error) {
	opts := options.Find().SetSort(q.SortDocument())
	return r.find(ctx, q.Filter(), opts, "search scholarships")
}

// Recent returns the newest scholarships capped at limit.
func (r *ScholarshipRepository) Recent(ctx context.Context, limit int) ([]models.Scholarship, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.D{}, opts, "recent scholarships")
}

// List returns one page of scholarships, newest first, with the total count.
// A pageSize of zero returns the whole collection.
func (r *ScholarshipRepository) List(ctx context.Context, page, pageSize int) ([]models.Scholarship, int64, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * pageSize)).SetLimit(int64(pageSize))
	}

	items, err := r.find(ctx, bson.D{}, opts, "list scholarships")
	if err != nil {
		return nil, 0, err
	}

	total, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("count scholarships: %w", err)
	}
	return items, total, nil
}

// All returns the full catalog; used for facet extraction.
func (r *ScholarshipRepository) All(ctx context.Context) ([]models.Scholarship, error) {
	return r.find(ctx, bson.D{}, options.Find(), "all scholarships")
}

// Upcoming returns active scholarships whose deadline falls in [from, to].
func (r *ScholarshipRepository) Upcoming(ctx context.Context, from, to time.Time, limit int) ([]models.Scholarship, error) {
	filter := bson.D{
		{Key: "isActive", Value: true},
		{Key: "deadline", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lte", Value: to}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "deadline", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts, "upcoming scholarships")
}

// FindBySlug returns a scholarship by slug. mongo.ErrNoDocuments is passed
// through when nothing matches.
func (r *ScholarshipRepository) FindBySlug(ctx context.Context, slug string) (*models.Scholarship, error) {
	var s models.Scholarship
	if err := r.coll.FindOne(ctx, bson.D{{Key: "slug", Value: slug}}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find scholarship by slug: %w", err)
	}
	s.Normalize()
	return &s, nil
}

// Create inserts a scholarship and assigns its identifier.
func (r *ScholarshipRepository) Create(ctx context.Context, s *models.Scholarship) error {
	now := r.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.ID = ""
	s.Normalize()

	res, err := r.coll.InsertOne(ctx, s)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("create scholarship: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		s.ID = oid.Hex()
	}
	return nil
}

// IncrementViews bumps the view counter for the scholarship with id.
func (r *ScholarshipRepository) IncrementViews(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("increment views: invalid id %q: %w", id, err)
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}},
	)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetBrochure records the object key of an uploaded brochure.
func (r *ScholarshipRepository) SetBrochure(ctx context.Context, slug, key string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "slug", Value: slug}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "brochureFile", Value: key},
			{Key: "updatedAt", Value: r.now()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("set brochure: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

type statsResult struct {
	Totals []struct {
		Total  int64 `bson:"total"`
		Active int64 `bson:"active"`
		Views  int64 `bson:"views"`
	} `bson:"totals"`
	ByType       []models.CountBucket `bson:"byType"`
	ByLevel      []models.CountBucket `bson:"byLevel"`
	TopCountries []models.CountBucket `bson:"topCountries"`
}

// Stats aggregates catalog counters in a single round trip.
func (r *ScholarshipRepository) Stats(ctx context.Context, topCountries int) (*models.ScholarshipStats, error) {
	if topCountries <= 0 {
		topCountries = 5
	}
	group := func(field string) bson.A {
		return bson.A{bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "totals", Value: bson.A{bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
				{Key: "active", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{"$isActive", 1, 0}}}}}},
				{Key: "views", Value: bson.D{{Key: "$sum", Value: "$views"}}},
			}}}}},
			{Key: "byType", Value: group("type")},
			{Key: "byLevel", Value: group("level")},
			{Key: "topCountries", Value: bson.A{
				bson.D{{Key: "$unwind", Value: "$country"}},
				bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: "$country"},
					{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
				}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
				bson.D{{Key: "$limit", Value: topCountries}},
			}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate scholarship stats: %w", err)
	}
	defer cursor.Close(ctx)

	var results []statsResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode scholarship stats: %w", err)
	}

	stats := &models.ScholarshipStats{
		ByType:       map[string]int64{},
		ByLevel:      map[string]int64{},
		TopCountries: []models.CountBucket{},
	}
	if len(results) == 0 {
		return stats, nil
	}
	res := results[0]
	if len(res.Totals) > 0 {
		stats.Total = res.Totals[0].Total
		stats.Active = res.Totals[0].Active
		stats.TotalViews = res.Totals[0].Views
	}
	for _, b := range res.ByType {
		stats.ByType[b.Label] = b.Count
	}
	for _, b := range res.ByLevel {
		stats.ByLevel[b.Label] = b.Count
	}
	if res.TopCountries != nil {
		stats.TopCountries = res.TopCountries
	}
	return stats, nil
}

func (r *ScholarshipRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions, op string) ([]models.Scholarship, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	items := make([]models.Scholarship, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	for i := range items {
		items[i].Normalize()
	}
	return items, nil
}
