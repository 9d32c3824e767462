package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/ayandah-api/internal/catalog"
	"github.com/noah-isme/ayandah-api/internal/models"
)

const scholarshipsNS = "ayandah.scholarships"

func scholarshipDoc(id primitive.ObjectID, slug, level string, countries ...string) bson.D {
	country := bson.A{}
	for _, c := range countries {
		country = append(country, c)
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: "Scholarship " + slug},
		{Key: "slug", Value: slug},
		{Key: "type", Value: "fully funded"},
		{Key: "level", Value: level},
		{Key: "country", Value: country},
		{Key: "deadline", Value: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "createdAt", Value: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestScholarshipRepositorySearch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes and normalises", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, scholarshipsNS, mtest.FirstBatch,
			scholarshipDoc(id, "vanier", "Masters", "Canada"),
		))
		repo := NewScholarshipRepository(mt.DB)

		items, err := repo.Search(context.Background(), catalog.SearchParams{Level: "Masters", Country: "Canada"}.Query())
		require.NoError(mt, err)
		require.Len(mt, items, 1)
		assert.Equal(mt, id.Hex(), items[0].ID)
		assert.Equal(mt, []string{"Canada"}, items[0].Country)
		assert.NotNil(mt, items[0].FieldOfStudy)
		assert.NotNil(mt, items[0].Universities)
		assert.Equal(mt, models.TypeFullyFunded, items[0].Type)
	})

	mt.Run("empty result is an empty slice", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, scholarshipsNS, mtest.FirstBatch))
		repo := NewScholarshipRepository(mt.DB)

		items, err := repo.Search(context.Background(), catalog.Query{})
		require.NoError(mt, err)
		assert.NotNil(mt, items)
		assert.Empty(mt, items)
	})

	mt.Run("command failure is wrapped", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad query", Name: "BadValue"}))
		repo := NewScholarshipRepository(mt.DB)

		_, err := repo.Search(context.Background(), catalog.Query{})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "search scholarships")
	})
}

func TestScholarshipRepositoryList(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns page and total", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, scholarshipsNS, mtest.FirstBatch,
				scholarshipDoc(primitive.NewObjectID(), "a", "Masters"),
				scholarshipDoc(primitive.NewObjectID(), "b", "Bachelor"),
			),
			mtest.CreateCursorResponse(0, scholarshipsNS, mtest.FirstBatch, bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: int32(7)}}),
		)
		repo := NewScholarshipRepository(mt.DB)

		items, total, err := repo.List(context.Background(), 1, 2)
		require.NoError(mt, err)
		assert.Len(mt, items, 2)
		assert.Equal(mt, int64(7), total)
	})
}

func TestScholarshipRepositoryFindBySlug(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, scholarshipsNS, mtest.FirstBatch,
			scholarshipDoc(primitive.NewObjectID(), "daad", "Masters", "Germany"),
		))
		repo := NewScholarshipRepository(mt.DB)

		s, err := repo.FindBySlug(context.Background(), "daad")
		require.NoError(mt, err)
		assert.Equal(mt, "daad", s.Slug)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, scholarshipsNS, mtest.FirstBatch))
		repo := NewScholarshipRepository(mt.DB)

		_, err := repo.FindBySlug(context.Background(), "nope")
		assert.ErrorIs(mt, err, mongo.ErrNoDocuments)
	})
}

func TestScholarshipRepositoryCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns id and timestamps", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewScholarshipRepository(mt.DB)

		s := &models.Scholarship{Title: " New ", Slug: "New-Award", Type: models.TypePartial}
		require.NoError(mt, repo.Create(context.Background(), s))
		assert.Len(mt, s.ID, 24)
		assert.Equal(mt, "new-award", s.Slug)
		assert.Equal(mt, "New", s.Title)
		assert.False(mt, s.CreatedAt.IsZero())
		assert.Equal(mt, []string{}, s.Country)
	})

	mt.Run("duplicate slug", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))
		repo := NewScholarshipRepository(mt.DB)

		err := repo.Create(context.Background(), &models.Scholarship{Slug: "taken"})
		assert.True(mt, errors.Is(err, ErrDuplicateSlug))
	})
}

func TestScholarshipRepositoryIncrementViews(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("matched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		repo := NewScholarshipRepository(mt.DB)

		assert.NoError(mt, repo.IncrementViews(context.Background(), primitive.NewObjectID().Hex()))
	})

	mt.Run("no match", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		repo := NewScholarshipRepository(mt.DB)

		err := repo.IncrementViews(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, mongo.ErrNoDocuments)
	})

	mt.Run("invalid id", func(mt *mtest.T) {
		repo := NewScholarshipRepository(mt.DB)

		err := repo.IncrementViews(context.Background(), "not-an-object-id")
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "invalid id")
	})
}

func TestScholarshipRepositoryStats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes facet buckets", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, scholarshipsNS, mtest.FirstBatch, bson.D{
			{Key: "totals", Value: bson.A{bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: int32(3)}, {Key: "active", Value: int32(2)}, {Key: "views", Value: int64(41)}}}},
			{Key: "byType", Value: bson.A{bson.D{{Key: "_id", Value: "partial"}, {Key: "count", Value: int32(2)}}, bson.D{{Key: "_id", Value: "paid"}, {Key: "count", Value: int32(1)}}}},
			{Key: "byLevel", Value: bson.A{bson.D{{Key: "_id", Value: "Masters"}, {Key: "count", Value: int32(3)}}}},
			{Key: "topCountries", Value: bson.A{bson.D{{Key: "_id", Value: "Germany"}, {Key: "count", Value: int32(2)}}}},
		}))
		repo := NewScholarshipRepository(mt.DB)

		stats, err := repo.Stats(context.Background(), 5)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), stats.Total)
		assert.Equal(mt, int64(2), stats.Active)
		assert.Equal(mt, int64(41), stats.TotalViews)
		assert.Equal(mt, map[string]int64{"partial": 2, "paid": 1}, stats.ByType)
		assert.Equal(mt, map[string]int64{"Masters": 3}, stats.ByLevel)
		assert.Equal(mt, []models.CountBucket{{Label: "Germany", Count: 2}}, stats.TopCountries)
	})
}
