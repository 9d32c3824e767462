package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/ayandah-api/internal/models"
)

// Field names a filterable scholarship attribute using its stored key.
type Field string

const (
	FieldTitle        Field = "title"
	FieldDescription  Field = "description"
	FieldRequirements Field = "requirements"
	FieldType         Field = "type"
	FieldLevel        Field = "level"
	FieldCountry      Field = "country"
	FieldOfStudy      Field = "fieldOfStudy"
	FieldUniversities Field = "universities"
)

func (f Field) scalar(s *models.Scholarship) string {
	switch f {
	case FieldTitle:
		return s.Title
	case FieldDescription:
		return s.Description
	case FieldRequirements:
		return s.Requirements
	case FieldType:
		return string(s.Type)
	case FieldLevel:
		return s.Level
	}
	return ""
}

func (f Field) list(s *models.Scholarship) []string {
	switch f {
	case FieldCountry:
		return s.Country
	case FieldOfStudy:
		return s.FieldOfStudy
	case FieldUniversities:
		return s.Universities
	}
	return nil
}

// MatchKind selects how a clause compares its value.
type MatchKind int

const (
	// Equals is an exact match on a scalar field.
	Equals MatchKind = iota
	// Contains is exact set membership in a list field.
	Contains
	// ContainsFold is case-insensitive set membership in a list field.
	ContainsFold
	// Substring is a case-insensitive substring match on a scalar field.
	Substring
)

// Clause is a single field condition.
type Clause struct {
	Field Field
	Kind  MatchKind
	Value string
}

// Filter renders the clause as a Mongo filter document.
func (c Clause) Filter() bson.D {
	key := string(c.Field)
	switch c.Kind {
	case Contains:
		return bson.D{{Key: key, Value: bson.D{{Key: "$in", Value: bson.A{c.Value}}}}}
	case ContainsFold:
		return bson.D{{Key: key, Value: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(c.Value) + "$", Options: "i"}}}
	case Substring:
		return bson.D{{Key: key, Value: primitive.Regex{Pattern: regexp.QuoteMeta(c.Value), Options: "i"}}}
	default:
		return bson.D{{Key: key, Value: c.Value}}
	}
}

// Match evaluates the clause against an in-memory record.
func (c Clause) Match(s *models.Scholarship) bool {
	switch c.Kind {
	case Contains:
		for _, v := range c.Field.list(s) {
			if v == c.Value {
				return true
			}
		}
		return false
	case ContainsFold:
		for _, v := range c.Field.list(s) {
			if strings.EqualFold(v, c.Value) {
				return true
			}
		}
		return false
	case Substring:
		return strings.Contains(strings.ToLower(c.Field.scalar(s)), strings.ToLower(c.Value))
	default:
		return c.Field.scalar(s) == c.Value
	}
}

// SortOrder controls result ordering.
type SortOrder string

const (
	SortNewest   SortOrder = "newest"
	SortDeadline SortOrder = "deadline"
)

// Query is a conjunction of clauses plus an optional disjunctive group.
type Query struct {
	Must  []Clause
	AnyOf []Clause
	Sort  SortOrder
}

// Filter renders the query as a Mongo filter document. An empty query matches
// every document.
func (q Query) Filter() bson.D {
	parts := make(bson.A, 0, len(q.Must)+1)
	for _, c := range q.Must {
		parts = append(parts, c.Filter())
	}
	if len(q.AnyOf) > 0 {
		or := make(bson.A, 0, len(q.AnyOf))
		for _, c := range q.AnyOf {
			or = append(or, c.Filter())
		}
		parts = append(parts, bson.D{{Key: "$or", Value: or}})
	}

	switch len(parts) {
	case 0:
		return bson.D{}
	case 1:
		return parts[0].(bson.D)
	default:
		return bson.D{{Key: "$and", Value: parts}}
	}
}

// SortDocument returns the Mongo sort document.
func (q Query) SortDocument() bson.D {
	if q.Sort == SortDeadline {
		return bson.D{{Key: "deadline", Value: 1}, {Key: "createdAt", Value: -1}}
	}
	return bson.D{{Key: "createdAt", Value: -1}}
}

// Match evaluates the query against an in-memory record.
func (q Query) Match(s *models.Scholarship) bool {
	for _, c := range q.Must {
		if !c.Match(s) {
			return false
		}
	}
	if len(q.AnyOf) == 0 {
		return true
	}
	for _, c := range q.AnyOf {
		if c.Match(s) {
			return true
		}
	}
	return false
}

// Apply filters and orders records in memory the same way the store would.
func (q Query) Apply(records []models.Scholarship) []models.Scholarship {
	out := make([]models.Scholarship, 0, len(records))
	for i := range records {
		if q.Match(&records[i]) {
			out = append(out, records[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Sort == SortDeadline && !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// SearchClauses is the fan-out used for a free-text search token.
func SearchClauses(term string) []Clause {
	return []Clause{
		{Field: FieldTitle, Kind: Substring, Value: term},
		{Field: FieldDescription, Kind: Substring, Value: term},
		{Field: FieldRequirements, Kind: Substring, Value: term},
		{Field: FieldLevel, Kind: Substring, Value: term},
		{Field: FieldOfStudy, Kind: ContainsFold, Value: term},
		{Field: FieldCountry, Kind: ContainsFold, Value: term},
		{Field: FieldUniversities, Kind: ContainsFold, Value: term},
	}
}

// SearchParams are the public search inputs. Empty values impose no constraint.
type SearchParams struct {
	Search       string    `json:"search,omitempty"`
	Title        string    `json:"title,omitempty"`
	Type         string    `json:"type,omitempty"`
	Level        string    `json:"level,omitempty"`
	Country      string    `json:"country,omitempty"`
	FieldOfStudy string    `json:"fieldOfStudy,omitempty"`
	Sort         SortOrder `json:"sort,omitempty"`
}

// ParamsFromValues reads search parameters from a query string.
func ParamsFromValues(values url.Values) SearchParams {
	return SearchParams{
		Search:       strings.TrimSpace(values.Get("search")),
		Title:        strings.TrimSpace(values.Get("title")),
		Type:         strings.TrimSpace(values.Get("type")),
		Level:        strings.TrimSpace(values.Get("level")),
		Country:      strings.TrimSpace(values.Get("country")),
		FieldOfStudy: strings.TrimSpace(values.Get("fieldOfStudy")),
		Sort:         SortOrder(strings.ToLower(strings.TrimSpace(values.Get("sort")))),
	}
}

// Validate rejects unknown sort orders.
func (p SearchParams) Validate() error {
	switch p.Sort {
	case "", SortNewest, SortDeadline:
		return nil
	default:
		return fmt.Errorf("unsupported sort %q", p.Sort)
	}
}

// Query builds the clause tree for the parameters.
func (p SearchParams) Query() Query {
	q := Query{Sort: p.Sort}
	if q.Sort == "" {
		q.Sort = SortNewest
	}
	if p.Type != "" {
		q.Must = append(q.Must, Clause{Field: FieldType, Kind: Equals, Value: p.Type})
	}
	if p.Level != "" {
		q.Must = append(q.Must, Clause{Field: FieldLevel, Kind: Equals, Value: p.Level})
	}
	if p.Country != "" {
		q.Must = append(q.Must, Clause{Field: FieldCountry, Kind: Contains, Value: p.Country})
	}
	if p.FieldOfStudy != "" {
		q.Must = append(q.Must, Clause{Field: FieldOfStudy, Kind: Contains, Value: p.FieldOfStudy})
	}
	if p.Title != "" {
		q.Must = append(q.Must, Clause{Field: FieldTitle, Kind: Substring, Value: p.Title})
	}
	if p.Search != "" {
		q.AnyOf = SearchClauses(p.Search)
	}
	return q
}

// Values encodes the non-empty parameters as a query string.
func (p SearchParams) Values() url.Values {
	values := url.Values{}
	set := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	set("search", p.Search)
	set("title", p.Title)
	set("type", p.Type)
	set("level", p.Level)
	set("country", p.Country)
	set("fieldOfStudy", p.FieldOfStudy)
	if p.Sort != "" && p.Sort != SortNewest {
		set("sort", string(p.Sort))
	}
	return values
}

// Key returns a stable identifier for the parameter combination, used for
// caching. Equivalent parameter sets produce the same key.
func (p SearchParams) Key() string {
	encoded := p.Values().Encode()
	if encoded == "" {
		return "all"
	}
	return encoded
}
