package models

import (
	"math"
	"strings"
	"time"
)

// ScholarshipType is the funding category of a scholarship.
type ScholarshipType string

const (
	TypeFullyFunded ScholarshipType = "fully funded"
	TypePartial     ScholarshipType = "partial"
	TypePaid        ScholarshipType = "paid"
	TypeSelfFunded  ScholarshipType = "self funded"
)

// ScholarshipTypes lists the funding categories in display order.
var ScholarshipTypes = []ScholarshipType{TypeFullyFunded, TypePartial, TypePaid, TypeSelfFunded}

// Valid reports whether t is one of the known funding categories.
func (t ScholarshipType) Valid() bool {
	for _, known := range ScholarshipTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label returns the human readable form used on badges and filter chips.
func (t ScholarshipType) Label() string {
	switch t {
	case TypeFullyFunded:
		return "Fully Funded"
	case TypePartial:
		return "Partial"
	case TypePaid:
		return "Paid"
	default:
		return "Self Funded"
	}
}

// Scholarship is a catalog posting stored in the scholarships collection.
type Scholarship struct {
	ID                string          `bson:"_id,omitempty" json:"id"`
	Title             string          `bson:"title" json:"title"`
	Slug              string          `bson:"slug" json:"slug"`
	Description       string          `bson:"description" json:"description"`
	Type              ScholarshipType `bson:"type" json:"type"`
	Value             *float64        `bson:"value,omitempty" json:"value,omitempty"`
	Currency          string          `bson:"currency,omitempty" json:"currency,omitempty"`
	Level             string          `bson:"level" json:"level"`
	FieldOfStudy      []string        `bson:"fieldOfStudy" json:"fieldOfStudy"`
	Universities      []string        `bson:"universities" json:"universities"`
	Country           []string        `bson:"country" json:"country"`
	Region            string          `bson:"region,omitempty" json:"region,omitempty"`
	Requirements      string          `bson:"requirements" json:"requirements"`
	EligibleCountries []string        `bson:"eligibleCountries,omitempty" json:"eligibleCountries,omitempty"`
	MinGPA            *float64        `bson:"minGPA,omitempty" json:"minGPA,omitempty"`
	AgeLimit          string          `bson:"ageLimit,omitempty" json:"ageLimit,omitempty"`
	Deadline          time.Time       `bson:"deadline" json:"deadline"`
	StartDate         *time.Time      `bson:"startDate,omitempty" json:"startDate,omitempty"`
	DurationMonths    int             `bson:"durationMonths,omitempty" json:"durationMonths,omitempty"`
	ApplicationLink   string          `bson:"applicationLink,omitempty" json:"applicationLink,omitempty"`
	ApplicationFee    float64         `bson:"applicationFee" json:"applicationFee"`
	DocumentsRequired []string        `bson:"documentsRequired,omitempty" json:"documentsRequired,omitempty"`
	Image             string          `bson:"image" json:"image"`
	BrochureFile      string          `bson:"brochureFile,omitempty" json:"brochureFile,omitempty"`
	IsActive          bool            `bson:"isActive" json:"isActive"`
	Views             int64           `bson:"views" json:"views"`
	CreatedAt         time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// Normalize enforces the never-null list invariant and canonical slug form.
func (s *Scholarship) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	s.Slug = strings.ToLower(strings.TrimSpace(s.Slug))
	if s.FieldOfStudy == nil {
		s.FieldOfStudy = []string{}
	}
	if s.Universities == nil {
		s.Universities = []string{}
	}
	if s.Country == nil {
		s.Country = []string{}
	}
	if s.Currency == "" {
		s.Currency = "USD"
	}
}

// DaysRemaining returns whole days left until the deadline, rounded up, and
// negative once the deadline has passed.
func (s Scholarship) DaysRemaining(now time.Time) int {
	return int(math.Ceil(s.Deadline.Sub(now).Hours() / 24))
}

// ScholarshipStats aggregates catalog-wide counters.
type ScholarshipStats struct {
	Total        int64            `json:"total"`
	Active       int64            `json:"active"`
	TotalViews   int64            `json:"totalViews"`
	ByType       map[string]int64 `json:"byType"`
	ByLevel      map[string]int64 `json:"byLevel"`
	TopCountries []CountBucket    `json:"topCountries"`
}

// CountBucket is a label with an occurrence count.
type CountBucket struct {
	Label string `bson:"_id" json:"label"`
	Count int64  `bson:"count" json:"count"`
}

// CreateScholarshipRequest is the admin payload for adding a posting. List
// fields must be present but may be empty.
type CreateScholarshipRequest struct {
	Title             string   `json:"title" validate:"required"`
	Slug              string   `json:"slug" validate:"required"`
	Description       string   `json:"description" validate:"required"`
	Type              string   `json:"type" validate:"required"`
	Level             string   `json:"level" validate:"required"`
	FieldOfStudy      []string `json:"fieldOfStudy" validate:"required"`
	Universities      []string `json:"universities" validate:"required"`
	Country           []string `json:"country" validate:"required"`
	Requirements      string   `json:"requirements" validate:"required"`
	Deadline          string   `json:"deadline" validate:"required"`
	Image             string   `json:"image" validate:"required"`
	Value             *float64 `json:"value" validate:"omitempty,gte=0"`
	Currency          string   `json:"currency" validate:"omitempty,len=3"`
	Region            string   `json:"region"`
	EligibleCountries []string `json:"eligibleCountries"`
	MinGPA            *float64 `json:"minGPA" validate:"omitempty,gte=0,lte=4"`
	AgeLimit          string   `json:"ageLimit"`
	StartDate         string   `json:"startDate"`
	DurationMonths    int      `json:"durationMonths" validate:"gte=0"`
	ApplicationLink   string   `json:"applicationLink" validate:"omitempty,url"`
	ApplicationFee    float64  `json:"applicationFee" validate:"gte=0"`
	DocumentsRequired []string `json:"documentsRequired"`
}

// ScholarshipDigest is the compact card used by dashboard lists.
type ScholarshipDigest struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Type          ScholarshipType `json:"type"`
	Deadline      time.Time       `json:"deadline"`
	DaysRemaining int             `json:"daysRemaining"`
	Views         int64           `json:"views"`
}

// Digest projects the scholarship relative to now.
func (s Scholarship) Digest(now time.Time) ScholarshipDigest {
	return ScholarshipDigest{
		ID:            s.ID,
		Title:         s.Title,
		Slug:          s.Slug,
		Type:          s.Type,
		Deadline:      s.Deadline,
		DaysRemaining: s.DaysRemaining(now),
		Views:         s.Views,
	}
}

// BrochureLink is a time limited download URL for a scholarship brochure.
type BrochureLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
