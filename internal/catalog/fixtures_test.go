package catalog

import (
	"time"

	"github.com/noah-isme/ayandah-api/internal/models"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleRecords() []models.Scholarship {
	return []models.Scholarship{
		{
			ID:           "a1",
			Title:        "Vanier Graduate Scholarship",
			Description:  "Doctoral funding for research in engineering",
			Requirements: "Strong research record",
			Type:         models.TypeFullyFunded,
			Level:        "Masters",
			FieldOfStudy: []string{"Engineering", "Physics"},
			Universities: []string{"University of Toronto"},
			Country:      []string{"Canada"},
			Deadline:     baseTime.AddDate(0, 3, 0),
			CreatedAt:    baseTime.Add(2 * time.Hour),
		},
		{
			ID:           "b2",
			Title:        "DAAD Study Award",
			Description:  "Support for international students",
			Requirements: "Bachelor degree in Engineering",
			Type:         models.TypePartial,
			Level:        "Masters",
			FieldOfStudy: []string{"Economics"},
			Universities: []string{"TU Munich"},
			Country:      []string{"Germany"},
			Deadline:     baseTime.AddDate(0, 1, 0),
			CreatedAt:    baseTime.Add(3 * time.Hour),
		},
		{
			ID:           "c3",
			Title:        "Undergraduate Merit Grant",
			Description:  "Tuition waiver",
			Requirements: "High school diploma",
			Type:         models.TypeSelfFunded,
			Level:        "Bachelor",
			FieldOfStudy: []string{"Arts"},
			Universities: []string{"Sorbonne"},
			Country:      []string{"France", "Germany"},
			Deadline:     baseTime.AddDate(0, 2, 0),
			CreatedAt:    baseTime.Add(1 * time.Hour),
		},
	}
}

func ids(records []models.Scholarship) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
