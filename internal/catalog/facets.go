package catalog

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/noah-isme/ayandah-api/internal/models"
)

// FilterOptions are the selectable values for each filter dimension.
type FilterOptions struct {
	Types        []models.ScholarshipType `json:"types"`
	Levels       []string                 `json:"levels"`
	Countries    []string                 `json:"countries"`
	Fields       []string                 `json:"fields"`
	Universities []string                 `json:"universities"`
}

// ExtractFacets derives sorted distinct values per dimension. The type facet
// is the fixed category list regardless of the data.
func ExtractFacets(records []models.Scholarship) FilterOptions {
	levels := newValueSet()
	countries := newValueSet()
	fields := newValueSet()
	universities := newValueSet()

	for i := range records {
		r := &records[i]
		levels.add(r.Level)
		countries.add(r.Country...)
		fields.add(r.FieldOfStudy...)
		universities.add(r.Universities...)
	}

	types := make([]models.ScholarshipType, len(models.ScholarshipTypes))
	copy(types, models.ScholarshipTypes)

	return FilterOptions{
		Types:        types,
		Levels:       levels.sorted(),
		Countries:    countries.sorted(),
		Fields:       fields.sorted(),
		Universities: universities.sorted(),
	}
}

type valueSet map[string]struct{}

func newValueSet() valueSet { return valueSet{} }

func (s valueSet) add(values ...string) {
	for _, v := range values {
		if v != "" {
			s[v] = struct{}{}
		}
	}
}

func (s valueSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// wireRecord accepts records that still carry the raw document id.
type wireRecord struct {
	models.Scholarship
	DocumentID string `json:"_id"`
}

// DecodeRecords normalises a fetched payload into a record slice. It accepts a
// bare array or an object wrapping the array under "data" or "scholarships".
// Any other shape yields an empty slice.
func DecodeRecords(raw []byte) []models.Scholarship {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []models.Scholarship{}
	}

	if raw[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return []models.Scholarship{}
		}
		raw = nil
		for _, key := range []string{"data", "scholarships"} {
			if inner := bytes.TrimSpace(wrapper[key]); len(inner) > 0 && inner[0] == '[' {
				raw = inner
				break
			}
		}
	}
	if len(raw) == 0 || raw[0] != '[' {
		return []models.Scholarship{}
	}

	var wire []wireRecord
	if err := json.Unmarshal(raw, &wire); err != nil {
		return []models.Scholarship{}
	}

	records := make([]models.Scholarship, 0, len(wire))
	for _, w := range wire {
		record := w.Scholarship
		if record.ID == "" {
			record.ID = w.DocumentID
		}
		record.Normalize()
		records = append(records, record)
	}
	return records
}
