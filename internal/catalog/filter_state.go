package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/noah-isme/ayandah-api/internal/models"
)

// FilterKey identifies a single-select filter dimension.
type FilterKey string

const (
	KeyType         FilterKey = "type"
	KeyLevel        FilterKey = "level"
	KeyCountry      FilterKey = "country"
	KeyFieldOfStudy FilterKey = "fieldOfStudy"
)

var filterKeys = []FilterKey{KeyType, KeyLevel, KeyCountry, KeyFieldOfStudy}

// ErrUnknownFilter is returned for keys outside the four dimensions.
var ErrUnknownFilter = errors.New("unknown filter key")

// ActiveFilter describes a selected dimension for removable chips.
type ActiveFilter struct {
	Key   FilterKey `json:"key"`
	Label string    `json:"label"`
}

// FilterState holds the selections for one listing view and derives the
// visible subset from the records already fetched. It never performs I/O.
type FilterState struct {
	mu        sync.RWMutex
	records   []models.Scholarship
	options   FilterOptions
	selected  map[FilterKey]string
	saved     map[string]struct{}
	savedOnly bool
}

// NewFilterState returns a state over records with nothing selected.
func NewFilterState(records []models.Scholarship) *FilterState {
	fs := &FilterState{
		selected: make(map[FilterKey]string, len(filterKeys)),
		saved:    make(map[string]struct{}),
	}
	fs.SetRecords(records)
	return fs
}

// SetRecords replaces the base records and recomputes the options.
func (fs *FilterState) SetRecords(records []models.Scholarship) {
	if records == nil {
		records = []models.Scholarship{}
	}
	options := ExtractFacets(records)

	fs.mu.Lock()
	fs.records = records
	fs.options = options
	fs.mu.Unlock()
}

// Records returns the base records.
func (fs *FilterState) Records() []models.Scholarship {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.records
}

// Options returns the facets derived from the current records.
func (fs *FilterState) Options() FilterOptions {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.options
}

// SetFilter replaces the selection for key. An empty value clears it. Values
// are not checked against the options; an unknown value matches nothing.
func (fs *FilterState) SetFilter(key FilterKey, value string) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if value == "" {
		delete(fs.selected, key)
		return nil
	}
	fs.selected[key] = value
	return nil
}

// RemoveFilter clears a single dimension.
func (fs *FilterState) RemoveFilter(key FilterKey) error {
	return fs.SetFilter(key, "")
}

// Filter returns the current selection for key, or "" when unset.
func (fs *FilterState) Filter(key FilterKey) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.selected[key]
}

// ClearAll resets every dimension and turns saved-only off. Saved ids are kept.
func (fs *FilterState) ClearAll() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.selected = make(map[FilterKey]string, len(filterKeys))
	fs.savedOnly = false
}

// ToggleSave stars id when absent and unstars it otherwise. It reports whether
// the id is saved afterwards.
func (fs *FilterState) ToggleSave(id string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.saved[id]; ok {
		delete(fs.saved, id)
		return false
	}
	fs.saved[id] = struct{}{}
	return true
}

// IsSaved reports whether id is starred.
func (fs *FilterState) IsSaved(id string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.saved[id]
	return ok
}

// SavedIDs returns the starred ids in no particular order.
func (fs *FilterState) SavedIDs() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	ids := make([]string, 0, len(fs.saved))
	for id := range fs.saved {
		ids = append(ids, id)
	}
	return ids
}

// SetSavedOnly restricts the filtered view to starred records.
func (fs *FilterState) SetSavedOnly(on bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.savedOnly = on
}

// SavedOnly reports whether the saved-only toggle is on.
func (fs *FilterState) SavedOnly() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.savedOnly
}

// Filtered returns the records matching every selected dimension, in their
// fetched order, further limited to starred ids when saved-only is on.
func (fs *FilterState) Filtered() []models.Scholarship {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	q := fs.queryLocked()
	out := make([]models.Scholarship, 0, len(fs.records))
	for i := range fs.records {
		r := &fs.records[i]
		if !q.Match(r) {
			continue
		}
		if fs.savedOnly {
			if _, ok := fs.saved[r.ID]; !ok {
				continue
			}
		}
		out = append(out, *r)
	}
	return out
}

// ActiveFilterCount is the number of selected dimensions.
func (fs *FilterState) ActiveFilterCount() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.selected)
}

// ActiveFilters lists selected dimensions in a fixed order with chip labels.
func (fs *FilterState) ActiveFilters() []ActiveFilter {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	active := make([]ActiveFilter, 0, len(fs.selected))
	for _, key := range filterKeys {
		value, ok := fs.selected[key]
		if !ok {
			continue
		}
		active = append(active, ActiveFilter{Key: key, Label: label(key, value)})
	}
	return active
}

func (fs *FilterState) queryLocked() Query {
	params := SearchParams{
		Type:         fs.selected[KeyType],
		Level:        fs.selected[KeyLevel],
		Country:      fs.selected[KeyCountry],
		FieldOfStudy: fs.selected[KeyFieldOfStudy],
	}
	return params.Query()
}

func label(key FilterKey, value string) string {
	switch key {
	case KeyType:
		return "Type: " + models.ScholarshipType(value).Label()
	case KeyLevel:
		return "Level: " + value
	case KeyCountry:
		return "Country: " + value
	default:
		return "Field: " + value
	}
}

func validKey(key FilterKey) bool {
	for _, k := range filterKeys {
		if k == key {
			return true
		}
	}
	return false
}
