package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UncategorizedLabel names the implicit bucket for items without a grade category.
const UncategorizedLabel = "Uncategorized"

// Course carries the grading configuration the aggregator needs.
type Course struct {
	ID              string          `db:"id" json:"id"`
	Code            string          `db:"code" json:"code"`
	Title           string          `db:"title" json:"title"`
	InstructorID    string          `db:"instructor_id" json:"instructor_id"`
	Weighted        bool            `db:"weighted_grading" json:"weighted_grading"`
	CategoryWeights CategoryWeights `db:"category_weights" json:"category_weights"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// UsesWeights reports whether weighted grading applies to the course.
func (c Course) UsesWeights() bool {
	if !c.Weighted {
		return false
	}
	for _, w := range c.CategoryWeights {
		if w > 0 {
			return true
		}
	}
	return false
}

// CategoryWeights maps a grade category name to its weight fraction. Stored as JSONB.
type CategoryWeights map[string]float64

// Names returns the configured category names in sorted order.
func (w CategoryWeights) Names() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds the weight for a label, ignoring case and surrounding whitespace.
func (w CategoryWeights) Lookup(label string) (string, float64, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	for _, name := range w.Names() {
		if strings.ToLower(strings.TrimSpace(name)) == key {
			return name, w[name], true
		}
	}
	return "", 0, false
}

// Value marshals weights to JSON for persistence.
func (w CategoryWeights) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(map[string]float64(w))
	if err != nil {
		return nil, fmt.Errorf("marshal category weights: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the weights map.
func (w *CategoryWeights) Scan(value interface{}) error {
	if value == nil {
		*w = CategoryWeights{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CategoryWeights", value)
	}
	if len(data) == 0 {
		*w = CategoryWeights{}
		return nil
	}
	parsed := map[string]float64{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("unmarshal category weights: %w", err)
	}
	*w = parsed
	return nil
}
