package models

// ItemKind distinguishes assignments from quizzes in score listings.
type ItemKind string

const (
	ItemKindAssignment ItemKind = "assignment"
	ItemKindQuiz       ItemKind = "quiz"
)

// ItemScore is one student's raw result on one gradable item.
// Earned is nil when the item has not been graded.
type ItemScore struct {
	ItemID   string   `json:"item_id"`
	Kind     ItemKind `json:"kind"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Earned   *float64 `json:"earned"`
	Possible float64  `json:"possible"`
}

// Counted reports whether the item participates in aggregation.
func (s ItemScore) Counted() bool {
	return s.Earned != nil && s.Possible > 0
}

// CategoryGrade summarises one grade category for a student.
type CategoryGrade struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight,omitempty"`
	Earned     float64 `json:"earned"`
	Possible   float64 `json:"possible"`
	Percentage float64 `json:"percentage"`
	Included   bool    `json:"included"`
}

// GradeResult is the aggregated course grade for one student.
type GradeResult struct {
	Percentage  float64         `json:"percentage"`
	LetterGrade string          `json:"letter_grade"`
	IsWeighted  bool            `json:"is_weighted"`
	Earned      float64         `json:"earned"`
	Possible    float64         `json:"possible"`
	Categories  []CategoryGrade `json:"categories"`
}

// LetterGrade maps an already rounded percentage onto the A-F scale.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}
