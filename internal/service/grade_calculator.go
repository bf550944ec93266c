package service

import (
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
)

// roundingTolerance is relative to the value being rounded. It covers the few ulps
// of noise a ratio times 100 picks up (0.595*100 is 59.49999999999999) while
// values genuinely below .5, such as 69.49999999999, still round down.
const roundingTolerance = 1e-13

// CalculateGrade aggregates one student's graded submissions and best quiz attempts
// into a course percentage and letter grade. It performs no I/O and never mutates
// its inputs, so callers may run it concurrently across a roster.
//
// Items count only when graded and worth more than zero points. In weighted mode a
// category contributes only when it has a positive configured weight and at least
// one counted item; the blend is normalised by the weights that contributed.
// Graded items in categories without a weight, including Uncategorized, are left
// out of the weighted blend.
func CalculateGrade(course models.Course, assignments []models.Assignment, quizzes []models.Quiz, submissions []models.Submission, attempts []models.QuizAttempt, quizMaxPoints map[string]float64) models.GradeResult {
	return gradeItems(course, ScoreItems(assignments, quizzes, submissions, attempts, quizMaxPoints))
}

// gradeItems aggregates already resolved item scores. An empty item list is an
// empty course and always reports unweighted.
func gradeItems(course models.Course, items []models.ItemScore) models.GradeResult {
	if len(items) == 0 {
		return models.GradeResult{LetterGrade: models.LetterGrade(0), Categories: []models.CategoryGrade{}}
	}
	if course.UsesWeights() {
		return weightedGrade(course.CategoryWeights, items)
	}
	return unweightedGrade(items)
}

// ScoreItems resolves each assignment and quiz to the student's raw score, in
// assignment-then-quiz order. Submissions and attempts referencing unknown items
// are ignored. The last non-null grade wins for repeated submissions; the highest
// non-null points win across quiz attempts. Negative values are clamped to zero.
func ScoreItems(assignments []models.Assignment, quizzes []models.Quiz, submissions []models.Submission, attempts []models.QuizAttempt, quizMaxPoints map[string]float64) []models.ItemScore {
	grades := make(map[string]float64, len(submissions))
	for _, sub := range submissions {
		if sub.Grade == nil {
			continue
		}
		grades[sub.AssignmentID] = clamp(*sub.Grade)
	}
	best := make(map[string]float64, len(attempts))
	for _, attempt := range attempts {
		if attempt.PointsEarned == nil {
			continue
		}
		points := clamp(*attempt.PointsEarned)
		if current, ok := best[attempt.QuizID]; !ok || points > current {
			best[attempt.QuizID] = points
		}
	}

	items := make([]models.ItemScore, 0, len(assignments)+len(quizzes))
	for _, a := range assignments {
		item := models.ItemScore{
			ItemID:   a.ID,
			Kind:     models.ItemKindAssignment,
			Title:    a.Title,
			Category: categoryLabel(a.GradeCategory),
			Possible: clamp(a.MaxPoints),
		}
		if grade, ok := grades[a.ID]; ok {
			item.Earned = floatPtr(grade)
		}
		items = append(items, item)
	}
	for _, q := range quizzes {
		item := models.ItemScore{
			ItemID:   q.ID,
			Kind:     models.ItemKindQuiz,
			Title:    q.Title,
			Category: categoryLabel(q.GradeCategory),
			Possible: clamp(quizMaxPoints[q.ID]),
		}
		if points, ok := best[q.ID]; ok {
			item.Earned = floatPtr(points)
		}
		items = append(items, item)
	}
	return items
}

// categoryTotals accumulates counted items for one category.
type categoryTotals struct {
	key      string
	name     string
	earned   float64
	possible float64
}

// groupByCategory buckets counted items case-insensitively and returns the
// buckets ordered by key so float sums are accumulated in a stable order.
func groupByCategory(items []models.ItemScore) []*categoryTotals {
	index := make(map[string]*categoryTotals)
	groups := make([]*categoryTotals, 0)
	for _, item := range items {
		if !item.Counted() {
			continue
		}
		key := strings.ToLower(item.Category)
		group, ok := index[key]
		if !ok {
			group = &categoryTotals{key: key, name: item.Category}
			index[key] = group
			groups = append(groups, group)
		}
		group.earned += *item.Earned
		group.possible += item.Possible
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

func unweightedGrade(items []models.ItemScore) models.GradeResult {
	groups := groupByCategory(items)
	result := models.GradeResult{Categories: make([]models.CategoryGrade, 0, len(groups))}
	for _, group := range groups {
		result.Earned += group.earned
		result.Possible += group.possible
		result.Categories = append(result.Categories, models.CategoryGrade{
			Name:       group.name,
			Earned:     group.earned,
			Possible:   group.possible,
			Percentage: roundTo2(group.earned / group.possible * 100),
			Included:   true,
		})
	}
	if result.Possible > 0 {
		result.Percentage = roundHalfUp(result.Earned / result.Possible * 100)
	}
	result.LetterGrade = models.LetterGrade(result.Percentage)
	return result
}

func weightedGrade(weights models.CategoryWeights, items []models.ItemScore) models.GradeResult {
	groups := groupByCategory(items)
	result := models.GradeResult{IsWeighted: true, Categories: make([]models.CategoryGrade, 0, len(groups))}

	var weightedSum, weightTotal float64
	for _, group := range groups {
		ratio := group.earned / group.possible
		category := models.CategoryGrade{
			Name:       group.name,
			Earned:     group.earned,
			Possible:   group.possible,
			Percentage: roundTo2(ratio * 100),
		}
		if name, weight, ok := weights.Lookup(group.name); ok && weight > 0 {
			category.Name = name
			category.Weight = weight
			category.Included = true
			weightedSum += ratio * weight
			weightTotal += weight
			result.Earned += group.earned
			result.Possible += group.possible
		}
		result.Categories = append(result.Categories, category)
	}
	if weightTotal > 0 {
		result.Percentage = roundHalfUp(weightedSum / weightTotal * 100)
	}
	result.LetterGrade = models.LetterGrade(result.Percentage)
	return result
}

func categoryLabel(category *string) string {
	if category == nil {
		return models.UncategorizedLabel
	}
	label := strings.TrimSpace(*category)
	if label == "" {
		return models.UncategorizedLabel
	}
	return label
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5 + roundingTolerance*math.Max(1, math.Abs(v)))
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func floatPtr(v float64) *float64 {
	return &v
}
