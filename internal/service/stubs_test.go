package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/academy-gradebook-api/pkg/errors"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *memCache) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// fakeCourseStore serves every gradebook read from in-memory fixtures.
type fakeCourseStore struct {
	mu          sync.Mutex
	courses     map[string]*models.Course
	assignments []models.Assignment
	quizzes     []models.Quiz
	maxPoints   map[string]float64
	submissions []models.Submission
	attempts    []models.QuizAttempt
	roster      []models.RosterEntry
	instructors map[string]bool
	err         error
	rosterErr   error
	versionErr  error

	rosterCalls [][2]int
	updates     int
}

func (f *fakeCourseStore) FindByID(_ context.Context, id string) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	course, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (f *fakeCourseStore) UpdateGrading(_ context.Context, id string, weighted bool, weights models.CategoryWeights) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	course, ok := f.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	course.Weighted = weighted
	course.CategoryWeights = weights
	f.updates++
	return nil
}

// InputsVersion hashes the current fixture contents, so any mutation changes it.
func (f *fakeCourseStore) InputsVersion(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versionErr != nil {
		return "", f.versionErr
	}
	raw, err := json.Marshal([]interface{}{f.courses[id], f.assignments, f.quizzes, f.maxPoints, f.submissions, f.attempts, f.roster})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8]), nil
}

type fakeAssignments struct{ *fakeCourseStore }

func (f fakeAssignments) ListByCourse(_ context.Context, _ string) ([]models.Assignment, error) {
	return f.assignments, nil
}

type fakeQuizzes struct{ *fakeCourseStore }

func (f fakeQuizzes) ListByCourse(_ context.Context, _ string) ([]models.Quiz, error) {
	return f.quizzes, nil
}

func (f fakeQuizzes) MaxPointsByCourse(_ context.Context, _ string) (map[string]float64, error) {
	return f.maxPoints, nil
}

type fakeSubmissions struct{ *fakeCourseStore }

func (f fakeSubmissions) ListByStudent(_ context.Context, _, studentID string) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range f.submissions {
		if s.StudentID == studentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f fakeSubmissions) ListByCourse(_ context.Context, _ string, studentIDs []string) (map[string][]models.Submission, error) {
	wanted := toSet(studentIDs)
	out := map[string][]models.Submission{}
	for _, s := range f.submissions {
		if wanted[s.StudentID] {
			out[s.StudentID] = append(out[s.StudentID], s)
		}
	}
	return out, nil
}

type fakeAttempts struct{ *fakeCourseStore }

func (f fakeAttempts) ListByStudent(_ context.Context, _, studentID string) ([]models.QuizAttempt, error) {
	var out []models.QuizAttempt
	for _, a := range f.attempts {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f fakeAttempts) ListByCourse(_ context.Context, _ string, studentIDs []string) (map[string][]models.QuizAttempt, error) {
	wanted := toSet(studentIDs)
	out := map[string][]models.QuizAttempt{}
	for _, a := range f.attempts {
		if wanted[a.StudentID] {
			out[a.StudentID] = append(out[a.StudentID], a)
		}
	}
	return out, nil
}

type fakeRoster struct{ *fakeCourseStore }

func (f fakeRoster) ListStudents(_ context.Context, _ string, page, size int) ([]models.RosterEntry, int, error) {
	f.mu.Lock()
	f.rosterCalls = append(f.rosterCalls, [2]int{page, size})
	f.mu.Unlock()
	if f.rosterErr != nil {
		return nil, 0, f.rosterErr
	}
	start := (page - 1) * size
	if start >= len(f.roster) {
		return []models.RosterEntry{}, len(f.roster), nil
	}
	end := start + size
	if end > len(f.roster) {
		end = len(f.roster)
	}
	return f.roster[start:end], len(f.roster), nil
}

func (f fakeRoster) IsEnrolled(_ context.Context, _, studentID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, entry := range f.roster {
		if entry.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeRoster) IsInstructor(_ context.Context, _, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.instructors[userID], nil
}

func (f *fakeCourseStore) repos() GradebookRepositories {
	return GradebookRepositories{
		Courses:     f,
		Assignments: fakeAssignments{f},
		Quizzes:     fakeQuizzes{f},
		Submissions: fakeSubmissions{f},
		Attempts:    fakeAttempts{f},
		Roster:      fakeRoster{f},
		Versions:    f,
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func score(v float64) *float64 { return &v }

// algebraFixture is an unweighted course with one assignment and one quiz.
func algebraFixture() *fakeCourseStore {
	return &fakeCourseStore{
		courses: map[string]*models.Course{
			"course-1": {ID: "course-1", Title: "Algebra I", InstructorID: "teacher-1"},
		},
		assignments: []models.Assignment{{ID: "a1", Title: "Essay", MaxPoints: 100}},
		quizzes:     []models.Quiz{{ID: "q1", Title: "Quiz 1"}},
		maxPoints:   map[string]float64{"q1": 50},
		submissions: []models.Submission{
			{AssignmentID: "a1", StudentID: "stu-1", Grade: score(80)},
			{AssignmentID: "a1", StudentID: "stu-2", Grade: score(95)},
			{AssignmentID: "a1", StudentID: "stu-3", Grade: score(40)},
		},
		attempts: []models.QuizAttempt{
			{QuizID: "q1", StudentID: "stu-1", PointsEarned: score(20)},
			{QuizID: "q1", StudentID: "stu-1", PointsEarned: score(40)},
			{QuizID: "q1", StudentID: "stu-2", PointsEarned: score(50)},
		},
		roster: []models.RosterEntry{
			{StudentID: "stu-1", FullName: "Ada Lovelace"},
			{StudentID: "stu-2", FullName: "Alan Turing"},
			{StudentID: "stu-3", FullName: "Grace Hopper"},
		},
		instructors: map[string]bool{"teacher-1": true},
	}
}
