package enrollment

import (
	"math"

	"github.com/Mabu007/czane-beauty-academy/core/course"
)

type Progress struct {
	TotalLessons   int  `json:"totalLessons"`
	CompletedCount int  `json:"completedCount"`
	Percent        int  `json:"percent"`
	IsComplete     bool `json:"isComplete"`
}

// Compute derives the progress of an enrollment in c.
// Completed ids that no longer belong to the course are not counted,
// so curriculum edits can never push progress past 100%.
func Compute(c course.Course, e Enrollment) Progress {
	p := Progress{TotalLessons: c.TotalLessons()}
	if p.TotalLessons == 0 {
		return p
	}

	ids := c.LessonIDs()
	seen := make(map[string]struct{}, len(e.CompletedLessons))
	for _, id := range e.CompletedLessons {
		if _, ok := ids[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		p.CompletedCount++
	}

	p.Percent = int(math.Round(float64(p.CompletedCount) / float64(p.TotalLessons) * 100))
	p.IsComplete = p.Percent == 100
	return p
}
