package scoring

import "github.com/marcinucieklak/examhub/internal/model"

type gradeBand struct {
	min     int
	value   string
	labelID string
}

// bands are ordered from the highest threshold down.
var bands = []gradeBand{
	{91, "5.0", "grade.very_good"},
	{81, "4.5", "grade.good_plus"},
	{71, "4.0", "grade.good"},
	{61, "3.5", "grade.satisfactory_plus"},
	{50, "3.0", "grade.satisfactory"},
}

var failing = gradeBand{0, "2.0", "grade.unsatisfactory"}

// GradeFor maps a percentage score onto the 2.0-5.0 scale. Label is left
// empty; callers localize LabelID.
func GradeFor(score int) model.Grade {
	b := failing
	for _, band := range bands {
		if score >= band.min {
			b = band
			break
		}
	}
	return model.Grade{Value: b.value, LabelID: b.labelID}
}

// GradeLabelIDs lists every label message ID, highest grade first.
func GradeLabelIDs() []string {
	ids := make([]string, 0, len(bands)+1)
	for _, b := range bands {
		ids = append(ids, b.labelID)
	}
	return append(ids, failing.labelID)
}
