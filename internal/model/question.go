package model

import "strings"

// ImagePathPrefix is where question images are served from.
const ImagePathPrefix = "/uploads/questions/"

// Question is a single-choice question. CorrectOption indexes Options.
type Question struct {
	ID            int64    `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	SubjectID     *int64   `json:"subject_id,omitempty"`
	TopicID       *int64   `json:"topic_id,omitempty"`
	SubtopicID    *int64   `json:"subtopic_id,omitempty"`
	ImageURL      *string  `json:"image_url,omitempty"`
	CreatedByID   int64    `json:"created_by_id"`
	Position      int      `json:"position"`
}

// CorrectAnswer returns the text of the correct option, or "" when the
// stored index does not point at an option.
func (q *Question) CorrectAnswer() string {
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectOption]
}

// ForStudent strips the answer key.
func (q *Question) ForStudent() QuestionForStudent {
	out := QuestionForStudent{
		ID:       q.ID,
		Text:     q.Text,
		Options:  append([]string(nil), q.Options...),
		Position: q.Position,
	}
	if q.ImageURL != nil && *q.ImageURL != "" {
		path := *q.ImageURL
		if !strings.HasPrefix(path, "/") && !strings.Contains(path, "://") {
			path = ImagePathPrefix + path
		}
		out.ImageURL = &path
	}
	return out
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID       int64    `json:"id"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	ImageURL *string  `json:"image_url,omitempty"`
	Position int      `json:"position"`
}

// HasOption reports whether answer is one of the question's options.
func (q *QuestionForStudent) HasOption(answer string) bool {
	for _, o := range q.Options {
		if o == answer {
			return true
		}
	}
	return false
}
