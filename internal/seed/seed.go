// Package seed loads development fixtures (users, groups, the question bank)
// from YAML into the database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/marcinucieklak/examhub/internal/model"
	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document. Entries reference each other by key.
type Fixtures struct {
	Users     []User     `yaml:"users"`
	Groups    []Group    `yaml:"groups"`
	Subjects  []Subject  `yaml:"subjects"`
	Questions []Question `yaml:"questions"`
}

type User struct {
	Key      string         `yaml:"key"`
	Type     model.UserType `yaml:"type"`
	Email    string         `yaml:"email"`
	Name     string         `yaml:"name"`
	Surname  string         `yaml:"surname"`
	Password string         `yaml:"password"`
}

type Group struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Examiner string   `yaml:"examiner"`
	Members  []string `yaml:"members"`
}

type Subject struct {
	Key    string  `yaml:"key"`
	Name   string  `yaml:"name"`
	Owner  string  `yaml:"owner"`
	Topics []Topic `yaml:"topics"`
}

type Topic struct {
	Key       string     `yaml:"key"`
	Name      string     `yaml:"name"`
	Subtopics []Subtopic `yaml:"subtopics"`
}

type Subtopic struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type Question struct {
	Text          string   `yaml:"text"`
	Options       []string `yaml:"options"`
	CorrectOption int      `yaml:"correct_option"`
	Author        string   `yaml:"author"`
	Subject       string   `yaml:"subject"`
	Topic         string   `yaml:"topic"`
	Subtopic      string   `yaml:"subtopic"`
	ImageURL      string   `yaml:"image_url"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Users     int
	Groups    int
	Members   int
	Subjects  int
	Topics    int
	Subtopics int
	Questions int
	Skipped   int
}

// LoadFile reads and validates fixtures from path.
func LoadFile(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates fixtures. Unknown fields are rejected.
func Load(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// Validate checks keys and references so Apply never fails halfway on bad input.
func (fx *Fixtures) Validate() error {
	var errs []error
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	users := map[string]model.UserType{}
	emails := map[string]bool{}
	for i, u := range fx.Users {
		switch {
		case u.Key == "":
			fail("users[%d]: key is required", i)
		case users[u.Key] != "":
			fail("users[%d]: duplicate key %q", i, u.Key)
		}
		if !u.Type.Valid() {
			fail("users[%d]: type must be student or examiner", i)
		}
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || !strings.Contains(email, "@") {
			fail("users[%d]: invalid email %q", i, u.Email)
		} else if emails[email] {
			fail("users[%d]: duplicate email %q", i, u.Email)
		}
		emails[email] = true
		if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Surname) == "" {
			fail("users[%d]: name and surname are required", i)
		}
		if u.Key != "" {
			users[u.Key] = u.Type
		}
	}

	isA := func(key string, want model.UserType) bool { return users[key] == want }

	groups := map[string]bool{}
	for i, g := range fx.Groups {
		if g.Key == "" || groups[g.Key] {
			fail("groups[%d]: missing or duplicate key %q", i, g.Key)
		}
		groups[g.Key] = true
		if strings.TrimSpace(g.Name) == "" {
			fail("groups[%d]: name is required", i)
		}
		if !isA(g.Examiner, model.UserTypeExaminer) {
			fail("groups[%d]: examiner %q is not an examiner user", i, g.Examiner)
		}
		for _, m := range g.Members {
			if !isA(m, model.UserTypeStudent) {
				fail("groups[%d]: member %q is not a student user", i, m)
			}
		}
	}

	subjects, topics, subtopics := map[string]bool{}, map[string]string{}, map[string]string{}
	for i, s := range fx.Subjects {
		if s.Key == "" || subjects[s.Key] {
			fail("subjects[%d]: missing or duplicate key %q", i, s.Key)
		}
		subjects[s.Key] = true
		if !isA(s.Owner, model.UserTypeExaminer) {
			fail("subjects[%d]: owner %q is not an examiner user", i, s.Owner)
		}
		for j, t := range s.Topics {
			if t.Key == "" || topics[t.Key] != "" {
				fail("subjects[%d].topics[%d]: missing or duplicate key %q", i, j, t.Key)
			}
			topics[t.Key] = s.Key
			for k, st := range t.Subtopics {
				if st.Key == "" || subtopics[st.Key] != "" {
					fail("subjects[%d].topics[%d].subtopics[%d]: missing or duplicate key %q", i, j, k, st.Key)
				}
				subtopics[st.Key] = t.Key
			}
		}
	}

	for i, q := range fx.Questions {
		if strings.TrimSpace(q.Text) == "" {
			fail("questions[%d]: text is required", i)
		}
		if len(q.Options) < 2 {
			fail("questions[%d]: at least two options are required", i)
		}
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			fail("questions[%d]: correct_option %d out of range", i, q.CorrectOption)
		}
		if !isA(q.Author, model.UserTypeExaminer) {
			fail("questions[%d]: author %q is not an examiner user", i, q.Author)
		}
		if q.Subject != "" && !subjects[q.Subject] {
			fail("questions[%d]: unknown subject %q", i, q.Subject)
		}
		if q.Topic != "" && topics[q.Topic] != q.Subject {
			fail("questions[%d]: topic %q is not under subject %q", i, q.Topic, q.Subject)
		}
		if q.Subtopic != "" && subtopics[q.Subtopic] != q.Topic {
			fail("questions[%d]: subtopic %q is not under topic %q", i, q.Subtopic, q.Topic)
		}
	}

	return errors.Join(errs...)
}

// Hasher hashes a plaintext password.
type Hasher func(password string) (string, error)

// Apply writes the fixtures inside tx. Users are upserted by email, groups
// and subjects by (owner, name); questions already present for the same
// author and text are skipped, so re-running a file is safe.
func Apply(ctx context.Context, tx pgx.Tx, fx *Fixtures, hash Hasher) (*Summary, error) {
	sum := &Summary{}
	userIDs := map[string]int64{}

	for _, u := range fx.Users {
		var pw string
		if u.Password != "" {
			h, err := hash(u.Password)
			if err != nil {
				return nil, fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			pw = h
		}
		var id int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO users (type, email, name, surname, password_hash)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''))
			 ON CONFLICT (email) DO UPDATE
			 SET type = EXCLUDED.type, name = EXCLUDED.name, surname = EXCLUDED.surname,
			     password_hash = COALESCE(EXCLUDED.password_hash, users.password_hash)
			 RETURNING id`,
			u.Type, strings.ToLower(strings.TrimSpace(u.Email)), u.Name, u.Surname, pw,
		).Scan(&id); err != nil {
			return nil, fmt.Errorf("upsert user %s: %w", u.Email, err)
		}
		userIDs[u.Key] = id
		sum.Users++
	}

	for _, g := range fx.Groups {
		var groupID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO groups (name, examiner_id) VALUES ($1, $2)
			 ON CONFLICT (examiner_id, name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			g.Name, userIDs[g.Examiner],
		).Scan(&groupID); err != nil {
			return nil, fmt.Errorf("upsert group %s: %w", g.Name, err)
		}
		sum.Groups++
		for _, m := range g.Members {
			tag, err := tx.Exec(ctx,
				`INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				userIDs[m], groupID)
			if err != nil {
				return nil, fmt.Errorf("add %s to group %s: %w", m, g.Name, err)
			}
			sum.Members += int(tag.RowsAffected())
		}
	}

	subjectIDs, topicIDs, subtopicIDs := map[string]int64{}, map[string]int64{}, map[string]int64{}
	for _, s := range fx.Subjects {
		var subjectID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO subjects (name, examiner_id) VALUES ($1, $2)
			 ON CONFLICT (examiner_id, name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			s.Name, userIDs[s.Owner],
		).Scan(&subjectID); err != nil {
			return nil, fmt.Errorf("upsert subject %s: %w", s.Name, err)
		}
		subjectIDs[s.Key] = subjectID
		sum.Subjects++

		for _, t := range s.Topics {
			topicID, err := findOrInsert(ctx, tx, "topics", "subject_id", subjectID, t.Name)
			if err != nil {
				return nil, fmt.Errorf("topic %s: %w", t.Name, err)
			}
			topicIDs[t.Key] = topicID
			sum.Topics++

			for _, st := range t.Subtopics {
				subtopicID, err := findOrInsert(ctx, tx, "subtopics", "topic_id", topicID, st.Name)
				if err != nil {
					return nil, fmt.Errorf("subtopic %s: %w", st.Name, err)
				}
				subtopicIDs[st.Key] = subtopicID
				sum.Subtopics++
			}
		}
	}

	for _, q := range fx.Questions {
		author := userIDs[q.Author]
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM questions WHERE created_by_id = $1 AND text = $2)`,
			author, q.Text,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check question: %w", err)
		}
		if exists {
			sum.Skipped++
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO questions (text, options, correct_option, subject_id, topic_id, subtopic_id, image_url, created_by_id)
			 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`,
			q.Text, q.Options, q.CorrectOption,
			optionalID(subjectIDs, q.Subject), optionalID(topicIDs, q.Topic), optionalID(subtopicIDs, q.Subtopic),
			q.ImageURL, author,
		); err != nil {
			return nil, fmt.Errorf("insert question %q: %w", q.Text, err)
		}
		sum.Questions++
	}

	return sum, nil
}

// findOrInsert returns the id of the row named name under parent, creating it.
// table and parentCol are constants from this package, never user input.
func findOrInsert(ctx context.Context, tx pgx.Tx, table, parentCol string, parentID int64, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1 AND name = $2`, table, parentCol),
		parentID, name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, name) VALUES ($1, $2) RETURNING id`, table, parentCol),
		parentID, name,
	).Scan(&id)
	return id, err
}

func optionalID(ids map[string]int64, key string) *int64 {
	if key == "" {
		return nil
	}
	id, ok := ids[key]
	if !ok {
		return nil
	}
	return &id
}
