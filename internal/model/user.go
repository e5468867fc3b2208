package model

import "time"

// UserType distinguishes the two roles that reach the API.
type UserType string

const (
	UserTypeStudent  UserType = "student"
	UserTypeExaminer UserType = "examiner"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == UserTypeStudent || t == UserTypeExaminer
}

// User is an account row. The password hash never leaves the repository layer.
type User struct {
	ID           int64     `json:"id"`
	Type         UserType  `json:"type"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the public projection of a user embedded in other payloads.
type UserSummary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
}
