package model

// GroupRef identifies the group an exam is assigned to.
type GroupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
