package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Store struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Section struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	Name      string    `json:"name"`
	Ord       int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a shopping list entry. StoreID and SectionID are both nil for
// globally unassigned items; SectionID is never set without StoreID.
type Item struct {
	ID        int64     `json:"id"`
	StoreID   *int64    `json:"store_id,omitempty"`
	SectionID *int64    `json:"section_id,omitempty"`
	Name      string    `json:"name"`
	Checked   bool      `json:"checked"`
	Ord       int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scope addresses one sibling population of items.
type Scope struct {
	StoreID   *int64 `json:"store_id,omitempty"`
	SectionID *int64 `json:"section_id,omitempty"`
}

func (s Scope) IsGlobal() bool { return s.StoreID == nil && s.SectionID == nil }

// Contains reports whether the item currently sits in this scope.
func (s Scope) Contains(item *Item) bool {
	return sameID(s.StoreID, item.StoreID) && sameID(s.SectionID, item.SectionID)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ItemList is the nested read view of every unchecked item.
type ItemList struct {
	Unassigned []Item          `json:"unassigned"`
	Stores     []ItemListStore `json:"stores"`
}

type ItemListStore struct {
	Store
	Unassigned []Item            `json:"unassigned"`
	Sections   []ItemListSection `json:"sections"`
}

type ItemListSection struct {
	Section
	Items []Item `json:"items"`
}

// SectionAssignment is a group of items to append, in order, to one section.
type SectionAssignment struct {
	SectionID int64
	ItemIDs   []int64
}

type Session struct {
	ID        string    `json:"-"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type OrganizeJobStatus string

const (
	OrganizeJobQueued     OrganizeJobStatus = "queued"
	OrganizeJobInProgress OrganizeJobStatus = "in_progress"
	OrganizeJobCompleted  OrganizeJobStatus = "completed"
	OrganizeJobFailed     OrganizeJobStatus = "failed"
)

type OrganizeJob struct {
	ID            int64             `json:"id"`
	StoreID       int64             `json:"store_id"`
	Status        OrganizeJobStatus `json:"status"`
	AttemptCount  int               `json:"attempt_count"`
	MaxAttempts   int               `json:"max_attempts"`
	LastError     string            `json:"last_error,omitempty"`
	NextAttemptAt time.Time         `json:"next_attempt_at"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}
