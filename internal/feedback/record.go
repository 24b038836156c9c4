package feedback

import (
	"encoding/json"
	"strings"
	"time"
)

type Category string

const (
	CategoryBug     Category = "bug"
	CategoryFeature Category = "feature"
	CategoryGeneral Category = "general"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryBug, CategoryFeature, CategoryGeneral}

func (c Category) Valid() bool {
	switch c {
	case CategoryBug, CategoryFeature, CategoryGeneral:
		return true
	}
	return false
}

// UnmarshalJSON reads a non-string value as the empty category, so Create
// falls back to the default and Update rejects it as invalid.
func (c *Category) UnmarshalJSON(b []byte) error {
	*c = Category(enumToken(b))
	return nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	*p = Priority(enumToken(b))
	return nil
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

func (s *Status) UnmarshalJSON(b []byte) error {
	*s = Status(enumToken(b))
	return nil
}

// enumToken returns the JSON string in b, or "" for any other token.
func enumToken(b []byte) string {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return ""
	}
	return v
}

// Record is a single feedback item. The JSON field names are the persisted
// and wire format.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Category    Category  `json:"category" validate:"oneof=bug feature general"`
	Priority    Priority  `json:"priority" validate:"oneof=low medium high"`
	Status      Status    `json:"status" validate:"oneof=open in-progress resolved"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewRecord is the client input for Create. Unknown or empty category and
// priority values fall back to general and medium.
type NewRecord struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
}

// Patch carries the client-writable fields of an update. Nil fields are left
// unchanged. Identity and timestamps are not part of it, so a client sending
// id or createdAt in the body has no effect on them.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Status      *Status   `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Priority == nil && p.Status == nil
}

// apply shallow-merges p over r. String fields are trimmed.
func (p Patch) apply(r Record) Record {
	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		r.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return r
}

// Filter selects records by exact match. Zero-value fields match anything.
type Filter struct {
	Category Category
	Priority Priority
	Status   Status
}

func (f Filter) Match(r Record) bool {
	return (f.Category == "" || r.Category == f.Category) &&
		(f.Priority == "" || r.Priority == f.Priority) &&
		(f.Status == "" || r.Status == f.Status)
}

// Validate rejects filter values outside their enums. Empty values are fine.
func (f Filter) Validate() error {
	switch {
	case f.Category != "" && !f.Category.Valid():
		return invalid("invalid category filter %q", f.Category)
	case f.Priority != "" && !f.Priority.Valid():
		return invalid("invalid priority filter %q", f.Priority)
	case f.Status != "" && !f.Status.Valid():
		return invalid("invalid status filter %q", f.Status)
	}
	return nil
}

func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Stats summarizes the collection.
type Stats struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"byCategory"`
	ByPriority map[Priority]int `json:"byPriority"`
	ByStatus   map[Status]int   `json:"byStatus"`
}

func newStats() Stats {
	s := Stats{
		ByCategory: make(map[Category]int, len(Categories)),
		ByPriority: make(map[Priority]int, len(Priorities)),
		ByStatus:   make(map[Status]int, len(Statuses)),
	}
	for _, c := range Categories {
		s.ByCategory[c] = 0
	}
	for _, p := range Priorities {
		s.ByPriority[p] = 0
	}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	return s
}
