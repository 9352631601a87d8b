package event

import (
	"time"

	"github.com/trezcool/hoaportal/core/document"
)

// Collection is the document collection holding the events.
const Collection = "events"

// Categories
const (
	CategorySocial      = "social"
	CategoryMeeting     = "meeting"
	CategoryMaintenance = "maintenance"
	CategoryRecreation  = "recreation"
	CategoryOther       = "other"
)

// DateLayout is the layout of the event date inputs (HTML datetime-local).
const DateLayout = "2006-01-02T15:04"

var Categories = []Category{
	{Name: "Social", Value: CategorySocial},
	{Name: "Meeting", Value: CategoryMeeting},
	{Name: "Maintenance", Value: CategoryMaintenance},
	{Name: "Recreation", Value: CategoryRecreation},
	{Name: "Other", Value: CategoryOther},
}

type (
	Category struct {
		Name  string
		Value string
	}

	Event struct {
		ID          string    `json:"-"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Location    string    `json:"location"`
		StartsAt    time.Time `json:"startsAt"`
		Price       float64   `json:"price"`
		Capacity    int       `json:"capacity"`
		CreatedAt   time.Time `json:"-"`
		UpdatedAt   time.Time `json:"-"`
	}

	// NewEvent is the admin form creating an event.
	NewEvent struct {
		Title       string  `form:"title" validate:"required,notblank,max=120"`
		Description string  `form:"description" validate:"max=2000"`
		Category    string  `form:"category" validate:"required,oneof=social meeting maintenance recreation other"`
		Location    string  `form:"location" validate:"max=120"`
		StartsAt    string  `form:"startsAt" validate:"required,datetime=2006-01-02T15:04"`
		Price       float64 `form:"price" validate:"gte=0"`
		Capacity    int     `form:"capacity" validate:"gte=0"`
	}

	// UpdateEvent is the admin form editing an event. Empty fields are left unchanged.
	UpdateEvent struct {
		Title       string   `form:"title" validate:"omitempty,notblank,max=120"`
		Description *string  `form:"description" validate:"omitempty,max=2000"`
		Category    string   `form:"category" validate:"omitempty,oneof=social meeting maintenance recreation other"`
		Location    *string  `form:"location" validate:"omitempty,max=120"`
		StartsAt    string   `form:"startsAt" validate:"omitempty,datetime=2006-01-02T15:04"`
		Price       *float64 `form:"price" validate:"omitempty,gte=0"`
		Capacity    *int     `form:"capacity" validate:"omitempty,gte=0"`
	}

	// Filter selects events; empty fields match everything.
	Filter struct {
		Category string `query:"category"`
		Search   string `query:"q"` // case-insensitive match on title, description or location
	}

	Summary struct {
		Count      int
		TotalPrice float64
	}
)

// IsFree reports whether the event has no entry price.
func (e Event) IsFree() bool { return e.Price == 0 }

// Upcoming reports whether the event starts at or after now.
func (e Event) Upcoming(now time.Time) bool { return !e.StartsAt.Before(now) }

func fromDocument(doc document.Document) (Event, error) {
	var e Event
	if err := doc.Decode(&e); err != nil {
		return Event{}, err
	}
	e.ID = doc.ID
	e.CreatedAt = doc.CreatedAt
	e.UpdatedAt = doc.UpdatedAt
	return e, nil
}
