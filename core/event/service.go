// Package event manages the community events shown on the public calendar
// and edited from the admin dashboard.
package event

import (
	"context"
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/document"
)

var ErrNotFound = errors.New("event not found")

type Service struct {
	store      document.Store
	validate   *validator.Validate
	translator ut.Translator
	loc        *time.Location
}

func NewService(store document.Store, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{store: store, validate: validate, translator: translator, loc: time.UTC}
}

func (svc *Service) validateForm(form interface{}) error {
	if err := svc.validate.Struct(form); err != nil {
		return core.TranslateValidationError(err, svc.translator)
	}
	return nil
}

func (svc *Service) parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), svc.loc)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: "startsAt", Error: "enter a valid date and time"})
	}
	return t.UTC(), nil
}

func (svc *Service) trapNotFound(err error, msg string) error {
	if errors.Is(err, document.ErrNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// List returns the events matching filter, soonest first.
func (svc *Service) List(ctx context.Context, filter Filter) ([]Event, error) {
	docs, err := svc.store.ReadAll(ctx, Collection)
	if err != nil {
		return nil, errors.Wrap(err, "reading events")
	}

	cat := core.CleanString(filter.Category, true)
	search := core.CleanString(filter.Search, true)
	events := make([]Event, 0, len(docs))
	for _, doc := range docs {
		e, err := fromDocument(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding event %s", doc.ID)
		}
		if cat != "" && e.Category != cat {
			continue
		}
		if search != "" && !matches(search, e.Title, e.Description, e.Location) {
			continue
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].StartsAt.Before(events[j].StartsAt) })
	return events, nil
}

// Upcoming returns the events starting at or after now, soonest first.
func (svc *Service) Upcoming(ctx context.Context, now time.Time) ([]Event, error) {
	events, err := svc.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	upcoming := events[:0]
	for _, e := range events {
		if e.Upcoming(now) {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Event, error) {
	doc, err := svc.store.Get(ctx, Collection, id)
	if err != nil {
		return Event{}, svc.trapNotFound(err, "getting event")
	}
	return fromDocument(doc)
}

func (svc *Service) Create(ctx context.Context, ne NewEvent) (Event, error) {
	if err := svc.validateForm(ne); err != nil {
		return Event{}, err
	}
	startsAt, err := svc.parseDate(ne.StartsAt)
	if err != nil {
		return Event{}, err
	}

	e := Event{
		Title:       core.CleanString(ne.Title),
		Description: core.CleanString(ne.Description),
		Category:    ne.Category,
		Location:    core.CleanString(ne.Location),
		StartsAt:    startsAt,
		Price:       ne.Price,
		Capacity:    ne.Capacity,
	}
	flds, err := document.Encode(e)
	if err != nil {
		return Event{}, errors.Wrap(err, "encoding event")
	}
	id, err := svc.store.Add(ctx, Collection, flds)
	if err != nil {
		return Event{}, errors.Wrap(err, "adding event")
	}
	return svc.Get(ctx, id)
}

// Update merges the set fields of ue into the event.
func (svc *Service) Update(ctx context.Context, id string, ue UpdateEvent) (Event, error) {
	if err := svc.validateForm(ue); err != nil {
		return Event{}, err
	}

	flds := make(document.Fields)
	if ue.Title != "" {
		flds["title"] = core.CleanString(ue.Title)
	}
	if ue.Description != nil {
		flds["description"] = core.CleanString(*ue.Description)
	}
	if ue.Category != "" {
		flds["category"] = ue.Category
	}
	if ue.Location != nil {
		flds["location"] = core.CleanString(*ue.Location)
	}
	if ue.StartsAt != "" {
		startsAt, err := svc.parseDate(ue.StartsAt)
		if err != nil {
			return Event{}, err
		}
		flds["startsAt"] = startsAt.Format(time.RFC3339)
	}
	if ue.Price != nil {
		flds["price"] = *ue.Price
	}
	if ue.Capacity != nil {
		flds["capacity"] = *ue.Capacity
	}

	if err := svc.store.Update(ctx, Collection, id, flds); err != nil {
		return Event{}, svc.trapNotFound(err, "updating event")
	}
	return svc.Get(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.store.Delete(ctx, Collection, id); err != nil {
		return svc.trapNotFound(err, "deleting event")
	}
	return nil
}

// Summarize counts events and sums their prices.
func Summarize(events []Event) Summary {
	var s Summary
	for _, e := range events {
		s.Count++
		s.TotalPrice += e.Price
	}
	return s
}

func matches(search string, values ...string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), search) {
			return true
		}
	}
	return false
}
