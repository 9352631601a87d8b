package echoweb

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/contact"
	"github.com/trezcool/hoaportal/core/event"
	"github.com/trezcool/hoaportal/core/resident"
)

// Dashboard tabs
const (
	tabEvents    = "events"
	tabResidents = "residents"
	tabMessages  = "messages"
)

type adminData struct {
	Tab            string
	Summary        event.Summary
	Events         []event.Event
	Residents      []resident.Resident
	ResidentFilter resident.Filter
	Messages       []contact.Message
}

func (s *Server) adminDashboard(ctx echo.Context) error {
	switch tab := ctx.QueryParam("tab"); tab {
	case tabResidents:
		filter := resident.Filter{
			Status: ctx.QueryParam("status"),
			Search: ctx.QueryParam("q"),
		}
		residents, err := s.Residents.List(ctx.Request().Context(), filter)
		if err != nil {
			return errors.Wrap(err, "listing residents")
		}
		return s.renderAdmin(ctx, http.StatusOK, page{Data: adminData{
			Tab:            tabResidents,
			Residents:      residents,
			ResidentFilter: filter,
		}})
	case tabMessages:
		msgs, err := s.Contact.List(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "listing messages")
		}
		return s.renderAdmin(ctx, http.StatusOK, page{Data: adminData{Tab: tabMessages, Messages: msgs}})
	default:
		return s.renderEvents(ctx, http.StatusOK, page{})
	}
}

func (s *Server) renderAdmin(ctx echo.Context, code int, p page) error {
	p.Title = "Board dashboard"
	return s.render(ctx, code, "admin", p)
}

// renderEvents renders the events tab. p carries the state of the new event form.
func (s *Server) renderEvents(ctx echo.Context, code int, p page) error {
	events, err := s.Events.List(ctx.Request().Context(), event.Filter{})
	if err != nil {
		return errors.Wrap(err, "listing events")
	}
	if p.Form == nil {
		p.Form = eventFormData{Category: event.CategorySocial}
	}
	p.Data = adminData{Tab: tabEvents, Summary: event.Summarize(events), Events: events}
	return s.renderAdmin(ctx, code, p)
}

func (s *Server) createEvent(ctx echo.Context) error {
	var f eventFormData
	if err := ctx.Bind(&f); err != nil {
		return errHttpBadRequest
	}

	ne, err := f.newEvent()
	if err == nil {
		_, err = s.Events.Create(ctx.Request().Context(), ne)
	}
	if err != nil {
		if flds, ok := fieldErrors(err); ok {
			return s.renderEvents(ctx, http.StatusBadRequest, page{Form: f, Errors: flds})
		}
		return err
	}
	return redirectNotice(ctx, "/admin?tab=events", "event-created")
}

func (s *Server) updateEvent(ctx echo.Context) error {
	var f eventFormData
	if err := ctx.Bind(&f); err != nil {
		return errHttpBadRequest
	}

	ue, err := f.updateEvent()
	if err == nil {
		_, err = s.Events.Update(ctx.Request().Context(), ctx.Param("id"), ue)
	}
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			return errHttpNotFound
		}
		if flds, ok := fieldErrors(err); ok {
			return s.renderEvents(ctx, http.StatusBadRequest, page{Error: "The event was not saved. " + joinFieldErrors(flds)})
		}
		return err
	}
	return redirectNotice(ctx, "/admin?tab=events", "event-updated")
}

func (s *Server) deleteEvent(ctx echo.Context) error {
	if err := s.Events.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			return errHttpNotFound
		}
		return err
	}
	return redirectNotice(ctx, "/admin?tab=events", "event-deleted")
}

func (s *Server) approveResident(ctx echo.Context) error {
	if _, err := s.Residents.Approve(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Is(err, resident.ErrNotFound) {
			return errHttpNotFound
		}
		return err
	}
	return redirectNotice(ctx, "/admin?tab=residents", "resident-approved")
}

// deleteResident removes the resident profile and disables the account behind it.
func (s *Server) deleteResident(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	r, err := s.Residents.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, resident.ErrNotFound) {
			return errHttpNotFound
		}
		return err
	}
	if err = s.Residents.Delete(reqCtx, r.UID); err != nil {
		return err
	}
	if err = s.Provider.SetDisabled(reqCtx, r.Email, true); err != nil {
		s.Logger.Warn(fmt.Sprintf("disabling account of removed resident %s", r.UID), err)
	}
	return redirectNotice(ctx, "/admin?tab=residents", "resident-deleted")
}

func (s *Server) deleteMessage(ctx echo.Context) error {
	if err := s.Contact.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			return errHttpNotFound
		}
		return err
	}
	return redirectNotice(ctx, "/admin?tab=messages", "message-deleted")
}

func (f eventFormData) newEvent() (event.NewEvent, error) {
	ne := event.NewEvent{
		Title:       f.Title,
		Description: f.Description,
		Category:    f.Category,
		Location:    f.Location,
		StartsAt:    f.StartsAt,
	}

	var flds []core.FieldError
	price, err := parsePrice(f.Price)
	if err != nil {
		flds = append(flds, core.FieldError{Field: "price", Error: err.Error()})
	}
	capacity, err := parseCapacity(f.Capacity)
	if err != nil {
		flds = append(flds, core.FieldError{Field: "capacity", Error: err.Error()})
	}
	if len(flds) > 0 {
		return ne, core.NewValidationError(nil, flds...)
	}

	if price != nil {
		ne.Price = *price
	}
	if capacity != nil {
		ne.Capacity = *capacity
	}
	return ne, nil
}

// updateEvent leaves the blank numeric inputs unchanged. Text inputs are always posted.
func (f eventFormData) updateEvent() (event.UpdateEvent, error) {
	desc, loc := f.Description, f.Location
	ue := event.UpdateEvent{
		Title:       f.Title,
		Description: &desc,
		Category:    f.Category,
		Location:    &loc,
		StartsAt:    f.StartsAt,
	}

	var flds []core.FieldError
	price, err := parsePrice(f.Price)
	if err != nil {
		flds = append(flds, core.FieldError{Field: "price", Error: err.Error()})
	}
	capacity, err := parseCapacity(f.Capacity)
	if err != nil {
		flds = append(flds, core.FieldError{Field: "capacity", Error: err.Error()})
	}
	if len(flds) > 0 {
		return ue, core.NewValidationError(nil, flds...)
	}

	ue.Price, ue.Capacity = price, capacity
	return ue, nil
}

// parsePrice returns nil for a blank input.
func parsePrice(s string) (*float64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("enter a valid amount")
	}
	return &v, nil
}

// parseCapacity returns nil for a blank input.
func parseCapacity(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.New("enter a whole number")
	}
	return &v, nil
}

func joinFieldErrors(flds map[string]string) string {
	msgs := make([]string, 0, len(flds))
	for fld, msg := range flds {
		msgs = append(msgs, fld+": "+msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
