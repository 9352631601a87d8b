package echoweb

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core/contact"
	"github.com/trezcool/hoaportal/core/event"
)

const homeEventsLimit = 3

type (
	homeData struct {
		Events []event.Event
	}

	eventsData struct {
		Filter event.Filter
		Events []event.Event
	}
)

func (s *Server) home(ctx echo.Context) error {
	events, err := s.Events.Upcoming(ctx.Request().Context(), time.Now())
	if err != nil {
		return errors.Wrap(err, "listing upcoming events")
	}
	if len(events) > homeEventsLimit {
		events = events[:homeEventsLimit]
	}
	return s.render(ctx, http.StatusOK, "home", page{Title: "Home", Data: homeData{Events: events}})
}

func (s *Server) staticPage(name, title string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return s.render(ctx, http.StatusOK, name, page{Title: title})
	}
}

func (s *Server) listEvents(ctx echo.Context) error {
	filter := event.Filter{
		Category: ctx.QueryParam("category"),
		Search:   ctx.QueryParam("q"),
	}
	events, err := s.Events.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing events")
	}
	return s.render(ctx, http.StatusOK, "events", page{
		Title: "Events",
		Data:  eventsData{Filter: filter, Events: events},
	})
}

func (s *Server) contactForm(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "contact", page{Title: "Contact", Form: contact.NewMessage{}})
}

func (s *Server) sendContact(ctx echo.Context) error {
	var nm contact.NewMessage
	if err := ctx.Bind(&nm); err != nil {
		return errHttpBadRequest
	}

	if _, err := s.Contact.Send(ctx.Request().Context(), nm); err != nil {
		if flds, ok := fieldErrors(err); ok {
			return s.render(ctx, http.StatusBadRequest, "contact", page{Title: "Contact", Form: nm, Errors: flds})
		}
		s.Logger.Error("sending contact message", err)
		return s.render(ctx, http.StatusInternalServerError, "contact", page{
			Title: "Contact",
			Form:  nm,
			Error: "Your message could not be sent. Please try again later.",
		})
	}
	return redirectNotice(ctx, "/contact", "message-sent")
}
