package echoweb

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hoaportal/core/contact"
	"github.com/trezcool/hoaportal/core/event"
	"github.com/trezcool/hoaportal/core/resident"
	"github.com/trezcool/hoaportal/tests"
)

func (app *testApp) newAdmin(t *testing.T) *browser {
	t.Helper()
	b := app.newBrowser(t)
	assertRedirect(t, b.login(true, testutil.BoardEmail, boardPassword), "/admin")
	return b
}

func eventForm(title, price string) url.Values {
	return url.Values{
		"title":       {title},
		"description": {"Bring a towel."},
		"category":    {event.CategorySocial},
		"location":    {"Pool"},
		"startsAt":    {"2031-07-04T18:30"},
		"price":       {price},
		"capacity":    {"80"},
	}
}

func TestAdmin_events(t *testing.T) {
	app := setup(t)
	b := app.newAdmin(t)
	ctx := context.Background()

	rec := b.get("/admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No events yet.")

	// create
	rec = b.post("/admin/events", eventForm("Summer pool party", "$12.50"))
	assertRedirect(t, rec, "/admin", "tab", "events", "notice", "event-created")

	events, err := app.server.Events.List(ctx, event.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "Summer pool party", e.Title)
	assert.Equal(t, 12.5, e.Price)
	assert.Equal(t, 80, e.Capacity)

	rec = b.get("/admin?tab=events")
	assert.Contains(t, rec.Body.String(), "1 events &middot; total ticket price $12.50")
	assert.Contains(t, app.newBrowser(t).get("/events").Body.String(), "Summer pool party")

	// invalid create
	rec = b.post("/admin/events", eventForm("Movie night", "twelve"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "price: enter a valid amount")
	assert.Contains(t, rec.Body.String(), `value="Movie night"`)

	rec = b.post("/admin/events", eventForm("", "5"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title: this field is required")

	// update, a blank price is left unchanged
	form := eventForm("Summer luau", "")
	form.Set("capacity", "100")
	rec = b.post("/admin/events/"+e.ID, form)
	assertRedirect(t, rec, "/admin", "notice", "event-updated")

	e, err = app.server.Events.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summer luau", e.Title)
	assert.Equal(t, 12.5, e.Price)
	assert.Equal(t, 100, e.Capacity)

	rec = b.post("/admin/events/"+e.ID, eventForm("Summer luau", "-3"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "The event was not saved. price:")

	rec = b.post("/admin/events/missing", eventForm("Summer luau", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// delete
	rec = b.post("/admin/events/"+e.ID+"/delete", nil)
	assertRedirect(t, rec, "/admin", "notice", "event-deleted")
	events, err = app.server.Events.List(ctx, event.Filter{})
	require.NoError(t, err)
	assert.Empty(t, events)

	rec = b.post("/admin/events/"+e.ID+"/delete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_residents(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	jane := app.newBrowser(t)
	assertRedirect(t, jane.signup("Jane Doe", "jane@willowcreek.test", "12B"), "/resident")
	john := app.newBrowser(t)
	assertRedirect(t, john.signup("John Roe", "john@willowcreek.test", "4A"), "/resident")

	b := app.newAdmin(t)
	rec := b.get("/admin?tab=residents")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jane@willowcreek.test")
	assert.Contains(t, rec.Body.String(), "john@willowcreek.test")

	rec = b.get("/admin?tab=residents&q=jane")
	assert.Contains(t, rec.Body.String(), "jane@willowcreek.test")
	assert.NotContains(t, rec.Body.String(), "john@willowcreek.test")

	janeID, err := app.provider.Lookup(ctx, "jane@willowcreek.test")
	require.NoError(t, err)
	johnID, err := app.provider.Lookup(ctx, "john@willowcreek.test")
	require.NoError(t, err)

	// approve
	rec = b.post("/admin/residents/"+janeID.UID+"/approve", nil)
	assertRedirect(t, rec, "/admin", "tab", "residents", "notice", "resident-approved")

	r, err := app.server.Residents.Get(ctx, janeID.UID)
	require.NoError(t, err)
	assert.True(t, r.IsApproved())
	assert.Contains(t, jane.get("/resident").Body.String(), "Approved")

	rec = b.get("/admin?tab=residents&status=pending")
	assert.NotContains(t, rec.Body.String(), "jane@willowcreek.test")
	assert.Contains(t, rec.Body.String(), "john@willowcreek.test")

	rec = b.post("/admin/residents/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// delete disables the account
	rec = b.post("/admin/residents/"+johnID.UID+"/delete", nil)
	assertRedirect(t, rec, "/admin", "notice", "resident-deleted")

	_, err = app.server.Residents.Get(ctx, johnID.UID)
	assert.ErrorIs(t, err, resident.ErrNotFound)

	// john's open session is signed out
	assert.Eventually(t, func() bool {
		return john.get("/resident").Code == http.StatusUnauthorized
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, http.StatusOK, jane.get("/resident").Code)

	rec = app.newBrowser(t).login(false, "john@willowcreek.test", residentPassword)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "This account has been disabled.")

	rec = b.post("/admin/residents/"+johnID.UID+"/delete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_messages(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	_, err := app.server.Contact.Send(ctx, contact.NewMessage{
		Name:    "Jane Doe",
		Email:   "jane@willowcreek.test",
		Subject: "Pool hours",
		Body:    "Is the pool open on Mondays?",
	})
	require.NoError(t, err)

	b := app.newAdmin(t)
	rec := b.get("/admin?tab=messages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pool hours")
	assert.Contains(t, rec.Body.String(), "Is the pool open on Mondays?")

	msgs, err := app.server.Contact.List(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	rec = b.post("/admin/messages/"+msgs[0].ID+"/delete", nil)
	assertRedirect(t, rec, "/admin", "tab", "messages", "notice", "message-deleted")
	assert.Contains(t, b.get("/admin?tab=messages").Body.String(), "No messages.")

	rec = b.post("/admin/messages/"+msgs[0].ID+"/delete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "  ", want: nil},
		{in: "12.5", want: float64Ptr(12.5)},
		{in: " $7 ", want: float64Ptr(7)},
		{in: "0", want: float64Ptr(0)},
		{in: "twelve", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parsePrice(tc.in)
			if tc.wantErr {
				assert.EqualError(t, err, "enter a valid amount")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCapacity(t *testing.T) {
	tests := []struct {
		in      string
		want    *int
		wantErr bool
	}{
		{in: "", want: nil},
		{in: " 40 ", want: intPtr(40)},
		{in: "4.5", wantErr: true},
		{in: "many", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseCapacity(tc.in)
			if tc.wantErr {
				assert.EqualError(t, err, "enter a whole number")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }
