package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-portal/internal/mail"
	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/realtime"
	"github.com/iliyamo/estate-portal/internal/service"
	"github.com/iliyamo/estate-portal/internal/session"
)

// call runs h against a request built from method, target and an optional
// JSON body, with ac installed as the session.
func call(h echo.HandlerFunc, method, target, body string, ac session.AppContext, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	middleware.WithAppContext(c, ac)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

var (
	resident = session.AppContext{IdentityID: "res-1", Email: "a@x.com", Role: model.RoleResident}
	admin    = session.AppContext{IdentityID: "adm-1", Email: "admin@x.com", Role: model.RoleAdmin}
)

type fakeIdentity struct {
	signUpErr error
	session   service.Session
	err       error
	signedOut []string
}

func (f *fakeIdentity) SignUp(_ context.Context, in service.SignUpInput) (model.Resident, error) {
	return model.Resident{Email: in.Email}, f.signUpErr
}

func (f *fakeIdentity) ExchangeCode(_ context.Context, _ string) (service.Session, error) {
	return f.session, f.err
}

func (f *fakeIdentity) SignIn(_ context.Context, _, _ string) (service.Session, error) {
	return f.session, f.err
}

func (f *fakeIdentity) Refresh(_ context.Context, _ string) (service.Session, error) {
	return f.session, f.err
}

func (f *fakeIdentity) SignOut(_ context.Context, id string) error {
	f.signedOut = append(f.signedOut, id)
	return nil
}

func (f *fakeIdentity) Profile(_ context.Context, ac session.AppContext) (service.Profile, error) {
	return service.Profile{AppContext: ac}, f.err
}

type fakeInvitations struct{ err error }

func (f fakeInvitations) AcceptInvitation(_ context.Context, _, _ string) (model.HouseholdMember, error) {
	return model.HouseholdMember{ID: "m-1", InvitationStatus: model.InvitationAccepted}, f.err
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m mail.Message) (mail.SendResult, error) {
	if f.err != nil {
		return mail.SendResult{}, f.err
	}
	f.sent = append(f.sent, m)
	return mail.SendResult{ID: "em_1"}, nil
}

type fakeDirectory struct{}

func (fakeDirectory) ListResidents(context.Context) ([]model.Resident, error) {
	return []model.Resident{{ID: "r1", FullName: "Ada", Block: "A", FlatNumber: "101"}}, nil
}

func (fakeDirectory) ListAll(context.Context) ([]model.DirectoryEntry, error) {
	return []model.DirectoryEntry{
		{ID: "r1", FullName: "Ada", Block: "A", FlatNumber: "101", IsPrimaryResident: true},
		{ID: "m1", FullName: "Bob", Block: "A", FlatNumber: "101"},
		{ID: "r2", FullName: "Cy", Block: "B", FlatNumber: "202", IsPrimaryResident: true},
	}, nil
}

type fakeHousehold struct {
	addErr error
	actor  session.AppContext
	status model.AccessStatus
}

func (f *fakeHousehold) AddMember(_ context.Context, _ string, fl service.MemberFields) (model.HouseholdMember, error) {
	return model.HouseholdMember{ID: "m-1", Name: fl.Name, InvitationStatus: model.InvitationPending}, f.addErr
}

func (f *fakeHousehold) ListMembers(_ context.Context, id string) ([]model.HouseholdMember, error) {
	return []model.HouseholdMember{{ID: "m-1", PrimaryResidentID: id}}, nil
}

func (f *fakeHousehold) SetAccessStatus(_ context.Context, actor session.AppContext, id string, st model.AccessStatus) (model.HouseholdMember, error) {
	f.actor, f.status = actor, st
	if !st.Valid() {
		return model.HouseholdMember{}, service.ErrInvalidStatus
	}
	return model.HouseholdMember{ID: id, AccessStatus: st}, nil
}

func (f *fakeHousehold) RemoveMember(_ context.Context, _ session.AppContext, id string) error {
	if id != "m-1" {
		return service.ErrNotFound
	}
	return nil
}

func (f *fakeHousehold) ResendInvitation(_ context.Context, _ session.AppContext, _ string) (model.HouseholdMember, error) {
	return model.HouseholdMember{}, service.ErrAlreadyJoined
}

type fakeVisitors struct {
	day time.Time
}

func (f *fakeVisitors) Register(_ context.Context, actor session.AppContext, in service.VisitorInput) (model.Visitor, error) {
	if actor.Role.IsStaff() {
		return model.Visitor{}, service.ErrForbidden
	}
	return model.Visitor{ID: "v-1", ResidentID: actor.IdentityID, Name: in.Name}, nil
}

func (f *fakeVisitors) ListMine(context.Context, session.AppContext) ([]model.Visitor, error) {
	return nil, nil
}

func (f *fakeVisitors) ListDay(_ context.Context, day time.Time) ([]model.Visitor, error) {
	f.day = day
	return []model.Visitor{}, nil
}

func (f *fakeVisitors) CheckIn(_ context.Context, id string) (model.Visitor, error) {
	if id == "done" {
		return model.Visitor{}, service.ErrVisitorState
	}
	return model.Visitor{ID: id}, nil
}

func (f *fakeVisitors) CheckOut(_ context.Context, _ string) (model.Visitor, error) {
	return model.Visitor{}, service.ErrNotFound
}

type fakeAmenities struct{ err error }

func (f fakeAmenities) List(context.Context) ([]model.Amenity, error) { return nil, nil }

func (f fakeAmenities) Create(_ context.Context, in service.AmenityInput) (model.Amenity, error) {
	return model.Amenity{ID: "am-1", Name: in.Name}, f.err
}

func (f fakeAmenities) Delete(context.Context, string) error { return f.err }

type fakePurger struct{ routes []string }

func (f *fakePurger) Purge(_ context.Context, route string) error {
	f.routes = append(f.routes, route)
	return nil
}

// fakeUpdates drives WatchUnread from a test-controlled channel.
type fakeUpdates struct {
	initial int
	changes chan int
}

func (f *fakeUpdates) Post(_ context.Context, author session.AppContext, title, body string) (model.CommunityUpdate, error) {
	return model.CommunityUpdate{ID: "u-1", Title: title, Body: body, AuthorID: author.IdentityID}, nil
}

func (f *fakeUpdates) List(context.Context, string, int) ([]model.CommunityUpdate, error) {
	return nil, nil
}

func (f *fakeUpdates) MarkRead(_ context.Context, _, id string) error {
	if id != "u-1" {
		return service.ErrNotFound
	}
	return nil
}

func (f *fakeUpdates) UnreadCount(context.Context, string) (int, error) { return f.initial, nil }

func (f *fakeUpdates) WatchUnread(ctx context.Context, _ string, fn func(int)) (realtime.Subscription, error) {
	fn(f.initial)
	if f.changes == nil {
		return nil, service.ErrRealtimeUnavailable
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-f.changes:
				fn(n)
			}
		}
	}()
	return &stopper{cancel: cancel, done: done}, nil
}

type stopper struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *stopper) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
