package service

import (
	"context"
	"errors"
	"maps"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/mail"
	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/realtime"
	"github.com/iliyamo/estate-portal/internal/repository"
)

// memDB is an in-memory stand-in for the MySQL schema.  memTx snapshots it
// so a failed transaction leaves no trace, like a rollback.
type memDB struct {
	mu          sync.Mutex
	identities  map[string]model.Identity
	residents   map[string]model.Resident
	members     map[string]model.HouseholdMember
	invitations map[string]model.MemberInvitation
	staff       map[string]model.Staff
	refresh     map[string]refreshRow
	codes       map[string]string
	visitors    map[string]model.Visitor
	updates     map[string]model.CommunityUpdate
	reads       map[[2]string]bool
	amenities   map[string]model.Amenity

	hideFlats bool  // FlatTaken always reports false, to exercise the unique index path
	listErr   error // returned by resident and member List
	staffErr  error // returned by staff lookups
}

type refreshRow struct {
	identityID string
	exp        time.Time
	revoked    bool
}

func newMemDB() *memDB {
	return &memDB{
		identities:  map[string]model.Identity{},
		residents:   map[string]model.Resident{},
		members:     map[string]model.HouseholdMember{},
		invitations: map[string]model.MemberInvitation{},
		staff:       map[string]model.Staff{},
		refresh:     map[string]refreshRow{},
		codes:       map[string]string{},
		visitors:    map[string]model.Visitor{},
		updates:     map[string]model.CommunityUpdate{},
		reads:       map[[2]string]bool{},
		amenities:   map[string]model.Amenity{},
	}
}

type memTx struct{ db *memDB }

func (t memTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	d := t.db
	d.mu.Lock()
	ids, res, mem, inv, st := maps.Clone(d.identities), maps.Clone(d.residents), maps.Clone(d.members), maps.Clone(d.invitations), maps.Clone(d.staff)
	d.mu.Unlock()
	if err := fn(ctx); err != nil {
		d.mu.Lock()
		d.identities, d.residents, d.members, d.invitations, d.staff = ids, res, mem, inv, st
		d.mu.Unlock()
		return err
	}
	return nil
}

// ----- identities -----

type memIdentities struct{ db *memDB }

func (s memIdentities) Create(_ context.Context, id model.Identity) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.identities {
		if x.Email == id.Email {
			return repository.ErrEmailExists
		}
	}
	if _, ok := s.db.identities[id.ID]; ok {
		return repository.ErrConflict
	}
	s.db.identities[id.ID] = id
	return nil
}

func (s memIdentities) GetByEmail(_ context.Context, email string) (model.Identity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.identities {
		if x.Email == email {
			return x, nil
		}
	}
	return model.Identity{}, repository.ErrNotFound
}

func (s memIdentities) GetByID(_ context.Context, id string) (model.Identity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	x, ok := s.db.identities[id]
	if !ok {
		return model.Identity{}, repository.ErrNotFound
	}
	return x, nil
}

func (s memIdentities) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	return err == nil, nil
}

func (s memIdentities) MarkConfirmed(_ context.Context, id string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	x, ok := s.db.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	x.EmailConfirmedAt = &at
	s.db.identities[id] = x
	return nil
}

// ----- residents -----

type memResidents struct{ db *memDB }

func (s memResidents) Create(_ context.Context, r model.Resident) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.residents {
		if x.Block == r.Block && x.FlatNumber == r.FlatNumber {
			return repository.ErrFlatExists
		}
	}
	s.db.residents[r.ID] = r
	return nil
}

func (s memResidents) GetByID(_ context.Context, id string) (model.Resident, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	x, ok := s.db.residents[id]
	if !ok {
		return model.Resident{}, repository.ErrNotFound
	}
	return x, nil
}

func (s memResidents) FlatTaken(_ context.Context, block, flat string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.hideFlats {
		return false, nil
	}
	for _, x := range s.db.residents {
		if x.Block == block && x.FlatNumber == flat {
			return true, nil
		}
	}
	return false, nil
}

func (s memResidents) List(context.Context) ([]model.Resident, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.listErr != nil {
		return nil, s.db.listErr
	}
	out := make([]model.Resident, 0, len(s.db.residents))
	for _, x := range s.db.residents {
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s memResidents) SetStatus(_ context.Context, id string, status model.ResidentStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	x, ok := s.db.residents[id]
	if !ok {
		return repository.ErrNotFound
	}
	x.Status = status
	s.db.residents[id] = x
	return nil
}

// ----- household members -----

type memMembers struct{ db *memDB }

func (s memMembers) Create(_ context.Context, m model.HouseholdMember) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.members {
		if x.Email == m.Email {
			return repository.ErrEmailExists
		}
	}
	s.db.members[m.ID] = m
	return nil
}

func (s memMembers) GetByID(_ context.Context, id string) (model.HouseholdMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	x, ok := s.db.members[id]
	if !ok {
		return model.HouseholdMember{}, repository.ErrNotFound
	}
	return x, nil
}

func (s memMembers) GetByIdentityID(_ context.Context, identityID string) (model.HouseholdMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.members {
		if x.IdentityID != nil && *x.IdentityID == identityID {
			return x, nil
		}
	}
	return model.HouseholdMember{}, repository.ErrNotFound
}

func (s memMembers) EmailExists(_ context.Context, email string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.members {
		if x.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s memMembers) ListByResident(_ context.Context, residentID string) ([]model.HouseholdMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.HouseholdMember{}
	for _, x := range s.db.members {
		if x.PrimaryResidentID == residentID {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s memMembers) List(context.Context) ([]model.HouseholdMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.listErr != nil {
		return nil, s.db.listErr
	}
	out := make([]model.HouseholdMember, 0, len(s.db.members))
	for _, x := range s.db.members {
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s memMembers) update(id string, fn func(*model.HouseholdMember) bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	x, ok := s.db.members[id]
	if !ok || !fn(&x) {
		return repository.ErrNotFound
	}
	s.db.members[id] = x
	return nil
}

func (s memMembers) SetInvitationStatus(_ context.Context, id string, status model.InvitationStatus) error {
	return s.update(id, func(m *model.HouseholdMember) bool { m.InvitationStatus = status; return true })
}

func (s memMembers) Accept(_ context.Context, id, identityID string) error {
	return s.update(id, func(m *model.HouseholdMember) bool {
		if m.IdentityID != nil {
			return false
		}
		m.IdentityID = &identityID
		m.InvitationStatus = model.InvitationAccepted
		return true
	})
}

func (s memMembers) SetAccessStatus(_ context.Context, id string, status model.AccessStatus) error {
	return s.update(id, func(m *model.HouseholdMember) bool { m.AccessStatus = status; return true })
}

func (s memMembers) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.members[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.members, id)
	for k, inv := range s.db.invitations {
		if inv.MemberID == id {
			delete(s.db.invitations, k)
		}
	}
	return nil
}

// ----- invitations -----

type memInvitations struct{ db *memDB }

func (s memInvitations) Create(_ context.Context, inv model.MemberInvitation) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.invitations[inv.ID] = inv
	return nil
}

func (s memInvitations) GetByTokenHashForUpdate(_ context.Context, tokenHash string) (model.MemberInvitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.invitations {
		if x.TokenHash == tokenHash {
			return x, nil
		}
	}
	return model.MemberInvitation{}, repository.ErrNotFound
}

func (s memInvitations) Consume(_ context.Context, id string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	x, ok := s.db.invitations[id]
	if !ok || x.ConsumedAt != nil {
		return repository.ErrNotFound
	}
	x.ConsumedAt = &at
	s.db.invitations[id] = x
	return nil
}

func (s memInvitations) InvalidateForMember(_ context.Context, memberID string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for k, x := range s.db.invitations {
		if x.MemberID == memberID && x.ConsumedAt == nil {
			x.ConsumedAt = &at
			s.db.invitations[k] = x
		}
	}
	return nil
}

// ----- staff -----

type memStaff struct{ db *memDB }

func (s memStaff) Create(_ context.Context, st model.Staff) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.staff[st.ID] = st
	return nil
}

func (s memStaff) GetByID(_ context.Context, id string) (model.Staff, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.staffErr != nil {
		return model.Staff{}, s.db.staffErr
	}
	x, ok := s.db.staff[id]
	if !ok {
		return model.Staff{}, repository.ErrNotFound
	}
	return x, nil
}

func (s memStaff) List(context.Context) ([]model.Staff, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Staff{}
	for _, x := range s.db.staff {
		out = append(out, x)
	}
	return out, nil
}

// ----- refresh tokens and codes -----

type memTokens struct{ db *memDB }

func (s memTokens) StoreRefresh(_ context.Context, identityID, hash string, exp time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.refresh[hash] = refreshRow{identityID: identityID, exp: exp}
	return nil
}

func (s memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row, ok := s.db.refresh[hash]
	if !ok || row.revoked || !row.exp.After(time.Now()) {
		return "", repository.ErrNotFound
	}
	return row.identityID, nil
}

func (s memTokens) RevokeByHash(_ context.Context, hash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row, ok := s.db.refresh[hash]
	if !ok {
		return repository.ErrNotFound
	}
	row.revoked = true
	s.db.refresh[hash] = row
	return nil
}

func (s memTokens) RevokeAllForIdentity(_ context.Context, identityID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for k, row := range s.db.refresh {
		if row.identityID == identityID {
			row.revoked = true
			s.db.refresh[k] = row
		}
	}
	return nil
}

type memRoleCache struct {
	mu    sync.Mutex
	roles map[string]model.Role
}

func (c *memRoleCache) Get(_ context.Context, id string) (model.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.roles[id]
	return r, ok
}

func (c *memRoleCache) Set(_ context.Context, id string, role model.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[id] = role
	return nil
}

func (c *memRoleCache) Forget(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, id)
	return nil
}

type memCodes struct{ db *memDB }

func (s memCodes) Save(_ context.Context, code, identityID string, _ time.Duration) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.codes[code] = identityID
	return nil
}

func (s memCodes) Take(_ context.Context, code string) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	id, ok := s.db.codes[code]
	if !ok {
		return "", repository.ErrNotFound
	}
	delete(s.db.codes, code)
	return id, nil
}

// ----- visitors, updates, amenities -----

type memVisitors struct{ db *memDB }

func (s memVisitors) Create(_ context.Context, v model.Visitor) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.visitors[v.ID] = v
	return nil
}

func (s memVisitors) join(v model.Visitor) model.Visitor {
	r := s.db.residents[v.ResidentID]
	v.Block, v.FlatNumber = r.Block, r.FlatNumber
	return v
}

func (s memVisitors) GetByID(_ context.Context, id string) (model.Visitor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.visitors[id]
	if !ok {
		return model.Visitor{}, repository.ErrNotFound
	}
	return s.join(v), nil
}

func (s memVisitors) ListByResident(_ context.Context, residentID string) ([]model.Visitor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Visitor{}
	for _, v := range s.db.visitors {
		if v.ResidentID == residentID {
			out = append(out, s.join(v))
		}
	}
	return out, nil
}

func (s memVisitors) ListBetween(_ context.Context, from, to time.Time) ([]model.Visitor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Visitor{}
	for _, v := range s.db.visitors {
		if !v.ExpectedAt.Before(from) && v.ExpectedAt.Before(to) {
			out = append(out, s.join(v))
		}
	}
	return out, nil
}

func (s memVisitors) CheckIn(_ context.Context, id string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.visitors[id]
	if !ok || v.CheckedInAt != nil {
		return repository.ErrNotFound
	}
	v.CheckedInAt = &at
	s.db.visitors[id] = v
	return nil
}

func (s memVisitors) CheckOut(_ context.Context, id string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	v, ok := s.db.visitors[id]
	if !ok || v.CheckedInAt == nil || v.CheckedOutAt != nil {
		return repository.ErrNotFound
	}
	v.CheckedOutAt = &at
	s.db.visitors[id] = v
	return nil
}

type memUpdates struct{ db *memDB }

func (s memUpdates) Create(_ context.Context, u model.CommunityUpdate) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.updates[u.ID] = u
	return nil
}

func (s memUpdates) ListFor(_ context.Context, identityID string, _ int) ([]model.CommunityUpdate, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.CommunityUpdate{}
	for _, u := range s.db.updates {
		u.Read = s.db.reads[[2]string{u.ID, identityID}]
		out = append(out, u)
	}
	return out, nil
}

func (s memUpdates) MarkRead(_ context.Context, updateID, identityID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.updates[updateID]; !ok {
		return repository.ErrNotFound
	}
	s.db.reads[[2]string{updateID, identityID}] = true
	return nil
}

func (s memUpdates) UnreadCount(_ context.Context, identityID string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for id := range s.db.updates {
		if !s.db.reads[[2]string{id, identityID}] {
			n++
		}
	}
	return n, nil
}

type memAmenities struct{ db *memDB }

func (s memAmenities) Create(_ context.Context, a model.Amenity) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.amenities {
		if x.Name == a.Name {
			return repository.ErrConflict
		}
	}
	s.db.amenities[a.ID] = a
	return nil
}

func (s memAmenities) List(context.Context) ([]model.Amenity, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Amenity{}
	for _, a := range s.db.amenities {
		out = append(out, a)
	}
	return out, nil
}

func (s memAmenities) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.amenities[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.amenities, id)
	return nil
}

// ----- collaborators -----

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) (mail.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return mail.SendResult{}, m.err
	}
	m.sent = append(m.sent, msg)
	return mail.SendResult{ID: "msg"}, nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) last() mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type fakeBroker struct {
	mu        sync.Mutex
	published []string
	handlers  []realtime.Handler
}

type noopSub struct{}

func (noopSub) Cancel() {}

func (b *fakeBroker) Publish(ctx context.Context, _, payload string) error {
	b.mu.Lock()
	b.published = append(b.published, payload)
	hs := append([]realtime.Handler(nil), b.handlers...)
	b.mu.Unlock()
	for _, h := range hs {
		h(ctx, payload)
	}
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string, fn realtime.Handler) (realtime.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
	return noopSub{}, nil
}

var errBoom = errors.New("boom")

// harness wires every service to one memDB and a controllable clock.
type harness struct {
	db     *memDB
	now    time.Time
	mailer *fakeMailer
	broker *fakeBroker

	roles      *RoleResolver
	identity   *IdentityService
	membership *MembershipService
	directory  *DirectoryService
	visitors   *VisitorService
	updates    *UpdateService
	amenities  *AmenityService
	staff      *StaffService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), mailer: &fakeMailer{}, broker: &fakeBroker{}}
	h.db = newMemDB()
	clk := clock{Now: func() time.Time { return h.now }}
	log := zap.NewNop()
	tx := memTx{h.db}

	h.roles = &RoleResolver{Staff: memStaff{h.db}, Residents: memResidents{h.db}, Members: memMembers{h.db}, Log: log}
	h.identity = &IdentityService{
		clock: clk,
		Cfg: IdentityConfig{
			JWTSecret: "test-secret", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour,
			CodeTTL: time.Hour, BcryptCost: 4, AppURL: "http://estate.test",
		},
		Tx: tx, Identities: memIdentities{h.db}, Residents: memResidents{h.db}, Members: memMembers{h.db},
		Staff: memStaff{h.db}, Tokens: memTokens{h.db}, Codes: memCodes{h.db}, Roles: h.roles, Mailer: h.mailer, Log: log,
	}
	h.membership = &MembershipService{
		clock: clk,
		Cfg:   MembershipConfig{AppURL: "http://estate.test", InviteTTL: 7 * 24 * time.Hour, BcryptCost: 4},
		Tx:    tx, Identities: memIdentities{h.db}, Residents: memResidents{h.db}, Members: memMembers{h.db},
		Invitations: memInvitations{h.db}, Tokens: memTokens{h.db}, Roles: h.roles, Mailer: h.mailer, Log: log,
	}
	h.directory = &DirectoryService{Residents: memResidents{h.db}, Members: memMembers{h.db}}
	h.visitors = &VisitorService{clock: clk, Visitors: memVisitors{h.db}, Members: memMembers{h.db}}
	h.updates = &UpdateService{clock: clk, Updates: memUpdates{h.db}, Broker: h.broker, Log: log}
	h.amenities = &AmenityService{clock: clk, Amenities: memAmenities{h.db}}
	h.staff = &StaffService{clock: clk, Tx: tx, Identities: memIdentities{h.db}, Members: memMembers{h.db}, Staff: memStaff{h.db}, BcryptCost: 4, Log: log}
	return h
}

func (h *harness) counts() (identities, residents, members int) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	return len(h.db.identities), len(h.db.residents), len(h.db.members)
}

// signUpConfirmed registers and confirms a resident, returning its id.
func (h *harness) signUpConfirmed(t *testing.T, email, block, flat string) string {
	t.Helper()
	res, err := h.identity.SignUp(context.Background(), SignUpInput{
		Email: email, Password: "password1", FullName: "Res " + flat, PhoneNumber: "0800", Block: block, FlatNumber: flat,
	})
	require.NoError(t, err)
	_, err = h.identity.ExchangeCode(context.Background(), linkParam(t, h.mailer.last().HTML, "code"))
	require.NoError(t, err)
	return res.ID
}

var linkParamRe = regexp.MustCompile(`[?&](code|token)=([0-9a-f]+)`)

// linkParam extracts the hex code or token from a rendered email link.
func linkParam(t *testing.T, html, name string) string {
	t.Helper()
	for _, m := range linkParamRe.FindAllStringSubmatch(html, -1) {
		if m[1] == name {
			return m[2]
		}
	}
	t.Fatalf("no %s in email: %s", name, html)
	return ""
}

var tempPassRe = regexp.MustCompile(`<strong>([^<]+)</strong>`)

func tempPassword(t *testing.T, html string) string {
	t.Helper()
	m := tempPassRe.FindStringSubmatch(html)
	require.Len(t, m, 2)
	return m[1]
}
