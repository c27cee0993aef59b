package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/session"
	"github.com/iliyamo/estate-portal/internal/utils"
)

func kid() MemberFields {
	return MemberFields{Name: "Kid", Email: "Kid@X.com", Phone: "0801", Relationship: "child"}
}

func TestAddMemberSendsOneInvite(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	before := h.mailer.count()

	m, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)
	require.Equal(t, "kid@x.com", m.Email)
	require.Equal(t, model.InvitationSent, m.InvitationStatus)
	require.Equal(t, model.AccessActive, m.AccessStatus)
	require.Nil(t, m.IdentityID)
	require.Equal(t, before+1, h.mailer.count())

	msg := h.mailer.last()
	require.Equal(t, []string{"kid@x.com"}, msg.To)
	token := linkParam(t, msg.HTML, "token")
	require.Len(t, token, 64)

	require.Len(t, h.db.invitations, 1)
	for _, inv := range h.db.invitations {
		require.Equal(t, utils.HashToken(token), inv.TokenHash, "only the hash is stored")
		require.Equal(t, h.now.Add(7*24*time.Hour), inv.ExpiresAt)
		require.True(t, utils.VerifyPassword(inv.TempCredentialHash, tempPassword(t, msg.HTML)))
	}
}

func TestAddMemberKeepsPendingWhenMailFails(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	h.mailer.err = errBoom

	m, err := h.membership.AddMember(context.Background(), owner, kid())
	require.ErrorIs(t, err, ErrInviteNotSent)
	require.Equal(t, model.InvitationPending, h.db.members[m.ID].InvitationStatus)
}

func TestAddMemberValidation(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")

	_, err := h.membership.AddMember(context.Background(), owner, MemberFields{Name: "Kid"})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, []string{"email", "relationship"}, fe.Fields)

	_, err = h.membership.AddMember(context.Background(), owner, MemberFields{Name: "Me", Email: "a@x.com", Relationship: "self"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = h.membership.AddMember(context.Background(), "missing", kid())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptInvitationOnce(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	added, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)
	token := linkParam(t, h.mailer.last().HTML, "token")

	m, err := h.membership.AcceptInvitation(context.Background(), token, "")
	require.NoError(t, err)
	require.Equal(t, added.ID, m.ID)
	require.Equal(t, model.InvitationAccepted, h.db.members[m.ID].InvitationStatus)
	require.NotNil(t, m.IdentityID)
	require.NotNil(t, h.db.identities[*m.IdentityID].EmailConfirmedAt)

	role, err := h.roles.Resolve(context.Background(), *m.IdentityID)
	require.NoError(t, err)
	require.Equal(t, model.RoleHouseholdMember, role)

	_, err = h.membership.AcceptInvitation(context.Background(), token, "")
	require.ErrorIs(t, err, ErrInvalidInvitation)
}

func TestAcceptedMemberSignsInWithTemporaryCredential(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	_, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)
	msg := h.mailer.last()

	_, err = h.membership.AcceptInvitation(context.Background(), linkParam(t, msg.HTML, "token"), "")
	require.NoError(t, err)

	sess, err := h.identity.SignIn(context.Background(), "kid@x.com", tempPassword(t, msg.HTML))
	require.NoError(t, err)
	require.Equal(t, model.RoleHouseholdMember, sess.User.Role)
}

func TestAcceptInvitationUnknownTokenChangesNothing(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	_, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)
	ids, residents, members := h.counts()

	_, err = h.membership.AcceptInvitation(context.Background(), "deadbeef", "password2")
	require.ErrorIs(t, err, ErrInvalidInvitation)
	require.Equal(t, "Invalid or expired invitation", err.Error())

	_, err = h.membership.AcceptInvitation(context.Background(), "", "")
	require.ErrorIs(t, err, ErrInvalidInvitation)

	i2, r2, m2 := h.counts()
	require.Equal(t, []int{ids, residents, members}, []int{i2, r2, m2})
}

func TestAcceptInvitationExpired(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	m, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)
	token := linkParam(t, h.mailer.last().HTML, "token")
	ids, _, _ := h.counts()

	h.now = h.now.Add(7 * 24 * time.Hour)
	_, err = h.membership.AcceptInvitation(context.Background(), token, "password2")
	require.ErrorIs(t, err, ErrInvalidInvitation)

	i2, _, _ := h.counts()
	require.Equal(t, ids, i2)
	require.Equal(t, model.InvitationSent, h.db.members[m.ID].InvitationStatus)
	require.Nil(t, h.db.members[m.ID].IdentityID)
}

func TestResendInvitationRetiresOldToken(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	m, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)
	oldToken := linkParam(t, h.mailer.last().HTML, "token")

	actor := session.AppContext{IdentityID: owner, Role: model.RoleResident}
	m, err = h.membership.ResendInvitation(context.Background(), actor, m.ID)
	require.NoError(t, err)
	require.Equal(t, model.InvitationSent, m.InvitationStatus)
	newToken := linkParam(t, h.mailer.last().HTML, "token")
	require.NotEqual(t, oldToken, newToken)

	_, err = h.membership.AcceptInvitation(context.Background(), oldToken, "")
	require.ErrorIs(t, err, ErrInvalidInvitation)
	_, err = h.membership.AcceptInvitation(context.Background(), newToken, "")
	require.NoError(t, err)

	_, err = h.membership.ResendInvitation(context.Background(), actor, m.ID)
	require.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestSetAccessStatusOwnershipAndSuspension(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	other := h.signUpConfirmed(t, "b@x.com", "B", "202")
	m, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)
	_, err = h.membership.AcceptInvitation(context.Background(), linkParam(t, h.mailer.last().HTML, "token"), "password2")
	require.NoError(t, err)

	_, err = h.membership.SetAccessStatus(context.Background(),
		session.AppContext{IdentityID: other, Role: model.RoleResident}, m.ID, model.AccessSuspended)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = h.membership.SetAccessStatus(context.Background(),
		session.AppContext{IdentityID: owner, Role: model.RoleResident}, m.ID, "banned")
	require.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := h.membership.SetAccessStatus(context.Background(),
		session.AppContext{IdentityID: owner, Role: model.RoleResident}, m.ID, model.AccessSuspended)
	require.NoError(t, err)
	require.Equal(t, model.AccessSuspended, updated.AccessStatus)

	_, err = h.identity.SignIn(context.Background(), "kid@x.com", "password2")
	require.ErrorIs(t, err, ErrAccountSuspended)
}

func TestResendInvitationAfterFailedDelivery(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	h.mailer.err = errBoom
	m, err := h.membership.AddMember(context.Background(), owner, kid())
	require.ErrorIs(t, err, ErrInviteNotSent)
	require.Equal(t, model.InvitationPending, h.db.members[m.ID].InvitationStatus)

	h.mailer.err = nil
	actor := session.AppContext{IdentityID: owner, Role: model.RoleResident}
	m, err = h.membership.ResendInvitation(context.Background(), actor, m.ID)
	require.NoError(t, err)
	require.Equal(t, model.InvitationSent, m.InvitationStatus)
	require.Equal(t, model.InvitationSent, h.db.members[m.ID].InvitationStatus)

	_, err = h.membership.AcceptInvitation(context.Background(), linkParam(t, h.mailer.last().HTML, "token"), "")
	require.NoError(t, err)
}

func TestResendInvitationUnknownMember(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")

	_, err := h.membership.ResendInvitation(context.Background(),
		session.AppContext{IdentityID: owner, Role: model.RoleAdmin}, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSuspendRevokesMemberSessions(t *testing.T) {
	h := newHarness(t)
	cache := &memRoleCache{roles: map[string]model.Role{}}
	h.roles.Cache = cache
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	m, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)
	_, err = h.membership.AcceptInvitation(context.Background(), linkParam(t, h.mailer.last().HTML, "token"), "password2")
	require.NoError(t, err)

	sess, err := h.identity.SignIn(context.Background(), "kid@x.com", "password2")
	require.NoError(t, err)
	memberID := sess.User.IdentityID
	_, ok := cache.Get(context.Background(), memberID)
	require.True(t, ok)

	actor := session.AppContext{IdentityID: owner, Role: model.RoleResident}
	_, err = h.membership.SetAccessStatus(context.Background(), actor, m.ID, model.AccessRestricted)
	require.NoError(t, err)
	_, ok = cache.Get(context.Background(), memberID)
	require.True(t, ok, "restriction keeps the session")

	_, err = h.membership.SetAccessStatus(context.Background(), actor, m.ID, model.AccessSuspended)
	require.NoError(t, err)
	_, ok = cache.Get(context.Background(), memberID)
	require.False(t, ok)

	_, err = h.identity.Refresh(context.Background(), sess.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	// Writing the status the member already has is not a missing row.
	_, err = h.membership.SetAccessStatus(context.Background(), actor, m.ID, model.AccessSuspended)
	require.NoError(t, err)
}

func TestRemoveMember(t *testing.T) {
	h := newHarness(t)
	owner := h.signUpConfirmed(t, "a@x.com", "A", "101")
	m, err := h.membership.AddMember(context.Background(), owner, kid())
	require.NoError(t, err)

	err = h.membership.RemoveMember(context.Background(), session.AppContext{IdentityID: "x", Role: model.RoleHouseholdMember}, m.ID)
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, h.membership.RemoveMember(context.Background(), session.AppContext{IdentityID: "adm", Role: model.RoleAdmin}, m.ID))
	list, err := h.membership.ListMembers(context.Background(), owner)
	require.NoError(t, err)
	require.Empty(t, list)
	require.Empty(t, h.db.invitations)
}
