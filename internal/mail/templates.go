package mail

import (
	"bytes"
	"html/template"
)

var (
	inviteTmpl = template.Must(template.New("invite").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hello {{.Name}},</p>
<p>{{.InvitedBy}} added you to their household at Block {{.Block}}, Flat {{.FlatNumber}}.</p>
<p>Your temporary password is <strong>{{.TempPassword}}</strong>.</p>
<p><a href="{{.Link}}">Accept your invitation</a>. The link expires on {{.Expires}}.</p>
</body></html>`))

	confirmTmpl = template.Must(template.New("confirm").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hello {{.Name}},</p>
<p>Confirm your email to activate the account for Block {{.Block}}, Flat {{.FlatNumber}}.</p>
<p><a href="{{.Link}}">Confirm email</a></p>
</body></html>`))
)

// InviteData fills the household invitation email.
type InviteData struct {
	Name         string
	InvitedBy    string
	Block        string
	FlatNumber   string
	TempPassword string
	Link         string
	Expires      string
}

// ConfirmData fills the sign-up confirmation email.
type ConfirmData struct {
	Name       string
	Block      string
	FlatNumber string
	Link       string
}

// InviteMessage renders the invitation email for to.
func InviteMessage(to string, d InviteData) (Message, error) {
	var buf bytes.Buffer
	if err := inviteTmpl.Execute(&buf, d); err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "You're invited to the estate portal", HTML: buf.String()}, nil
}

// ConfirmMessage renders the sign-up confirmation email for to.
func ConfirmMessage(to string, d ConfirmData) (Message, error) {
	var buf bytes.Buffer
	if err := confirmTmpl.Execute(&buf, d); err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Confirm your email", HTML: buf.String()}, nil
}
