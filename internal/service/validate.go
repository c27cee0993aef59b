package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/estate-portal/internal/repository"
)

const minPasswordLen = 8

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// validEmail accepts a bare address such as a@x.com, not a display-name form.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func checkPassword(p string) error {
	if utf8.RuneCountInString(p) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// unit normalizes block and flat identifiers the same way the residents
// table stores them.
func unit(s string) string { return repository.NormalizeUnit(s) }
