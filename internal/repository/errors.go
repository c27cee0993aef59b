// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as services
// and handlers to distinguish failure scenarios without inspecting driver
// errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an identity or household member insert
// collides with an existing email.
var ErrEmailExists = errors.New("email already exists")

// ErrFlatExists is returned when a resident insert collides with an already
// registered block/flat pair.
var ErrFlatExists = errors.New("flat already registered")

// ErrConflict is returned for any other unique-key violation.
var ErrConflict = errors.New("conflict")

// duplicateKey reports whether err is a MySQL duplicate-key error (1062) and,
// if so, the message naming the violated key.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return me.Message, true
	}
	return "", false
}

// mapDuplicate translates a duplicate-key error into one of the sentinels
// above based on the key name in the driver message.
func mapDuplicate(err error) error {
	msg, ok := duplicateKey(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(msg, "email"):
		return ErrEmailExists
	case strings.Contains(msg, "block_flat"):
		return ErrFlatExists
	}
	return ErrConflict
}
