package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/buildtall-systems/gifticon/internal/share"
)

var _ share.ContactDirectory = (*DB)(nil)

// ErrContactExists indicates a contact id is already stored.
var ErrContactExists = errors.New("contact already exists")

// AddContact stores a directory entry.
func (db *DB) AddContact(ctx context.Context, c share.Contact) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, phone, npub) VALUES (?, ?, ?, ?)
	`, c.ID, c.Name, c.Phone, c.Npub)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrContactExists, c.ID)
		}
		return fmt.Errorf("inserting contact: %w", err)
	}
	return nil
}

// Search returns contacts whose name contains query, ignoring case, ordered
// by name. An empty query lists every contact. Matching happens in Go since
// sqlite's lower() only folds ASCII.
func (db *DB) Search(ctx context.Context, query string) ([]share.Contact, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, phone, npub
		FROM contacts
		ORDER BY name COLLATE NOCASE, id
	`)
	if err != nil {
		return nil, fmt.Errorf("searching contacts: %w", err)
	}
	defer rows.Close()

	var contacts []share.Contact
	for rows.Next() {
		var c share.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Npub); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		if share.MatchesContact(c, query) {
			contacts = append(contacts, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contacts: %w", err)
	}
	return contacts, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
