// Package carddavimport turns a raw vCard payload into trust-network
// entities. CardDAV transport itself is out of spec.md's scope (§1); only
// the vCard-to-entity projection named by the Entity model's
// carddav_import source lives here.
package carddavimport

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/hkdb/threadline/internal/store"
)

// Contact is one parsed vCard's address book entry, before it's turned into
// one Entity row per email address (a card can list several).
type Contact struct {
	Name   string
	Emails []string
}

// Decode parses every vCard in r (a vCard stream may hold more than one
// VCARD block back to back).
func Decode(r io.Reader) ([]Contact, error) {
	dec := vcard.NewDecoder(r)

	var out []Contact
	for {
		card, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode vcard: %w", err)
		}

		c := Contact{Name: formattedName(card)}
		for _, f := range card[vcard.FieldEmail] {
			email := strings.ToLower(strings.TrimSpace(f.Value))
			if email != "" {
				c.Emails = append(c.Emails, email)
			}
		}
		if len(c.Emails) > 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

func formattedName(card vcard.Card) string {
	for _, f := range card[vcard.FieldFormattedName] {
		if f.Value != "" {
			return f.Value
		}
	}
	return ""
}

// Import upserts one entity per contact email at the contact trust level,
// the floor of the trust hierarchy (spec.md §9's trust ranking never lets an
// import downgrade a user/alias/connection record already on file).
func Import(db *store.DB, accountID string, contacts []Contact, now int64) (int, error) {
	var metadata *string
	imported := 0
	for _, c := range contacts {
		if c.Name != "" {
			m := fmt.Sprintf(`{"name":%q}`, c.Name)
			metadata = &m
		} else {
			metadata = nil
		}
		for _, email := range c.Emails {
			entity := &store.Entity{
				AccountID:  accountID,
				Email:      email,
				TrustLevel: store.TrustContact,
				Source:     store.SourceCardDAVImport,
				FirstSeen:  now,
				LastSeen:   &now,
				SentCount:  0,
				Metadata:   metadata,
			}
			if err := db.UpsertEntity(entity); err != nil {
				return imported, fmt.Errorf("upsert contact %s: %w", email, err)
			}
			imported++
		}
	}
	return imported, nil
}
