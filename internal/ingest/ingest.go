// Package ingest implements the three-round-trip fetch pattern shared by
// historical_fetch, connection_history, and incremental_sync (spec.md
// §4.8/§4.9): envelopes, then References headers, then body parts, built
// into canonical message rows and inserted in one transaction.
package ingest

import (
	"fmt"

	"github.com/hkdb/threadline/internal/builder"
	"github.com/hkdb/threadline/internal/imapadapter"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/store"
)

// Result summarizes one batch so callers can advance cursors.
type Result struct {
	Inserted int
	MinUID   uint32
	MaxUID   uint32
}

// Batch runs the three round trips for uids in folder and inserts the
// resulting rows in one transaction.
func Batch(sess *imapadapter.Session, db *store.DB, accountID, folder string, uids []uint32, selfEmails []string) (Result, error) {
	log := logging.WithComponent("ingest")
	if len(uids) == 0 {
		return Result{}, nil
	}

	raws, err := sess.FetchEnvelopes(uids)
	if err != nil {
		return Result{}, fmt.Errorf("fetch envelopes: %w", err)
	}
	if len(raws) == 0 {
		return Result{}, nil
	}

	fetchedUIDs := make([]uint32, 0, len(raws))
	for _, rm := range raws {
		fetchedUIDs = append(fetchedUIDs, rm.UID)
	}

	refsByUID, err := sess.FetchReferences(fetchedUIDs)
	if err != nil {
		return Result{}, fmt.Errorf("fetch references: %w", err)
	}

	pathSet := make(map[string][]int)
	for _, rm := range raws {
		if p := rm.TextPath(); p != nil {
			pathSet[imapadapter.PathSpecifier(p)] = p
		}
		if p := rm.HTMLPath(); p != nil {
			pathSet[imapadapter.PathSpecifier(p)] = p
		}
	}
	paths := make([][]int, 0, len(pathSet))
	for _, p := range pathSet {
		paths = append(paths, p)
	}

	var bodyParts map[uint32]map[string][]byte
	if len(paths) > 0 {
		bodyParts, err = sess.FetchBodyParts(fetchedUIDs, paths)
		if err != nil {
			return Result{}, fmt.Errorf("fetch body parts: %w", err)
		}
	}

	messages := make([]*store.Message, 0, len(raws))
	var minUID, maxUID uint32
	for _, rm := range raws {
		if minUID == 0 || rm.UID < minUID {
			minUID = rm.UID
		}
		if rm.UID > maxUID {
			maxUID = rm.UID
		}

		refs := imapadapter.ParseReferencesHeader(refsByUID[rm.UID])

		var bodyText, bodyHTML *string
		if parts, ok := bodyParts[rm.UID]; ok {
			if rm.TextPart != nil {
				if raw, ok := parts[imapadapter.PathSpecifier(rm.TextPart.Path)]; ok {
					s := decodeBody(raw, rm.TextPart.Encoding, rm.TextPart.Charset)
					bodyText = &s
				}
			}
			if rm.HTMLPart != nil {
				if raw, ok := parts[imapadapter.PathSpecifier(rm.HTMLPart.Path)]; ok {
					s := decodeBody(raw, rm.HTMLPart.Encoding, rm.HTMLPart.Charset)
					bodyHTML = &s
				}
			}
		}

		msg := builder.Build(builder.Input{
			AccountID:  accountID,
			Folder:     folder,
			Raw:        rm,
			References: refs,
			BodyText:   bodyText,
			BodyHTML:   bodyHTML,
			SelfEmails: selfEmails,
		})
		messages = append(messages, msg)
	}

	if err := db.InsertMessagesBatch(messages); err != nil {
		return Result{}, fmt.Errorf("insert batch: %w", err)
	}

	log.Debug().Str("account_id", accountID).Str("folder", folder).Int("count", len(messages)).Msg("batch ingested")
	return Result{Inserted: len(messages), MinUID: minUID, MaxUID: maxUID}, nil
}

