package imapadapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/emersion/go-imap/v2"
	"golang.org/x/sync/errgroup"
)

// Folder describes one mailbox returned by LIST, classified by SPECIAL-USE
// attribute when advertised, or by a localized name heuristic otherwise.
type Folder struct {
	Name  string
	Class FolderClass
}

type FolderClass string

const (
	ClassInbox   FolderClass = "inbox"
	ClassSent    FolderClass = "sent"
	ClassTrash   FolderClass = "trash"
	ClassSpam    FolderClass = "spam"
	ClassDrafts  FolderClass = "drafts"
	ClassAllMail FolderClass = "all_mail"
	ClassOther   FolderClass = "other"
)

// localizedNames maps a class to every locale spelling historical_fetch's
// folder discovery has to recognize when SPECIAL-USE isn't advertised.
var localizedNames = map[FolderClass][]string{
	ClassSent:   {"sent", "sent mail", "sent items", "gesendet", "envoy", "enviados", "inviati"},
	ClassTrash:  {"trash", "deleted", "deleted items", "papierkorb", "corbeille", "papelera", "cestino"},
	ClassSpam:   {"spam", "junk", "bulk mail", "junk-e-mail"},
	ClassDrafts: {"drafts", "entwurfe", "brouillons", "borradores", "bozze"},
}

// ListFolders runs LIST "" "*" and classifies every returned mailbox.
func (s *Session) ListFolders(ctx context.Context) ([]Folder, error) {
	listCmd := s.client.List("", "*", nil)

	var out []Folder
	for {
		mbox := listCmd.Next()
		if mbox == nil {
			break
		}
		out = append(out, Folder{Name: mbox.Mailbox, Class: classifyFolder(mbox.Mailbox, mbox.Attrs)})
	}
	if err := listCmd.Close(); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return out, nil
}

func classifyFolder(name string, attrs []imap.MailboxAttr) FolderClass {
	for _, a := range attrs {
		switch a {
		case imap.MailboxAttrSent:
			return ClassSent
		case imap.MailboxAttrTrash:
			return ClassTrash
		case imap.MailboxAttrJunk:
			return ClassSpam
		case imap.MailboxAttrDrafts:
			return ClassDrafts
		case imap.MailboxAttrAll:
			return ClassAllMail
		}
	}
	if strings.EqualFold(name, "INBOX") {
		return ClassInbox
	}
	lower := strings.ToLower(name)
	for class, names := range localizedNames {
		for _, n := range names {
			if strings.Contains(lower, n) {
				return class
			}
		}
	}
	if strings.Contains(lower, "all mail") {
		return ClassAllMail
	}
	return ClassOther
}

// SyncCandidates returns folder names historical_fetch and incremental_sync
// should maintain a cursor for: everything except Trash/Spam/Sent, but
// including All Mail on Gmail accounts (spec.md §4.8).
func SyncCandidates(folders []Folder) []string {
	var out []string
	for _, f := range folders {
		switch f.Class {
		case ClassTrash, ClassSpam, ClassSent:
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

// FindSentFolder locates the account's Sent folder for trust_network, or ""
// if none was found.
func FindSentFolder(folders []Folder) string {
	for _, f := range folders {
		if f.Class == ClassSent {
			return f.Name
		}
	}
	return ""
}

// FolderStatus is the result of SELECT or STATUS.
type FolderStatus struct {
	UIDValidity uint32
	UIDNext     uint32
	NumMessages uint32
}

// Select opens a folder read-write and returns its status, tracking it as
// the currently selected mailbox for subsequent Fetch/Search/Store calls.
func (s *Session) Select(name string) (*FolderStatus, error) {
	data, err := s.client.Select(name, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	s.selected = name
	return &FolderStatus{UIDValidity: data.UIDValidity, UIDNext: uint32(data.UIDNext), NumMessages: data.NumMessages}, nil
}

// folderStatusWorkers bounds how many STATUS commands BulkStatus pipelines
// concurrently over one connection.
const folderStatusWorkers = 5

// BulkStatus runs STATUS for every named folder, fanned out across a bounded
// errgroup — the client pipelines commands over the single connection, so
// this is real wire-level concurrency, not separate sessions. One folder's
// failure doesn't abort the rest; it's just missing from the result map.
func (s *Session) BulkStatus(ctx context.Context, names []string) (map[string]*FolderStatus, error) {
	var mu sync.Mutex
	out := make(map[string]*FolderStatus, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(folderStatusWorkers)

	for _, name := range names {
		name := name
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			st, err := s.Status(name)
			if err != nil {
				s.log.Warn().Err(err).Str("folder", name).Msg("status failed, skipping folder")
				return nil
			}
			mu.Lock()
			out[name] = st
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Status fetches folder metadata without selecting it.
func (s *Session) Status(name string) (*FolderStatus, error) {
	options := &imap.StatusOptions{NumMessages: true, UIDNext: true, UIDValidity: true}
	data, err := s.client.Status(name, options).Wait()
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", name, err)
	}
	st := &FolderStatus{UIDValidity: data.UIDValidity, UIDNext: uint32(data.UIDNext)}
	if data.NumMessages != nil {
		st.NumMessages = *data.NumMessages
	}
	return st, nil
}
