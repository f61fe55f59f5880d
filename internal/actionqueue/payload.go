package actionqueue

// FlagsPayload is the payload shape for add_flags/remove_flags rows.
type FlagsPayload struct {
	Folder string   `json:"folder"`
	UIDs   []uint32 `json:"uids"`
	Flags  []string `json:"flags"`
}

// MovePayload is the payload shape for move/copy rows.
type MovePayload struct {
	Folder     string   `json:"folder"`
	UIDs       []uint32 `json:"uids"`
	DestFolder string   `json:"dest_folder"`
}

// SendPayload is the payload shape for send rows. MessageID is minted by the
// caller at enqueue time (mailer.NewMessageID) so it survives every retry —
// the idempotency guard spec.md §4.11 requires.
type SendPayload struct {
	MessageID  string   `json:"message_id"`
	SentFolder string   `json:"sent_folder"`
	From       string   `json:"from"`
	To         []string `json:"to"`
	Cc         []string `json:"cc,omitempty"`
	Subject    string   `json:"subject"`
	BodyText   string   `json:"body_text"`
	BodyHTML   string   `json:"body_html,omitempty"`
	InReplyTo  string   `json:"in_reply_to,omitempty"`
	References string   `json:"references,omitempty"`
}
