// Package mailer is the SMTP send path spec.md §1 names as an external
// collaborator ("out of scope... specified only at their interface with the
// core"): the action queue's Send action only depends on the Mailer
// interface below, never on a concrete SMTP stack.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Message is one outgoing email, already carrying the Message-Id the action
// queue generated when the Send action was enqueued — the idempotency guard
// spec.md §4.11 requires survives retries across dispatch attempts.
type Message struct {
	MessageID  string
	From       string
	To         []string
	Cc         []string
	Subject    string
	BodyText   string
	BodyHTML   string
	InReplyTo  string
	References string
	Date       time.Time
}

// Mailer delivers a composed message over SMTP.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NoopMailer rejects every send with an error, used when no outgoing relay
// is configured for an account (Send actions stay pending/failed rather than succeeding
// silently — callers should check configuration before enqueuing one).
type NoopMailer struct{}

func (NoopMailer) Send(context.Context, Message) error {
	return fmt.Errorf("mailer: no SMTP relay configured")
}

// SMTPConfig is the submission endpoint for one account, the SMTP-side
// analogue of credentials.AccountCredentials.
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
}

// SMTPMailer sends mail through an SMTP submission server using PLAIN auth
// over go-smtp, the same wire library the teacher's retrieval pack uses for
// outbound delivery (themadorg-madmail's remote target).
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)

	var c *smtp.Client
	var err error
	if m.cfg.TLS {
		c, err = smtp.DialTLS(addr, &tls.Config{ServerName: m.cfg.Host})
	} else {
		c, err = smtp.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer c.Close()

	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(msg.From, nil); err != nil {
		return fmt.Errorf("mail from %s: %w", msg.From, err)
	}
	for _, addr := range append(append([]string{}, msg.To...), msg.Cc...) {
		if err := c.Rcpt(addr, nil); err != nil {
			return fmt.Errorf("rcpt to %s: %w", addr, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(Compose(msg)); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	return w.Close()
}

// Compose renders a Message as an RFC 5322 document with the headers the
// action queue and conversation threading both care about: Message-Id for
// the send guard, In-Reply-To/References so the reply lands in the same
// conversation once incremental_sync picks it back up from Sent.
func Compose(msg Message) []byte {
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-Id: %s\r\n", msg.MessageID)
	if msg.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", msg.InReplyTo)
	}
	if msg.References != "" {
		fmt.Fprintf(&b, "References: %s\r\n", msg.References)
	}
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.BodyHTML != "" {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(msg.BodyHTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.BodyText)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// NewMessageID mints an RFC 5322 Message-Id, the value the action queue
// stores on a Send row before the first dispatch attempt so retries and the
// idempotency guard both reference a stable id.
func NewMessageID(fromAddress string) string {
	domain := fromAddress
	if i := strings.IndexByte(fromAddress, '@'); i >= 0 {
		domain = fromAddress[i+1:]
	}
	return fmt.Sprintf("<%d.%d@%s>", time.Now().UnixNano(), time.Now().Unix(), domain)
}
