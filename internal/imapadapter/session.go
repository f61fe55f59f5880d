// Package imapadapter is the sole collaborator that speaks IMAP (spec.md
// §6): RFC 3501 IMAP4rev1 plus SPECIAL-USE and X-GM-EXT-1 when advertised.
// Every other component reads and writes through internal/store; only this
// package touches the wire.
package imapadapter

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/rs/zerolog"
)

// Timeouts. ReadTimeout is generous because BODYSTRUCTURE and body-section
// fetches on large mailboxes take a while; WriteTimeout stays tight since
// commands are short.
const (
	ConnectTimeout = 30 * time.Second
	ReadTimeout    = 3 * time.Minute
	WriteTimeout   = 30 * time.Second
)

// deadlineConn enforces read/write deadlines on every I/O call, since
// go-imap v2 does not impose its own timeouts and a dead TCP socket would
// otherwise block a tick forever.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// Session wraps one authenticated IMAP connection for one account. Callers
// hold a Session for the duration of one task batch and release it; the
// worker never shares a Session across accounts or across goroutines.
type Session struct {
	creds      credentials.AccountCredentials
	client     *imapclient.Client
	caps       imap.CapSet
	selected   string
	log        zerolog.Logger
}

// Dial connects and authenticates. TLS is used directly on the configured
// port when creds.TLS is set; otherwise a plain connection is opened (used
// only for test servers, never recommended in practice).
func Dial(creds credentials.AccountCredentials) (*Session, error) {
	log := logging.WithComponent("imapadapter")
	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)
	options := &imapclient.Options{}

	dialer := &net.Dialer{Timeout: ConnectTimeout}

	var client *imapclient.Client
	if creds.TLS {
		tlsConfig := &tls.Config{ServerName: creds.Host}
		raw, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("dial tls: %w", err)
		}
		wrapped := &deadlineConn{Conn: raw, readTimeout: ReadTimeout, writeTimeout: WriteTimeout}
		client = imapclient.New(wrapped, options)
	} else {
		raw, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		wrapped := &deadlineConn{Conn: raw, readTimeout: ReadTimeout, writeTimeout: WriteTimeout}
		client = imapclient.New(wrapped, options)
	}

	if err := client.WaitGreeting(); err != nil {
		client.Close()
		return nil, fmt.Errorf("wait greeting: %w", err)
	}

	s := &Session{
		creds:  creds,
		client: client,
		caps:   client.Caps(),
		log:    log,
	}

	if err := s.login(); err != nil {
		client.Close()
		return nil, err
	}

	s.caps = client.Caps()
	log.Debug().Str("host", creds.Host).Strs("caps", capStrings(s.caps)).Msg("connected")
	return s, nil
}

func (s *Session) login() error {
	if s.caps.Has(imap.CapLoginDisabled) {
		saslClient := sasl.NewPlainClient("", s.creds.Email, s.creds.Password)
		if err := s.client.Authenticate(saslClient); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
		return nil
	}
	if err := s.client.Login(s.creds.Email, s.creds.Password).Wait(); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func capStrings(caps imap.CapSet) []string {
	out := make([]string, 0, len(caps))
	for c := range caps {
		out = append(out, string(c))
	}
	return out
}

// HasCap reports whether the server advertised a capability.
func (s *Session) HasCap(c imap.Cap) bool { return s.caps.Has(c) }

// SupportsGmailExt reports X-GM-EXT-1 (Gmail labels, All Mail, etc).
func (s *Session) SupportsGmailExt() bool { return s.caps.Has(imap.Cap("X-GM-EXT-1")) }

// Close logs out gracefully.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Logout().Wait(); err != nil {
		s.log.Warn().Err(err).Msg("logout failed, closing anyway")
	}
	return s.client.Close()
}

// ForceClose drops the connection without a graceful logout, for use when
// the connection is already known dead.
func (s *Session) ForceClose() {
	if s.client == nil {
		return
	}
	s.client.Close()
	s.client = nil
}
