package mailer

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"time"
)

// ProtocolError reports an unexpected response code in the submission dialog.
// It aborts the single message being sent; already-recorded state elsewhere
// is not rolled back.
type ProtocolError struct {
	Command string
	Want    string
	Line    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mail dialog: %s expected %s, server said %q", e.Command, e.Want, e.Line)
}

// Params holds the submission endpoint and credentials, injected from
// environment configuration at process start.
type Params struct {
	Host     string
	Port     int
	Username string
	Password string

	// StepTimeout bounds each read/write in the dialog so a stalled peer
	// cannot hang a dispatch forever. Zero means 30 seconds.
	StepTimeout time.Duration
}

// Sender delivers one formatted message. The dispatcher depends on this
// interface; tests substitute a recording fake.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client speaks a minimal mail-submission dialog directly over the transport:
//
//	connect → 220 greeting → EHLO → AUTH LOGIN → MAIL FROM → RCPT TO →
//	DATA → message + "." → QUIT
//
// The connection is TLS-direct when the port is the implicit-TLS port (465),
// plaintext otherwise; no STARTTLS upgrade is attempted. Responses are read
// line-buffered under a per-step deadline, with multi-line continuations
// consumed up to the terminal line.
type Client struct {
	params Params
	now    func() time.Time
}

func NewClient(params Params) *Client {
	if params.StepTimeout == 0 {
		params.StepTimeout = 30 * time.Second
	}
	return &Client{params: params, now: time.Now}
}

const implicitTLSPort = 465

// Send composes and delivers msg, failing with a descriptive error on any
// unexpected response code. The connection is closed on every exit path.
func (c *Client) Send(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", c.params.Host, c.params.Port)

	dialer := &net.Dialer{Timeout: c.params.StepTimeout}
	var (
		conn net.Conn
		err  error
	)
	if c.params.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: c.params.Host},
		}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	s := &session{conn: conn, reader: bufio.NewReader(conn), timeout: c.params.StepTimeout, ctx: ctx}

	if err := s.expect("connect", "220"); err != nil {
		return err
	}
	if err := s.exchange("EHLO donation-gateway", "250"); err != nil {
		return err
	}
	if err := s.exchange("AUTH LOGIN", "334"); err != nil {
		return err
	}
	if err := s.exchangeSecret("username", base64.StdEncoding.EncodeToString([]byte(c.params.Username)), "334"); err != nil {
		return err
	}
	if err := s.exchangeSecret("password", base64.StdEncoding.EncodeToString([]byte(c.params.Password)), "235"); err != nil {
		return err
	}
	if err := s.exchange(fmt.Sprintf("MAIL FROM:<%s>", msg.From), "250"); err != nil {
		return err
	}
	if err := s.exchange(fmt.Sprintf("RCPT TO:<%s>", msg.To), "250"); err != nil {
		return err
	}
	if err := s.exchange("DATA", "354"); err != nil {
		return err
	}

	data := compose(msg, c.now()) + "\r\n.\r\n"
	if err := s.writeRaw(data); err != nil {
		return err
	}
	if err := s.expect("message body", "250"); err != nil {
		return err
	}

	// Best-effort goodbye; delivery is already accepted at this point.
	_ = s.writeRaw("QUIT\r\n")
	return nil
}

var _ Sender = (*Client)(nil)

// session carries the per-connection dialog state.
type session struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	ctx     context.Context
}

// deadline arms the per-step deadline, clamped to the context's own deadline
// when the context expires sooner.
func (s *session) deadline() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	d := time.Now().Add(s.timeout)
	if ctxDeadline, ok := s.ctx.Deadline(); ok && ctxDeadline.Before(d) {
		d = ctxDeadline
	}
	return s.conn.SetDeadline(d)
}

// exchange writes one command line and waits for the expected reply code.
func (s *session) exchange(command, wantCode string) error {
	if err := s.writeRaw(command + "\r\n"); err != nil {
		return err
	}
	return s.expect(command, wantCode)
}

// exchangeSecret is exchange with the transmitted line kept out of errors,
// so credentials never leak into logs.
func (s *session) exchangeSecret(label, line, wantCode string) error {
	if err := s.writeRaw(line + "\r\n"); err != nil {
		return err
	}
	return s.expect("AUTH LOGIN "+label, wantCode)
}

func (s *session) writeRaw(data string) error {
	if err := s.deadline(); err != nil {
		return err
	}
	if _, err := s.conn.Write([]byte(data)); err != nil {
		return fmt.Errorf("mail dialog write: %w", err)
	}
	return nil
}

// expect reads reply lines until the terminal one ("<code> text" rather than
// "<code>-text") and checks the code. EHLO capability listings arrive as
// multi-line 250 replies; every other step is single-line in practice, but
// the loop costs nothing.
func (s *session) expect(command, wantCode string) error {
	for {
		if err := s.deadline(); err != nil {
			return err
		}
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("mail dialog read after %s: %w", command, err)
		}
		line = strings.TrimRight(line, "\r\n")

		if len(line) < 3 {
			return &ProtocolError{Command: command, Want: wantCode, Line: line}
		}
		code := line[:3]
		if len(line) > 3 && line[3] == '-' {
			if code != wantCode {
				return &ProtocolError{Command: command, Want: wantCode, Line: line}
			}
			continue // continuation line, keep reading
		}
		if code != wantCode {
			return &ProtocolError{Command: command, Want: wantCode, Line: line}
		}
		return nil
	}
}
