package modem

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTimeout       = errors.New("modem: timed out waiting for response")
	ErrCommandFailed = errors.New("modem: command returned ERROR")
)

// CMSError is a "+CMS ERROR: <n>" (message service) or "+CME ERROR: <n>"
// (equipment) final result.
type CMSError struct {
	Code      int
	Equipment bool
}

func (e *CMSError) Error() string {
	if e.Equipment {
		return fmt.Sprintf("modem: +CME ERROR %d", e.Code)
	}
	return fmt.Sprintf("modem: +CMS ERROR %d", e.Code)
}

// atConn speaks the AT command protocol over a port whose reads return 0, nil
// when the read timeout expires.
type atConn struct {
	rw  io.ReadWriter
	buf []byte
	now func() time.Time
}

func newATConn(rw io.ReadWriter) *atConn {
	return &atConn{rw: rw, now: time.Now}
}

func (c *atConn) fill(deadline time.Time) error {
	tmp := make([]byte, 256)
	for {
		n, err := c.rw.Read(tmp)
		if n > 0 {
			c.buf = append(c.buf, tmp[:n]...)
			return nil
		}
		if err != nil {
			return err
		}
		if !c.now().Before(deadline) {
			return ErrTimeout
		}
	}
}

// nextLine returns the next non-empty line with CR/LF stripped.
func (c *atConn) nextLine(deadline time.Time) (string, error) {
	for {
		if i := bytes.IndexByte(c.buf, '\n'); i >= 0 {
			line := strings.TrimSpace(string(c.buf[:i]))
			c.buf = c.buf[i+1:]
			if line != "" {
				return line, nil
			}
			continue
		}
		if err := c.fill(deadline); err != nil {
			return "", err
		}
	}
}

// waitPrompt consumes input up to and including the "> " PDU prompt.
func (c *atConn) waitPrompt(deadline time.Time) error {
	for {
		if i := bytes.IndexByte(c.buf, '>'); i >= 0 {
			before := string(c.buf[:i])
			c.buf = c.buf[i+1:]
			if err := finalError(strings.TrimSpace(before)); err != nil {
				return err
			}
			return nil
		}
		for _, line := range strings.Split(string(c.buf), "\n") {
			if err := finalError(strings.TrimSpace(line)); err != nil {
				c.buf = nil
				return err
			}
		}
		if err := c.fill(deadline); err != nil {
			return err
		}
	}
}

// command sends cmd and collects intermediate lines up to the final result.
func (c *atConn) command(cmd string, timeout time.Duration) ([]string, error) {
	c.buf = nil
	if _, err := io.WriteString(c.rw, cmd+"\r"); err != nil {
		return nil, err
	}
	deadline := c.now().Add(timeout)
	var lines []string
	for {
		line, err := c.nextLine(deadline)
		if err != nil {
			return lines, fmt.Errorf("%s: %w", cmd, err)
		}
		switch {
		case line == cmd:
			continue
		case line == "OK":
			return lines, nil
		}
		if err := finalError(line); err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}

// submit runs AT+CMGS for pdu and returns the message reference.
func (c *atConn) submit(pdu SubmitPDU, timeout time.Duration) (int, error) {
	c.buf = nil
	cmd := "AT+CMGS=" + strconv.Itoa(pdu.TPDULen)
	if _, err := io.WriteString(c.rw, cmd+"\r"); err != nil {
		return 0, err
	}
	deadline := c.now().Add(timeout)
	if err := c.waitPrompt(deadline); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(c.rw, pdu.Hex+"\x1a"); err != nil {
		return 0, err
	}

	ref := -1
	for {
		line, err := c.nextLine(deadline)
		if err != nil {
			return 0, err
		}
		switch {
		case strings.HasPrefix(line, "+CMGS:"):
			ref, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "+CMGS:")))
		case line == "OK":
			if ref < 0 {
				return 0, errors.New("modem: OK without +CMGS reference")
			}
			return ref, nil
		default:
			if err := finalError(line); err != nil {
				return 0, err
			}
		}
	}
}

// finalError maps an error final result line; other lines return nil.
func finalError(line string) error {
	switch {
	case line == "ERROR":
		return ErrCommandFailed
	case strings.HasPrefix(line, "+CMS ERROR:"):
		return &CMSError{Code: parseCode(strings.TrimPrefix(line, "+CMS ERROR:"))}
	case strings.HasPrefix(line, "+CME ERROR:"):
		return &CMSError{Code: parseCode(strings.TrimPrefix(line, "+CME ERROR:")), Equipment: true}
	}
	return nil
}

func parseCode(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return -1
	}
	return n
}
