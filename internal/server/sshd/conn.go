package sshd

import (
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/ssh"
)

// termConn adapts a raw SSH channel to the line-oriented Conn the session
// layer consumes. A single reader goroutine echoes input and assembles
// lines, handling backspace, Ctrl+U (kill line), Ctrl+C (interrupt) and
// Ctrl+D (end of input on an empty line).
type termConn struct {
	ch       ssh.Channel
	remoteIP string

	lines      chan string
	interrupts chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newTermConn(ch ssh.Channel, remoteIP string) *termConn {
	t := &termConn{
		ch:         ch,
		remoteIP:   remoteIP,
		lines:      make(chan string, 4),
		interrupts: make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *termConn) Lines() <-chan string { return t.lines }

func (t *termConn) Interrupts() <-chan struct{} { return t.interrupts }

func (t *termConn) RemoteIP() string { return t.remoteIP }

// Write sends a frame, converting bare newlines to CRLF for the raw
// terminal.
func (t *termConn) Write(s string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.ch.Write([]byte(strings.ReplaceAll(s, "\n", "\r\n")))
	return err
}

func (t *termConn) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.ch.Close()
	})
	return err
}

func (t *termConn) echo(s string) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, _ = t.ch.Write([]byte(s))
}

func (t *termConn) emit(line string) bool {
	select {
	case t.lines <- line:
		return true
	case <-t.closed:
		return false
	}
}

func (t *termConn) readLoop() {
	defer close(t.lines)

	var line []byte
	var buf [256]byte
	lastCR := false

	for {
		n, err := t.ch.Read(buf[:])
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			wasCR := lastCR
			lastCR = false

			switch b {
			case '\r', '\n':
				if b == '\n' && wasCR {
					continue // second half of CRLF
				}
				lastCR = b == '\r'
				t.echo("\r\n")
				if !t.emit(string(line)) {
					return
				}
				line = line[:0]

			case 0x03: // Ctrl+C
				t.echo("^C\r\n")
				line = line[:0]
				select {
				case t.interrupts <- struct{}{}:
				default:
				}

			case 0x04: // Ctrl+D
				if len(line) == 0 {
					return
				}

			case 0x7f, 0x08: // backspace
				if len(line) > 0 {
					_, size := utf8.DecodeLastRune(line)
					line = line[:len(line)-size]
					t.echo("\b \b")
				}

			case 0x15: // Ctrl+U
				for len(line) > 0 {
					_, size := utf8.DecodeLastRune(line)
					line = line[:len(line)-size]
					t.echo("\b \b")
				}

			default:
				if b >= 0x20 {
					line = append(line, b)
					t.echo(string([]byte{b}))
				}
			}
		}
	}
}
