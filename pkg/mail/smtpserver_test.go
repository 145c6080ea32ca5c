package mail

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
)

type capturedMail struct {
	From string
	To   []string
	Data string
}

// Subject returns the Subject header of the captured message.
func (m capturedMail) Subject() string {
	for _, line := range strings.Split(m.Data, "\r\n") {
		if strings.HasPrefix(line, "Subject: ") {
			return strings.TrimPrefix(line, "Subject: ")
		}
	}
	return ""
}

// testSMTPServer is a minimal SMTP relay on a random port. It implements
// only the commands gomail issues and records every accepted message.
type testSMTPServer struct {
	host string
	port int

	ln         net.Listener
	rejectRcpt bool

	mu          sync.Mutex
	mails       []capturedMail
	connections int

	wg sync.WaitGroup
}

func startTestSMTPServer(t *testing.T, rejectRcpt bool) *testSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &testSMTPServer{
		host:       "127.0.0.1",
		port:       ln.Addr().(*net.TCPAddr).Port,
		ln:         ln,
		rejectRcpt: rejectRcpt,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.connections++
			s.mu.Unlock()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serve(conn)
			}()
		}
	}()

	t.Cleanup(s.stop)
	return s
}

func (s *testSMTPServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")

	var current capturedMail
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "EHLO") || strings.HasPrefix(line, "HELO"):
			fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
		case strings.HasPrefix(line, "MAIL FROM:"):
			current = capturedMail{From: addrArg(line)}
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "RCPT TO:"):
			if s.rejectRcpt {
				fmt.Fprintf(conn, "550 5.1.1 Mailbox unavailable\r\n")
				continue
			}
			current.To = append(current.To, addrArg(line))
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "DATA"):
			fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
			var data strings.Builder
			for {
				dline, derr := r.ReadString('\n')
				if derr != nil {
					return
				}
				if strings.TrimSpace(dline) == "." {
					break
				}
				data.WriteString(dline)
			}
			current.Data = data.String()
			s.mu.Lock()
			s.mails = append(s.mails, current)
			s.mu.Unlock()
			fmt.Fprintf(conn, "250 OK: queued\r\n")
		case strings.HasPrefix(line, "QUIT"):
			fmt.Fprintf(conn, "221 Bye\r\n")
			return
		default:
			fmt.Fprintf(conn, "250 OK\r\n")
		}
	}
}

func (s *testSMTPServer) stop() {
	_ = s.ln.Close()
	s.wg.Wait()
}

func (s *testSMTPServer) received() []capturedMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedMail(nil), s.mails...)
}

func (s *testSMTPServer) connectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

func addrArg(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start < 0 || end < start {
		return ""
	}
	return line[start+1 : end]
}
