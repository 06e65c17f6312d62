package capability

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"ircsess/internal/session"
	"ircsess/internal/transport"
	"ircsess/util"
)

// ── fixtures ─────────────────────────────────────────────────────────

// pipeTransport records writes; it is safe to read after Run stops.
type pipeTransport struct {
	mu      sync.Mutex
	events  chan transport.Event
	written bytes.Buffer
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{events: make(chan transport.Event, 16)}
}

func (p *pipeTransport) ConnectToHost(string, int)      {}
func (p *pipeTransport) Disconnect()                    {}
func (p *pipeTransport) Events() <-chan transport.Event { return p.events }
func (p *pipeTransport) State() transport.State         { return transport.StateConnected }
func (p *pipeTransport) Close() error                   { return nil }
func (p *pipeTransport) Write(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written.Write(b)
	return nil
}

func (p *pipeTransport) lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := strings.TrimSuffix(p.written.String(), "\r\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\r\n")
}

func newSession(t *testing.T) (*session.Session, *pipeTransport) {
	t.Helper()
	s, err := session.New(session.Options{Logger: util.NewLogger(0)})
	if err != nil {
		t.Fatal(err)
	}
	p := newPipeTransport()
	s.SetTransport(p)
	s.SetHost("irc.example.net")
	s.SetUserName("gopher")
	s.SetNickName("gopher")
	s.SetRealName("Go Pher")
	t.Cleanup(func() { s.Shutdown() }) //nolint:errcheck
	return s, p
}

func data(line string) transport.Event {
	return transport.Event{Kind: transport.EventData, Data: []byte(line + "\r\n")}
}

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

// ── parseInput ───────────────────────────────────────────────────────

func TestParseInput(t *testing.T) {
	tests := []struct {
		line   string
		target string
		want   string // wire form of the resulting message
		raw    string
		newTgt string
		quit   bool
		err    bool
	}{
		{line: "hello there", target: "#go", want: "PRIVMSG #go :hello there"},
		{line: "//slash", target: "#go", want: "PRIVMSG #go :/slash"},
		{line: "hello", target: "", err: true},
		{line: "/join #go-nuts", want: "JOIN #go-nuts"},
		{line: "/j #secret key", want: "JOIN #secret key"},
		{line: "/join", err: true},
		{line: "/part", target: "#go", want: "PART #go"},
		{line: "/part #rust bye all", target: "#go", want: "PART #rust :bye all"},
		{line: "/part see you", target: "#go", want: "PART #go :see you"},
		{line: "/msg alice hi  there", want: "PRIVMSG alice :hi  there", newTgt: "alice"},
		{line: "/query bob", newTgt: "bob"},
		{line: "/me waves", target: "#go", want: "PRIVMSG #go :\x01ACTION waves\x01"},
		{line: "/notice bob ping", want: "NOTICE bob :ping"},
		{line: "/topic", target: "#go", want: "TOPIC #go"},
		{line: "/topic #go new topic", want: "TOPIC #go :new topic"},
		{line: "/names", target: "#go", want: "NAMES #go"},
		{line: "/list", want: "LIST"},
		{line: "/invite carol", target: "#go", want: "INVITE carol #go"},
		{line: "/kick #go dave spam", want: "KICK #go dave spam"},
		{line: "/mode #go +o alice", want: "MODE #go +o alice"},
		{line: "/mode gopher +i", want: "MODE gopher +i"},
		{line: "/who #go", want: "WHO #go"},
		{line: "/whois alice", want: "WHOIS alice"},
		{line: "/whowas alice", want: "WHOWAS alice"},
		{line: "/nick gopher2", want: "NICK gopher2"},
		{line: "/raw CAP LS 302", raw: "CAP LS 302"},
		{line: "/quit gone fishing", want: "QUIT :gone fishing", quit: true},
		{line: "/QUIT", want: "QUIT", quit: true},
		{line: "/frobnicate", err: true},
		{line: ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := parseInput(tt.line, tt.target)
			if (err != nil) != tt.err {
				t.Fatalf("err = %v, wantErr %v", err, tt.err)
			}
			if err != nil {
				return
			}
			got := ""
			if cmd.msg != nil {
				got = cmd.msg.String()
			}
			if got != tt.want {
				t.Errorf("msg = %q, want %q", got, tt.want)
			}
			if cmd.raw != tt.raw || cmd.target != tt.newTgt || cmd.quit != tt.quit {
				t.Errorf("cmd = %+v", cmd)
			}
		})
	}
}

// ── Console ──────────────────────────────────────────────────────────

func TestConsole_Render(t *testing.T) {
	s, p := newSession(t)
	var out bytes.Buffer
	c := &Console{Out: &out, NoColor: true, Logger: util.NewLogger(0), Version: "test"}
	c.Attach(s)

	s.HandleEvent(transport.Event{Kind: transport.EventConnected})
	for _, line := range []string{
		":irc.example.net 001 gopher :Welcome to the network",
		":gopher!g@h JOIN #go",
		":alice!a@h PRIVMSG #go :hi gopher",
		":alice!a@h PRIVMSG #go :\x01ACTION waves\x01",
		":irc.example.net 353 gopher = #go :gopher alice",
		":irc.example.net 433 gopher bob :Nickname is already in use",
		":bob!b@h PRIVMSG gopher :\x01VERSION\x01",
		":bob!b@h PRIVMSG gopher :psst",
	} {
		s.HandleEvent(data(line))
	}

	got := out.String()
	for _, want := range []string{
		"-- registered as gopher",
		"--> gopher joined #go",
		"#go <alice> hi gopher",
		"#go * alice waves",
		"#go users: gopher alice",
		"433 bob Nickname is already in use",
		"-- CTCP VERSION from bob",
		"<bob> psst",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if c.Target() != "#go" {
		t.Errorf("Target = %q, want #go after our own JOIN", c.Target())
	}
	if _, ok := s.Buffer("#GO"); !ok {
		t.Error("self JOIN should add a buffer")
	}
	if _, ok := s.Buffer("bob"); !ok {
		t.Error("a private message should open a query buffer")
	}
	if !contains(p.lines(), "NOTICE bob :\x01VERSION ircsess test\x01") {
		t.Errorf("CTCP VERSION not answered: %q", p.lines())
	}
}

func TestConsole_StripsControlBytes(t *testing.T) {
	s, _ := newSession(t)
	var out bytes.Buffer
	c := &Console{Out: &out, NoColor: true, Logger: util.NewLogger(0)}
	c.Attach(s)

	s.HandleEvent(transport.Event{Kind: transport.EventConnected})
	s.HandleEvent(data(":mallory!m@h PRIVMSG #go :\x1b]0;owned\x07\x1b[2Jhi \x02bold\x02\u009b31m"))
	s.HandleEvent(data(":irc.example.net 404 gopher #go :Cannot send\x1b[5m"))

	got := out.String()
	if strings.ContainsAny(got, "\x1b\x07\u009b") {
		t.Fatalf("control bytes reached the terminal: %q", got)
	}
	if !strings.Contains(got, "<mallory> ]0;owned[2Jhi \x02bold\x0231m") {
		t.Errorf("text mangled: %q", got)
	}
}

func TestPrintable(t *testing.T) {
	tests := map[string]string{
		"plain text":               "plain text",
		"a\tb":                     "a b",
		"\x03" + "4red\x0f normal": "\x034red\x0f normal",
		"bell\x07":                 "bell",
		"esc\x1b[0m":               "esc[0m",
		"del\x7f":                  "del",
		"caf\u00e9":                "caf\u00e9",
	}
	for in, want := range tests {
		if got := printable(in); got != want {
			t.Errorf("printable(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConsole_PartRemovesBuffer(t *testing.T) {
	s, _ := newSession(t)
	c := &Console{Out: &bytes.Buffer{}, NoColor: true, Logger: util.NewLogger(0)}
	c.Attach(s)

	s.HandleEvent(transport.Event{Kind: transport.EventConnected})
	s.HandleEvent(data(":gopher!g@h JOIN #go"))
	s.HandleEvent(data(":gopher!g@h PART #go :later"))

	if _, ok := s.Buffer("#go"); ok {
		t.Error("buffer should be removed after our own PART")
	}
	if c.Target() != "" {
		t.Errorf("Target = %q, want cleared", c.Target())
	}
}

func TestConsole_Timestamps(t *testing.T) {
	s, _ := newSession(t)
	var out bytes.Buffer
	c := &Console{
		Out:     &out,
		NoColor: true,
		Logger:  util.NewLogger(0),
		Now:     func() time.Time { return time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC) },
	}
	c.Attach(s)
	s.HandleEvent(data(":alice!a@h PRIVMSG #go :hi"))

	if !strings.HasPrefix(out.String(), "09:05 ") {
		t.Errorf("output = %q, want a 09:05 stamp", out.String())
	}
}

func TestConsole_Handle(t *testing.T) {
	s, p := newSession(t)
	var out bytes.Buffer
	c := &Console{
		In:      strings.NewReader("/msg #go hello\nplain text\n/bogus\n/raw PING :x\n/quit bye\nnever sent\n"),
		Out:     &out,
		NoColor: true,
		Logger:  util.NewLogger(0),
	}
	c.Attach(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }() //nolint:errcheck

	err := c.Handle(ctx, s)
	cancel()
	<-done

	if !errors.Is(err, ErrQuit) {
		t.Fatalf("Handle = %v, want ErrQuit", err)
	}
	want := []string{
		"PRIVMSG #go :hello",
		"PRIVMSG #go :plain text",
		"PING :x",
		"QUIT bye",
	}
	got := p.lines()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sent %q, want %q", got, want)
	}
	if !strings.Contains(out.String(), "unknown command /bogus") {
		t.Errorf("output = %q, want an unknown-command error", out.String())
	}
	if !strings.Contains(out.String(), "#go <gopher> plain text") {
		t.Errorf("own line not echoed: %q", out.String())
	}
	if _, ok := s.Buffer("#go"); !ok {
		t.Error("/msg should open a buffer for its target")
	}
}

func TestConsole_HandleEOF(t *testing.T) {
	s, _ := newSession(t)
	c := &Console{In: strings.NewReader(""), Out: &bytes.Buffer{}, NoColor: true, Logger: util.NewLogger(0)}
	c.Attach(s)
	if err := c.Handle(context.Background(), s); err != nil {
		t.Fatalf("Handle on empty input = %v, want nil", err)
	}
}

// ── Exec ─────────────────────────────────────────────────────────────

func TestExec_Bridge(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	s, p := newSession(t)
	e := &Exec{
		Command: `read line; echo "PRIVMSG #bots :got ${line%% *}"`,
		Logger:  util.NewLogger(0),
		Stderr:  &bytes.Buffer{},
	}
	e.Attach(s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	runCtx, stop := context.WithCancel(ctx)
	go func() { s.Run(runCtx); close(done) }() //nolint:errcheck

	if err := s.Do(ctx, func() { s.HandleEvent(data(":alice!a@h PRIVMSG #bots :!ping")) }); err != nil {
		t.Fatal(err)
	}
	if err := e.Handle(ctx, s); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	stop()
	<-done

	if !contains(p.lines(), "PRIVMSG #bots :got :alice!a@h") {
		t.Errorf("sent %q", p.lines())
	}
}

func TestExec_NoCommand(t *testing.T) {
	s, _ := newSession(t)
	e := &Exec{Logger: util.NewLogger(0)}
	e.Attach(s)
	if err := e.Handle(context.Background(), s); err == nil {
		t.Fatal("expected error without a command")
	}
}

func TestExec_ChildFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	s, _ := newSession(t)
	e := &Exec{Command: "exit 3", Logger: util.NewLogger(0), Stderr: &bytes.Buffer{}}
	e.Attach(s)
	if err := e.Handle(context.Background(), s); err == nil {
		t.Fatal("expected the child's exit status as an error")
	}
}
