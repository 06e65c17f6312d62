package capability

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ircsess/internal/buffer"
	"ircsess/internal/protocol"
	"ircsess/internal/session"
	"ircsess/util"
)

// Console drives a session from a line-oriented terminal: it reads
// commands from In and prints what arrives to Out.
type Console struct {
	In      io.Reader
	Out     io.Writer
	Logger  *util.Logger
	Version string // answered to CTCP VERSION
	NoColor bool

	// Now stamps printed lines; nil disables timestamps.
	Now func() time.Time

	mu     sync.Mutex
	target string
	nick   string
	st     styles
}

type styles struct {
	nick, self, channel, server, notice, action, errs, stamp lipgloss.Style
}

func newStyles(out io.Writer, plain bool) styles {
	r := lipgloss.NewRenderer(out)
	if plain {
		s := r.NewStyle()
		return styles{s, s, s, s, s, s, s, s}
	}
	return styles{
		nick:    r.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		self:    r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		channel: r.NewStyle().Foreground(lipgloss.Color("135")),
		server:  r.NewStyle().Foreground(lipgloss.Color("243")),
		notice:  r.NewStyle().Foreground(lipgloss.Color("214")),
		action:  r.NewStyle().Foreground(lipgloss.Color("212")).Italic(true),
		errs:    r.NewStyle().Foreground(lipgloss.Color("196")),
		stamp:   r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Target returns the channel or nick plain text is sent to.
func (c *Console) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *Console) setTarget(t string) {
	c.mu.Lock()
	c.target = t
	c.mu.Unlock()
}

// Attach subscribes the console to s.
func (c *Console) Attach(s *session.Session) {
	c.st = newStyles(c.Out, c.NoColor)
	c.nick = s.NickName()

	s.OnConnecting(func() {
		c.printf("%s", c.st.server.Render("-- connected to "+util.FormatAddr(s.Host(), s.Port())+", registering"))
	})
	s.OnConnected(func() {
		c.mu.Lock()
		c.nick = s.NickName()
		c.mu.Unlock()
		c.printf("%s", c.st.server.Render("-- registered as "+s.NickName()))
	})
	s.OnDisconnected(func() {
		c.printf("%s", c.st.errs.Render("-- disconnected"))
	})
	s.OnBufferRemoved(func(b buffer.Buffer) {
		if strings.EqualFold(c.Target(), b.Pattern()) {
			c.setTarget("")
		}
	})
	s.OnMessage(func(m protocol.Message) { c.onMessage(s, m) })
}

// onMessage runs on the session goroutine.
func (c *Console) onMessage(s *session.Session, m protocol.Message) {
	self := strings.EqualFold(m.Sender().Nick(), s.NickName())

	switch m := m.(type) {
	case *protocol.JoinMessage:
		if self {
			s.AddBuffer(m.Channel)
			c.setTarget(m.Channel)
		}
	case *protocol.PartMessage:
		if self {
			if b, ok := s.Buffer(m.Channel); ok {
				s.RemoveBuffer(b)
			}
		}
	case *protocol.KickMessage:
		if strings.EqualFold(m.User, s.NickName()) {
			if b, ok := s.Buffer(m.Channel); ok {
				s.RemoveBuffer(b)
			}
		}
	case *protocol.PrivateMessage:
		// open a query for whoever messages us directly
		if strings.EqualFold(m.Target, s.NickName()) {
			if _, ok := s.Buffer(m.Sender().Nick()); !ok {
				s.AddBuffer(m.Sender().Nick())
			}
		}
	case *protocol.CtcpRequestMessage:
		c.answerCtcp(s, m)
	}

	if line := c.render(m); line != "" {
		c.printf("%s", line)
	}
}

func (c *Console) answerCtcp(s *session.Session, m *protocol.CtcpRequestMessage) {
	nick := m.Sender().Nick()
	verb, arg, _ := strings.Cut(m.Request, " ")
	var reply string
	switch strings.ToUpper(verb) {
	case "VERSION":
		reply = "VERSION ircsess " + c.Version
	case "PING":
		reply = "PING " + arg
	case "TIME":
		reply = "TIME " + time.Now().Format(time.RFC1123Z)
	default:
		return
	}
	if err := s.SendMessage(protocol.CtcpReply(nick, reply)); err != nil {
		c.Logger.Warn("ctcp reply to %s: %v", nick, err)
	}
}

// render formats m for display; it returns "" for messages not worth
// showing. Every string that came from the network goes through
// printable before it is styled.
func (c *Console) render(m protocol.Message) string {
	st := c.st
	t := printable
	nick := func(p protocol.Prefix) string {
		c.mu.Lock()
		me := c.nick
		c.mu.Unlock()
		if strings.EqualFold(p.Nick(), me) {
			return st.self.Render(t(p.Nick()))
		}
		return st.nick.Render(t(p.Nick()))
	}
	where := func(target string) string {
		if isChannel(target) {
			return st.channel.Render(t(target)) + " "
		}
		return ""
	}
	channel := func(name string) string { return st.channel.Render(t(name)) }

	switch m := m.(type) {
	case *protocol.PrivateMessage:
		return where(m.Target) + "<" + nick(m.Prefix) + "> " + t(m.Text)
	case *protocol.CtcpActionMessage:
		return where(m.Target) + st.action.Render("* "+t(m.Prefix.Nick())+" "+t(m.Action))
	case *protocol.NoticeMessage:
		from := m.Prefix.Nick()
		if from == "" || m.Prefix.IsServer() {
			return st.server.Render("-" + t(string(m.Prefix)) + "- " + t(m.Text))
		}
		return where(m.Target) + st.notice.Render("-"+t(from)+"-") + " " + t(m.Text)
	case *protocol.CtcpRequestMessage:
		return st.server.Render("-- CTCP " + t(m.Request) + " from " + t(m.Prefix.Nick()))
	case *protocol.CtcpReplyMessage:
		return st.server.Render("-- CTCP reply from " + t(m.Prefix.Nick()) + ": " + t(m.Reply))
	case *protocol.JoinMessage:
		return st.server.Render("-->") + " " + nick(m.Prefix) + " joined " + channel(m.Channel)
	case *protocol.PartMessage:
		s := st.server.Render("<--") + " " + nick(m.Prefix) + " left " + channel(m.Channel)
		if m.Reason != "" {
			s += " (" + t(m.Reason) + ")"
		}
		return s
	case *protocol.KickMessage:
		s := st.errs.Render("<--") + " " + t(m.User) + " was kicked from " + channel(m.Channel) + " by " + nick(m.Prefix)
		if m.Reason != "" {
			s += " (" + t(m.Reason) + ")"
		}
		return s
	case *protocol.TopicMessage:
		return st.server.Render("--") + " " + nick(m.Prefix) + " set the topic of " + channel(m.Channel) + ": " + t(m.Topic)
	case *protocol.InviteMessage:
		return st.server.Render("--") + " " + nick(m.Prefix) + " invites you to " + channel(m.Channel)
	case *protocol.ChannelModeMessage:
		return st.server.Render(t("-- mode "+m.Channel+" "+strings.Join(append([]string{m.Mode}, m.Args...), " "))) + " by " + nick(m.Prefix)
	case *protocol.UserModeMessage:
		return st.server.Render(t("-- mode " + m.User + " " + m.Mode))
	case *protocol.NumericMessage:
		return c.renderNumeric(m)
	}
	return st.server.Render(t(m.String()))
}

func (c *Console) renderNumeric(m *protocol.NumericMessage) string {
	// the first argument is our own nick
	args := make([]string, 0, len(m.Args))
	for i, a := range m.Args {
		if i > 0 {
			args = append(args, printable(a))
		}
	}
	text := strings.Join(args, " ")

	switch {
	case m.Code == protocol.RplNamReply && len(args) >= 3:
		return c.st.channel.Render(args[1]) + " users: " + args[2]
	case m.Code == protocol.RplEndOfNames:
		return ""
	case m.Code == protocol.RplTopic && len(args) >= 2:
		return c.st.server.Render("-- topic of") + " " + c.st.channel.Render(args[0]) + ": " + args[1]
	case m.Code >= 400 && m.Code < 600:
		return c.st.errs.Render(strconv.Itoa(m.Code) + " " + text)
	}
	return c.st.server.Render(text)
}

// ircFormatting are the mIRC formatting codes left in place: bold,
// colour, hex colour, reset, monospace, reverse, italic, strikethrough
// and underline.
const ircFormatting = "\x02\x03\x04\x0f\x11\x16\x1d\x1e\x1f"

// printable drops C0 and C1 control characters other than the IRC
// formatting codes, so remote text cannot drive the terminal. Tabs
// become spaces.
func printable(s string) string {
	clean := func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 0x20 && strings.ContainsRune(ircFormatting, r):
			return r
		case r < 0x20, r == 0x7f, r >= 0x80 && r <= 0x9f:
			return -1
		}
		return r
	}
	for _, r := range s {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			return strings.Map(clean, s)
		}
	}
	return s
}

func (c *Console) printf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if c.Now != nil {
		line = c.st.stamp.Render(c.Now().Format("15:04")) + " " + line
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, line)
}

// Handle reads console lines until In is exhausted or the user quits.
func (c *Console) Handle(ctx context.Context, s *session.Session) error {
	return util.ReadLines(ctx, c.In, func(line string) error {
		cmd, err := parseInput(line, c.Target())
		if err != nil {
			c.printf("%s", c.st.errs.Render("!! "+err.Error()))
			return nil
		}
		if cmd.target != "" {
			c.setTarget(cmd.target)
			err = send(ctx, s, func() error {
				if _, ok := s.Buffer(cmd.target); !ok {
					s.AddBuffer(cmd.target)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		switch {
		case cmd.raw != "":
			err = send(ctx, s, func() error { return s.Raw(cmd.raw) })
		case cmd.msg != nil:
			err = send(ctx, s, func() error { return s.SendMessage(cmd.msg) })
			if err == nil {
				c.echo(cmd.msg)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.printf("%s", c.st.errs.Render("!! "+err.Error()))
		}
		if cmd.quit {
			return ErrQuit
		}
		return nil
	})
}

// echo prints our own chat lines; servers do not send them back.
func (c *Console) echo(m protocol.Message) {
	c.mu.Lock()
	me := protocol.Prefix(c.nick)
	c.mu.Unlock()

	switch m := m.(type) {
	case *protocol.PrivateMessage:
		echoed := *m
		echoed.Prefix = me
		c.printf("%s", c.render(&echoed))
	case *protocol.CtcpActionMessage:
		echoed := *m
		echoed.Prefix = me
		c.printf("%s", c.render(&echoed))
	}
}
