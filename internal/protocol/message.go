package protocol

import (
	"fmt"
	"strconv"
	"strings"

	ircerr "ircsess/internal/errors"
)

// Type identifies a Message variant.
type Type int

const (
	TypeGeneric Type = iota
	TypeNumeric
	TypeJoin
	TypePart
	TypeTopic
	TypeNames
	TypeList
	TypeInvite
	TypeKick
	TypeChannelMode
	TypeUserMode
	TypePrivate
	TypeNotice
	TypeCtcpAction
	TypeCtcpRequest
	TypeCtcpReply
	TypeWho
	TypeWhois
	TypeWhowas
)

var typeNames = [...]string{
	TypeGeneric:     "generic",
	TypeNumeric:     "numeric",
	TypeJoin:        "join",
	TypePart:        "part",
	TypeTopic:       "topic",
	TypeNames:       "names",
	TypeList:        "list",
	TypeInvite:      "invite",
	TypeKick:        "kick",
	TypeChannelMode: "channel-mode",
	TypeUserMode:    "user-mode",
	TypePrivate:     "private",
	TypeNotice:      "notice",
	TypeCtcpAction:  "ctcp-action",
	TypeCtcpRequest: "ctcp-request",
	TypeCtcpReply:   "ctcp-reply",
	TypeWho:         "who",
	TypeWhois:       "whois",
	TypeWhowas:      "whowas",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// Message is a typed IRC message. Inbound messages are produced by
// Decode; outbound messages are built with the constructors in
// commands.go or by filling a variant struct directly.
type Message interface {
	Type() Type
	Sender() Prefix
	Command() string
	Params() []string
	String() string
}

// TargetOf returns the channel or nick a message is addressed to.
// Messages without a conversation target report false.
func TargetOf(m Message) (string, bool) {
	var t string
	switch m := m.(type) {
	case *JoinMessage:
		t = m.Channel
	case *PartMessage:
		t = m.Channel
	case *TopicMessage:
		t = m.Channel
	case *NamesMessage:
		t = m.Channel
	case *InviteMessage:
		t = m.Channel
	case *KickMessage:
		t = m.Channel
	case *ChannelModeMessage:
		t = m.Channel
	case *PrivateMessage:
		t = m.Target
	case *NoticeMessage:
		t = m.Target
	case *CtcpActionMessage:
		t = m.Target
	case *CtcpRequestMessage:
		t = m.Target
	case *CtcpReplyMessage:
		t = m.Target
	default:
		return "", false
	}
	return t, t != ""
}

// Format serialises a message as a wire line without the terminator.
// The last parameter is sent in trailing form when it has to be
// (empty, contains a space, or starts with ':').
func Format(m Message) string {
	return formatLine(m.Sender(), m.Command(), m.Params(), false)
}

func formatLine(prefix Prefix, command string, params []string, forceTrailing bool) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteByte(startPrefix)
		b.WriteString(string(prefix))
		b.WriteByte(delimParam)
	}
	b.WriteString(command)
	for i, p := range params {
		b.WriteByte(delimParam)
		if i == len(params)-1 && (forceTrailing || needsTrailing(p)) {
			b.WriteByte(startTrailing)
		}
		b.WriteString(p)
	}
	return b.String()
}

// CheckParams reports whether params fit on one line: none may hold
// CR, LF or NUL, and every parameter but the last must be non-empty,
// free of spaces and not start with ':'. Errors match
// errors.ErrInvalidLine.
func CheckParams(params []string) error {
	for i, p := range params {
		if strings.ContainsAny(p, lineBreakers) {
			return fmt.Errorf("%w: parameter %d holds a line break or NUL", ircerr.ErrInvalidLine, i+1)
		}
		if i < len(params)-1 && needsTrailing(p) {
			return fmt.Errorf("%w: middle parameter %d is %q", ircerr.ErrInvalidLine, i+1, p)
		}
	}
	return nil
}

// lineBreakers end or corrupt a line on the wire.
const lineBreakers = "\r\n\x00"

// CheckLine is CheckParams for a pre-formatted line.
func CheckLine(line string) error {
	if strings.ContainsAny(line, lineBreakers) {
		return fmt.Errorf("%w: %q holds a line break or NUL", ircerr.ErrInvalidLine, line)
	}
	return nil
}

func needsTrailing(p string) bool {
	return p == "" || strings.IndexByte(p, delimParam) >= 0 || p[0] == startTrailing
}

// trimEmpty drops trailing empty optional parameters so that an
// outbound message never ends in a meaningless ":".
func trimEmpty(params ...string) []string {
	n := len(params)
	for n > 0 && params[n-1] == "" {
		n--
	}
	return params[:n]
}

// ── generic ──────────────────────────────────────────────────────────

// GenericMessage carries any command verbatim. It is used for the
// registration and control commands (PASS, NICK, USER, PONG, QUIT)
// that have no dedicated variant.
type GenericMessage struct {
	Prefix Prefix
	Verb   string
	Args   []string

	// Trailing forces the last argument into trailing form.
	Trailing bool
}

func (m *GenericMessage) Type() Type       { return TypeGeneric }
func (m *GenericMessage) Sender() Prefix   { return m.Prefix }
func (m *GenericMessage) Command() string  { return strings.ToUpper(m.Verb) }
func (m *GenericMessage) Params() []string { return m.Args }
func (m *GenericMessage) String() string {
	return formatLine(m.Prefix, m.Command(), m.Args, m.Trailing)
}

// ── numeric ──────────────────────────────────────────────────────────

// NumericMessage is a three-digit server reply.
type NumericMessage struct {
	Prefix Prefix
	Code   int
	Args   []string
}

func numericFrom(prefix Prefix, command string, params Params) *NumericMessage {
	code, _ := strconv.Atoi(command)
	return &NumericMessage{Prefix: prefix, Code: code, Args: params.Rest(1)}
}

func (m *NumericMessage) Type() Type       { return TypeNumeric }
func (m *NumericMessage) Sender() Prefix   { return m.Prefix }
func (m *NumericMessage) Command() string  { return padNumeric(m.Code) }
func (m *NumericMessage) Params() []string { return m.Args }
func (m *NumericMessage) String() string   { return Format(m) }

func padNumeric(code int) string {
	s := strconv.Itoa(code)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// ── channel operations ───────────────────────────────────────────────

// JoinMessage reports (or requests) joining a channel.
type JoinMessage struct {
	Prefix  Prefix
	Channel string
	Key     string
}

func joinFrom(prefix Prefix, params Params) *JoinMessage {
	return &JoinMessage{Prefix: prefix, Channel: params.Get(1), Key: params.Get(2)}
}

func (m *JoinMessage) Type() Type       { return TypeJoin }
func (m *JoinMessage) Sender() Prefix   { return m.Prefix }
func (m *JoinMessage) Command() string  { return CmdJoin }
func (m *JoinMessage) Params() []string { return trimEmpty(m.Channel, m.Key) }
func (m *JoinMessage) String() string   { return Format(m) }

// PartMessage reports (or requests) leaving a channel.
type PartMessage struct {
	Prefix  Prefix
	Channel string
	Reason  string
}

func partFrom(prefix Prefix, params Params) *PartMessage {
	return &PartMessage{Prefix: prefix, Channel: params.Get(1), Reason: params.Get(2)}
}

func (m *PartMessage) Type() Type       { return TypePart }
func (m *PartMessage) Sender() Prefix   { return m.Prefix }
func (m *PartMessage) Command() string  { return CmdPart }
func (m *PartMessage) Params() []string { return trimEmpty(m.Channel, m.Reason) }
func (m *PartMessage) String() string   { return Format(m) }

// TopicMessage reports a topic change, or queries/sets a topic.
type TopicMessage struct {
	Prefix  Prefix
	Channel string
	Topic   string
}

func topicFrom(prefix Prefix, params Params) *TopicMessage {
	return &TopicMessage{Prefix: prefix, Channel: params.Get(1), Topic: params.Get(2)}
}

func (m *TopicMessage) Type() Type       { return TypeTopic }
func (m *TopicMessage) Sender() Prefix   { return m.Prefix }
func (m *TopicMessage) Command() string  { return CmdTopic }
func (m *TopicMessage) Params() []string { return trimEmpty(m.Channel, m.Topic) }
func (m *TopicMessage) String() string   { return Format(m) }

// NamesMessage requests the member list of a channel.
type NamesMessage struct {
	Prefix  Prefix
	Channel string
}

func namesFrom(prefix Prefix, params Params) *NamesMessage {
	return &NamesMessage{Prefix: prefix, Channel: params.Get(1)}
}

func (m *NamesMessage) Type() Type       { return TypeNames }
func (m *NamesMessage) Sender() Prefix   { return m.Prefix }
func (m *NamesMessage) Command() string  { return CmdNames }
func (m *NamesMessage) Params() []string { return trimEmpty(m.Channel) }
func (m *NamesMessage) String() string   { return Format(m) }

// ListMessage requests the channel list, optionally filtered.
type ListMessage struct {
	Prefix  Prefix
	Channel string
	Server  string
}

func listFrom(prefix Prefix, params Params) *ListMessage {
	return &ListMessage{Prefix: prefix, Channel: params.Get(1), Server: params.Get(2)}
}

func (m *ListMessage) Type() Type       { return TypeList }
func (m *ListMessage) Sender() Prefix   { return m.Prefix }
func (m *ListMessage) Command() string  { return CmdList }
func (m *ListMessage) Params() []string { return trimEmpty(m.Channel, m.Server) }
func (m *ListMessage) String() string   { return Format(m) }

// InviteMessage invites User to Channel.
type InviteMessage struct {
	Prefix  Prefix
	User    string
	Channel string
}

func inviteFrom(prefix Prefix, params Params) *InviteMessage {
	return &InviteMessage{Prefix: prefix, User: params.Get(1), Channel: params.Get(2)}
}

func (m *InviteMessage) Type() Type       { return TypeInvite }
func (m *InviteMessage) Sender() Prefix   { return m.Prefix }
func (m *InviteMessage) Command() string  { return CmdInvite }
func (m *InviteMessage) Params() []string { return []string{m.User, m.Channel} }
func (m *InviteMessage) String() string   { return Format(m) }

// KickMessage removes User from Channel.
type KickMessage struct {
	Prefix  Prefix
	Channel string
	User    string
	Reason  string
}

func kickFrom(prefix Prefix, params Params) *KickMessage {
	return &KickMessage{Prefix: prefix, Channel: params.Get(1), User: params.Get(2), Reason: params.Get(3)}
}

func (m *KickMessage) Type() Type       { return TypeKick }
func (m *KickMessage) Sender() Prefix   { return m.Prefix }
func (m *KickMessage) Command() string  { return CmdKick }
func (m *KickMessage) Params() []string { return trimEmpty(m.Channel, m.User, m.Reason) }
func (m *KickMessage) String() string   { return Format(m) }

// ── modes ────────────────────────────────────────────────────────────

// ChannelModeMessage reports or requests a channel mode change.
type ChannelModeMessage struct {
	Prefix  Prefix
	Channel string
	Mode    string
	Args    []string
}

func channelModeFrom(prefix Prefix, params Params) *ChannelModeMessage {
	return &ChannelModeMessage{Prefix: prefix, Channel: params.Get(1), Mode: params.Get(2), Args: params.Rest(3)}
}

func (m *ChannelModeMessage) Type() Type      { return TypeChannelMode }
func (m *ChannelModeMessage) Sender() Prefix  { return m.Prefix }
func (m *ChannelModeMessage) Command() string { return CmdMode }
func (m *ChannelModeMessage) Params() []string {
	if m.Mode == "" {
		return []string{m.Channel}
	}
	return append([]string{m.Channel, m.Mode}, m.Args...)
}
func (m *ChannelModeMessage) String() string { return Format(m) }

// UserModeMessage reports or requests a user mode change.
type UserModeMessage struct {
	Prefix Prefix
	User   string
	Mode   string
}

func userModeFrom(prefix Prefix, params Params) *UserModeMessage {
	return &UserModeMessage{Prefix: prefix, User: params.Get(1), Mode: params.Get(2)}
}

func (m *UserModeMessage) Type() Type       { return TypeUserMode }
func (m *UserModeMessage) Sender() Prefix   { return m.Prefix }
func (m *UserModeMessage) Command() string  { return CmdMode }
func (m *UserModeMessage) Params() []string { return trimEmpty(m.User, m.Mode) }
func (m *UserModeMessage) String() string   { return Format(m) }

// ── messages ─────────────────────────────────────────────────────────

// PrivateMessage is a PRIVMSG to a channel or nick.
type PrivateMessage struct {
	Prefix Prefix
	Target string
	Text   string
}

func privateFrom(prefix Prefix, params Params) *PrivateMessage {
	return &PrivateMessage{Prefix: prefix, Target: params.Get(1), Text: params.Get(2)}
}

func (m *PrivateMessage) Type() Type       { return TypePrivate }
func (m *PrivateMessage) Sender() Prefix   { return m.Prefix }
func (m *PrivateMessage) Command() string  { return CmdPrivmsg }
func (m *PrivateMessage) Params() []string { return []string{m.Target, m.Text} }
func (m *PrivateMessage) String() string   { return formatLine(m.Prefix, CmdPrivmsg, m.Params(), true) }

// NoticeMessage is a NOTICE to a channel or nick.
type NoticeMessage struct {
	Prefix Prefix
	Target string
	Text   string
}

func noticeFrom(prefix Prefix, params Params) *NoticeMessage {
	return &NoticeMessage{Prefix: prefix, Target: params.Get(1), Text: params.Get(2)}
}

func (m *NoticeMessage) Type() Type       { return TypeNotice }
func (m *NoticeMessage) Sender() Prefix   { return m.Prefix }
func (m *NoticeMessage) Command() string  { return CmdNotice }
func (m *NoticeMessage) Params() []string { return []string{m.Target, m.Text} }
func (m *NoticeMessage) String() string   { return formatLine(m.Prefix, CmdNotice, m.Params(), true) }

// ── CTCP ─────────────────────────────────────────────────────────────

const (
	ctcpDelim  = "\x01"
	ctcpAction = ctcpDelim + "ACTION "
)

func ctcpBody(text, lead string) string {
	return strings.TrimSuffix(strings.TrimPrefix(text, lead), ctcpDelim)
}

// CtcpActionMessage is a "/me" action, PRIVMSG with \x01ACTION ...\x01.
type CtcpActionMessage struct {
	Prefix Prefix
	Target string
	Action string
}

func ctcpActionFrom(prefix Prefix, params Params) *CtcpActionMessage {
	return &CtcpActionMessage{Prefix: prefix, Target: params.Get(1), Action: ctcpBody(params.Get(2), ctcpAction)}
}

func (m *CtcpActionMessage) Type() Type      { return TypeCtcpAction }
func (m *CtcpActionMessage) Sender() Prefix  { return m.Prefix }
func (m *CtcpActionMessage) Command() string { return CmdPrivmsg }
func (m *CtcpActionMessage) Params() []string {
	return []string{m.Target, ctcpAction + m.Action + ctcpDelim}
}
func (m *CtcpActionMessage) String() string {
	return formatLine(m.Prefix, CmdPrivmsg, m.Params(), true)
}

// CtcpRequestMessage is a CTCP query such as VERSION or PING, carried
// in a PRIVMSG.
type CtcpRequestMessage struct {
	Prefix  Prefix
	Target  string
	Request string
}

func ctcpRequestFrom(prefix Prefix, params Params) *CtcpRequestMessage {
	return &CtcpRequestMessage{Prefix: prefix, Target: params.Get(1), Request: ctcpBody(params.Get(2), ctcpDelim)}
}

func (m *CtcpRequestMessage) Type() Type      { return TypeCtcpRequest }
func (m *CtcpRequestMessage) Sender() Prefix  { return m.Prefix }
func (m *CtcpRequestMessage) Command() string { return CmdPrivmsg }
func (m *CtcpRequestMessage) Params() []string {
	return []string{m.Target, ctcpDelim + m.Request + ctcpDelim}
}
func (m *CtcpRequestMessage) String() string {
	return formatLine(m.Prefix, CmdPrivmsg, m.Params(), true)
}

// CtcpReplyMessage answers a CTCP query, carried in a NOTICE.
type CtcpReplyMessage struct {
	Prefix Prefix
	Target string
	Reply  string
}

func ctcpReplyFrom(prefix Prefix, params Params) *CtcpReplyMessage {
	return &CtcpReplyMessage{Prefix: prefix, Target: params.Get(1), Reply: ctcpBody(params.Get(2), ctcpDelim)}
}

func (m *CtcpReplyMessage) Type() Type      { return TypeCtcpReply }
func (m *CtcpReplyMessage) Sender() Prefix  { return m.Prefix }
func (m *CtcpReplyMessage) Command() string { return CmdNotice }
func (m *CtcpReplyMessage) Params() []string {
	return []string{m.Target, ctcpDelim + m.Reply + ctcpDelim}
}
func (m *CtcpReplyMessage) String() string { return formatLine(m.Prefix, CmdNotice, m.Params(), true) }

// ── user queries ─────────────────────────────────────────────────────

// WhoMessage queries users matching Mask.
type WhoMessage struct {
	Prefix Prefix
	Mask   string
}

func whoFrom(prefix Prefix, params Params) *WhoMessage {
	return &WhoMessage{Prefix: prefix, Mask: params.Get(1)}
}

func (m *WhoMessage) Type() Type       { return TypeWho }
func (m *WhoMessage) Sender() Prefix   { return m.Prefix }
func (m *WhoMessage) Command() string  { return CmdWho }
func (m *WhoMessage) Params() []string { return trimEmpty(m.Mask) }
func (m *WhoMessage) String() string   { return Format(m) }

// WhoisMessage queries information about User.
type WhoisMessage struct {
	Prefix Prefix
	User   string
}

func whoisFrom(prefix Prefix, params Params) *WhoisMessage {
	return &WhoisMessage{Prefix: prefix, User: params.Get(1)}
}

func (m *WhoisMessage) Type() Type       { return TypeWhois }
func (m *WhoisMessage) Sender() Prefix   { return m.Prefix }
func (m *WhoisMessage) Command() string  { return CmdWhois }
func (m *WhoisMessage) Params() []string { return []string{m.User} }
func (m *WhoisMessage) String() string   { return Format(m) }

// WhowasMessage queries history for a nick that no longer exists.
type WhowasMessage struct {
	Prefix Prefix
	User   string
}

func whowasFrom(prefix Prefix, params Params) *WhowasMessage {
	return &WhowasMessage{Prefix: prefix, User: params.Get(1)}
}

func (m *WhowasMessage) Type() Type       { return TypeWhowas }
func (m *WhowasMessage) Sender() Prefix   { return m.Prefix }
func (m *WhowasMessage) Command() string  { return CmdWhowas }
func (m *WhowasMessage) Params() []string { return []string{m.User} }
func (m *WhowasMessage) String() string   { return Format(m) }
