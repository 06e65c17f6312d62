package protocol

import "strings"

// Command verbs.
const (
	CmdPass    = "PASS"
	CmdNick    = "NICK"
	CmdUser    = "USER"
	CmdQuit    = "QUIT"
	CmdPing    = "PING"
	CmdPong    = "PONG"
	CmdJoin    = "JOIN"
	CmdPart    = "PART"
	CmdTopic   = "TOPIC"
	CmdNames   = "NAMES"
	CmdList    = "LIST"
	CmdInvite  = "INVITE"
	CmdKick    = "KICK"
	CmdMode    = "MODE"
	CmdPrivmsg = "PRIVMSG"
	CmdNotice  = "NOTICE"
	CmdWho     = "WHO"
	CmdWhois   = "WHOIS"
	CmdWhowas  = "WHOWAS"
)

// Numeric replies the session and the CLI care about.
const (
	RplWelcome        = 1
	RplYourHost       = 2
	RplCreated        = 3
	RplMyInfo         = 4
	RplISupport       = 5
	RplTopic          = 332
	RplNamReply       = 353
	RplEndOfNames     = 366
	RplMotd           = 372
	RplMotdStart      = 375
	RplEndOfMotd      = 376
	ErrNoSuchNick     = 401
	ErrNicknameInUse  = 433
	ErrPasswdMismatch = 464
	ErrYoureBanned    = 465
)

// unusedHost fills the hostname and servername fields of USER. RFC
// 1459 has the server ignore both for directly connected clients.
const unusedHost = "unknown"

// Pass constructs a PASS command.
func Pass(password string) *GenericMessage {
	return &GenericMessage{Verb: CmdPass, Args: []string{password}}
}

// Nick constructs a NICK command.
func Nick(nick string) *GenericMessage {
	return &GenericMessage{Verb: CmdNick, Args: []string{nick}}
}

// User constructs the USER registration command.
func User(user, realName string) *GenericMessage {
	return &GenericMessage{
		Verb:     CmdUser,
		Args:     []string{user, unusedHost, unusedHost, realName},
		Trailing: true,
	}
}

// Pong answers a server PING.
func Pong(arg string) *GenericMessage {
	return &GenericMessage{Verb: CmdPong, Args: []string{arg}}
}

// Quit constructs a QUIT command with an optional reason.
func Quit(reason string) *GenericMessage {
	return &GenericMessage{Verb: CmdQuit, Args: trimEmpty(reason)}
}

// Join constructs a JOIN request.
func Join(channel string) *JoinMessage { return &JoinMessage{Channel: channel} }

// Part constructs a PART request.
func Part(channel, reason string) *PartMessage {
	return &PartMessage{Channel: channel, Reason: reason}
}

// Topic queries (empty topic) or sets a channel topic.
func Topic(channel, topic string) *TopicMessage {
	return &TopicMessage{Channel: channel, Topic: topic}
}

// Names constructs a NAMES request.
func Names(channel string) *NamesMessage { return &NamesMessage{Channel: channel} }

// List constructs a LIST request.
func List(channel string) *ListMessage { return &ListMessage{Channel: channel} }

// Invite constructs an INVITE.
func Invite(user, channel string) *InviteMessage {
	return &InviteMessage{User: user, Channel: channel}
}

// Kick constructs a KICK.
func Kick(channel, user, reason string) *KickMessage {
	return &KickMessage{Channel: channel, User: user, Reason: reason}
}

// Mode constructs a channel or user MODE depending on the target.
func Mode(target, mode string, args ...string) Message {
	if strings.HasPrefix(target, "#") {
		return &ChannelModeMessage{Channel: target, Mode: mode, Args: args}
	}
	return &UserModeMessage{User: target, Mode: mode}
}

// Privmsg constructs a PRIVMSG.
func Privmsg(target, text string) *PrivateMessage {
	return &PrivateMessage{Target: target, Text: text}
}

// Notice constructs a NOTICE.
func Notice(target, text string) *NoticeMessage {
	return &NoticeMessage{Target: target, Text: text}
}

// Action constructs a CTCP ACTION ("/me").
func Action(target, action string) *CtcpActionMessage {
	return &CtcpActionMessage{Target: target, Action: action}
}

// CtcpRequest constructs a CTCP query such as "VERSION".
func CtcpRequest(target, request string) *CtcpRequestMessage {
	return &CtcpRequestMessage{Target: target, Request: request}
}

// CtcpReply constructs a CTCP answer.
func CtcpReply(target, reply string) *CtcpReplyMessage {
	return &CtcpReplyMessage{Target: target, Reply: reply}
}

// Who constructs a WHO query.
func Who(mask string) *WhoMessage { return &WhoMessage{Mask: mask} }

// Whois constructs a WHOIS query.
func Whois(user string) *WhoisMessage { return &WhoisMessage{User: user} }

// Whowas constructs a WHOWAS query.
func Whowas(user string) *WhowasMessage { return &WhowasMessage{User: user} }
