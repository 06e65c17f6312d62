package protocol

import "strings"

// Decode classifies a parsed line into its typed variant.
//
// It returns nil for PING (answered by the session itself) and for any
// command outside the recognised families; callers drop those lines.
// The order of the checks matters where prefixes overlap: a CTCP
// action is also a CTCP request, which is also a PRIVMSG.
func Decode(p Parsed) Message {
	if p.IsNumeric() {
		return numericFrom(p.Prefix, p.Command, p.Params)
	}

	switch p.Command {
	case CmdPing:
		return nil

	case CmdJoin:
		return joinFrom(p.Prefix, p.Params)
	case CmdPart:
		return partFrom(p.Prefix, p.Params)
	case CmdTopic:
		return topicFrom(p.Prefix, p.Params)
	case CmdNames:
		return namesFrom(p.Prefix, p.Params)
	case CmdList:
		return listFrom(p.Prefix, p.Params)
	case CmdInvite:
		return inviteFrom(p.Prefix, p.Params)
	case CmdKick:
		return kickFrom(p.Prefix, p.Params)

	case CmdMode:
		if strings.HasPrefix(p.Params.Get(1), "#") {
			return channelModeFrom(p.Prefix, p.Params)
		}
		return userModeFrom(p.Prefix, p.Params)

	case CmdPrivmsg:
		body := p.Params.Get(2)
		switch {
		case strings.HasPrefix(body, ctcpAction):
			return ctcpActionFrom(p.Prefix, p.Params)
		case strings.HasPrefix(body, ctcpDelim):
			return ctcpRequestFrom(p.Prefix, p.Params)
		default:
			return privateFrom(p.Prefix, p.Params)
		}

	case CmdNotice:
		if strings.HasPrefix(p.Params.Get(2), ctcpDelim) {
			return ctcpReplyFrom(p.Prefix, p.Params)
		}
		return noticeFrom(p.Prefix, p.Params)

	case CmdWho:
		return whoFrom(p.Prefix, p.Params)
	case CmdWhois:
		return whoisFrom(p.Prefix, p.Params)
	case CmdWhowas:
		return whowasFrom(p.Prefix, p.Params)
	}

	// NICK and QUIT fall through here along with everything else.
	return nil
}
