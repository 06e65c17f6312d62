package capability

import (
	"fmt"
	"strings"

	"ircsess/internal/protocol"
)

// errNoTarget is returned for plain text typed before any channel or
// query was selected.
var errNoTarget = fmt.Errorf("no current target: /join a channel or /msg a nick")

// command is one parsed console line.
type command struct {
	msg    protocol.Message // nil for raw or local commands
	raw    string           // /raw line
	target string           // new current target, if any
	quit   bool
}

// parseInput turns a console line into a command. Lines starting with
// "/" are commands, "//" escapes a literal slash, and anything else is
// a PRIVMSG to target.
func parseInput(line, target string) (command, error) {
	if line == "" {
		return command{}, nil
	}
	if !strings.HasPrefix(line, "/") || strings.HasPrefix(line, "//") {
		if target == "" {
			return command{}, errNoTarget
		}
		return command{msg: protocol.Privmsg(target, strings.TrimPrefix(line, "/"))}, nil
	}

	verb, rest, _ := strings.Cut(line[1:], " ")
	verb = strings.ToLower(verb)
	args := strings.Fields(rest)
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	// tail returns the text after the first n words, spacing intact.
	tail := func(n int) string {
		s := strings.TrimLeft(rest, " ")
		for i := 0; i < n; i++ {
			_, s, _ = strings.Cut(s, " ")
			s = strings.TrimLeft(s, " ")
		}
		return s
	}
	need := func(n int, usage string) error {
		if len(args) < n {
			return fmt.Errorf("usage: /%s %s", verb, usage)
		}
		return nil
	}

	switch verb {
	case "join", "j":
		if err := need(1, "<channel> [key]"); err != nil {
			return command{}, err
		}
		j := protocol.Join(arg(0))
		j.Key = arg(1)
		return command{msg: j}, nil
	case "part":
		ch := arg(0)
		reason := tail(1)
		if ch == "" || !isChannel(ch) {
			ch, reason = target, tail(0)
		}
		if ch == "" {
			return command{}, errNoTarget
		}
		return command{msg: protocol.Part(ch, reason)}, nil
	case "msg", "query":
		if err := need(1, "<target> [text]"); err != nil {
			return command{}, err
		}
		c := command{target: arg(0)}
		if text := tail(1); text != "" {
			c.msg = protocol.Privmsg(arg(0), text)
		}
		return c, nil
	case "me":
		if target == "" {
			return command{}, errNoTarget
		}
		return command{msg: protocol.Action(target, tail(0))}, nil
	case "notice":
		if err := need(2, "<target> <text>"); err != nil {
			return command{}, err
		}
		return command{msg: protocol.Notice(arg(0), tail(1))}, nil
	case "topic":
		ch, topic := arg(0), tail(1)
		if !isChannel(ch) {
			ch, topic = target, tail(0)
		}
		if ch == "" {
			return command{}, errNoTarget
		}
		return command{msg: protocol.Topic(ch, topic)}, nil
	case "names":
		ch := arg(0)
		if ch == "" {
			ch = target
		}
		return command{msg: protocol.Names(ch)}, nil
	case "list":
		return command{msg: protocol.List(arg(0))}, nil
	case "invite":
		if err := need(1, "<nick> [channel]"); err != nil {
			return command{}, err
		}
		ch := arg(1)
		if ch == "" {
			ch = target
		}
		return command{msg: protocol.Invite(arg(0), ch)}, nil
	case "kick":
		if err := need(2, "<channel> <nick> [reason]"); err != nil {
			return command{}, err
		}
		return command{msg: protocol.Kick(arg(0), arg(1), tail(2))}, nil
	case "mode":
		if err := need(2, "<target> <modes> [args...]"); err != nil {
			return command{}, err
		}
		return command{msg: protocol.Mode(arg(0), arg(1), args[2:]...)}, nil
	case "who":
		return command{msg: protocol.Who(arg(0))}, nil
	case "whois":
		if err := need(1, "<nick>"); err != nil {
			return command{}, err
		}
		return command{msg: protocol.Whois(arg(0))}, nil
	case "whowas":
		if err := need(1, "<nick>"); err != nil {
			return command{}, err
		}
		return command{msg: protocol.Whowas(arg(0))}, nil
	case "nick":
		if err := need(1, "<nick>"); err != nil {
			return command{}, err
		}
		return command{msg: protocol.Nick(arg(0))}, nil
	case "raw", "quote":
		if err := need(1, "<line>"); err != nil {
			return command{}, err
		}
		return command{raw: tail(0)}, nil
	case "quit", "exit":
		return command{msg: protocol.Quit(tail(0)), quit: true}, nil
	}
	return command{}, fmt.Errorf("unknown command /%s", verb)
}

func isChannel(s string) bool {
	return s != "" && strings.ContainsRune("#&+!", rune(s[0]))
}
