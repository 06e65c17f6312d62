// Package protocol implements the IRC wire format: line framing,
// parsing of raw lines into prefix/command/params, decoding of the
// recognised command families into typed messages, and serialisation
// of outbound messages.
//
// Line format:
//
//	["@" tags " "] [":" prefix " "] command {" " middle} [" :" trailing]
package protocol

import (
	"strings"
)

const (
	startTags     = '@'
	startPrefix   = ':'
	startTrailing = ':'
	delimParam    = ' '
	delimTag      = ';'
	delimTagValue = '='
)

// Parsed is one decoded protocol line. It is transient: the session
// turns it into a typed Message or discards it.
type Parsed struct {
	Tags    Tags
	Prefix  Prefix
	Command string
	Params  Params
}

// Parse splits a single line (without its terminator) into tags,
// prefix, command and parameters. The command is upper-cased. Parse
// never fails; a line with no command yields an empty Command.
func Parse(line string) Parsed {
	var p Parsed
	rest := strings.TrimLeft(line, " ")

	if strings.HasPrefix(rest, string(startTags)) {
		var tags string
		tags, rest = cut(rest[1:])
		p.Tags = parseTags(tags)
	}

	if strings.HasPrefix(rest, string(startPrefix)) {
		var prefix string
		prefix, rest = cut(rest[1:])
		p.Prefix = Prefix(prefix)
	}

	var command string
	command, rest = cut(rest)
	p.Command = strings.ToUpper(command)

	for rest != "" {
		if rest[0] == startTrailing {
			p.Params = append(p.Params, rest[1:])
			break
		}
		var param string
		param, rest = cut(rest)
		p.Params = append(p.Params, param)
	}
	return p
}

// IsNumeric reports whether the command is a numeric reply.
func (p Parsed) IsNumeric() bool {
	if p.Command == "" {
		return false
	}
	for i := 0; i < len(p.Command); i++ {
		if p.Command[i] < '0' || p.Command[i] > '9' {
			return false
		}
	}
	return true
}

// cut returns the token before the first space and the remainder with
// leading spaces removed.
func cut(s string) (token, rest string) {
	i := strings.IndexByte(s, delimParam)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i+1:], " ")
}

// Params is the positional parameter list of a message.
type Params []string

// Get returns the nth parameter (starting at 1), or "" if it is absent.
//
// Missing and empty parameters are deliberately indistinguishable:
// message constructors read positions and degrade to empty fields.
func (p Params) Get(n int) string {
	if n < 1 || n > len(p) {
		return ""
	}
	return p[n-1]
}

// Rest returns the parameters from position n (starting at 1) onwards.
func (p Params) Rest(n int) []string {
	if n < 1 || n > len(p) {
		return nil
	}
	return append([]string(nil), p[n-1:]...)
}

// Prefix is the optional origin of a message: a server name or a
// nick!user@host address.
type Prefix string

// Nick returns the nickname part, or the whole prefix when it carries
// no user or host.
func (p Prefix) Nick() string {
	s := string(p)
	if i := strings.IndexAny(s, "!@"); i >= 0 {
		return s[:i]
	}
	return s
}

// User returns the user part of a nick!user@host prefix.
func (p Prefix) User() string {
	s := string(p)
	i := strings.IndexByte(s, '!')
	if i < 0 {
		return ""
	}
	s = s[i+1:]
	if j := strings.IndexByte(s, '@'); j >= 0 {
		return s[:j]
	}
	return s
}

// Host returns the host part of a nick!user@host prefix.
func (p Prefix) Host() string {
	s := string(p)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// IsServer reports whether the prefix names a server rather than a user.
func (p Prefix) IsServer() bool {
	s := string(p)
	return s != "" && !strings.ContainsAny(s, "!@") && strings.Contains(s, ".")
}

func (p Prefix) String() string { return string(p) }

// Tags holds IRCv3 message tags.
type Tags map[string]string

// Get returns the value for key, or "" when absent.
func (t Tags) Get(key string) string { return t[key] }

// Has reports whether key was present.
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

var tagUnescaper = strings.NewReplacer(
	`\:`, ";",
	`\s`, " ",
	`\r`, "\r",
	`\n`, "\n",
	`\\`, `\`,
)

func parseTags(raw string) Tags {
	tags := make(Tags)
	for _, kv := range strings.Split(raw, string(delimTag)) {
		if kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, string(delimTagValue))
		if k == "" {
			continue
		}
		tags[k] = tagUnescaper.Replace(v)
	}
	return tags
}
