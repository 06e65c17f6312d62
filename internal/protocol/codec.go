package protocol

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	ircerr "ircsess/internal/errors"
)

// Codec converts between wire bytes and text.
//
// A Codec with an explicit encoding uses it in both directions. The
// zero-configuration codec (empty name) keeps valid UTF-8 as is and
// decodes anything else with a fallback charset taken from the locale;
// outbound text is always sent as UTF-8.
type Codec struct {
	name     string
	enc      encoding.Encoding
	fallback encoding.Encoding
}

// NewCodec returns a Codec for the named encoding ("utf-8", "latin1",
// "windows-1251", "koi8-r", ...). An empty name selects auto-detection.
func NewCodec(name string) (*Codec, error) {
	if name == "" {
		return &Codec{fallback: localeFallback()}, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ircerr.ErrUnknownEncoding, name)
	}
	canonical, _ := htmlindex.Name(enc)
	return &Codec{name: canonical, enc: enc}, nil
}

// AutoCodec returns the auto-detecting codec.
func AutoCodec() *Codec {
	c, _ := NewCodec("")
	return c
}

// Name returns the canonical encoding name, or "" for auto-detection.
func (c *Codec) Name() string { return c.name }

// Decode converts raw line bytes to text. Undecodable bytes are
// replaced rather than reported.
func (c *Codec) Decode(b []byte) string {
	if c.enc == nil {
		if utf8.Valid(b) {
			return string(b)
		}
		out, err := c.fallback.NewDecoder().Bytes(b)
		if err != nil {
			return strings.ToValidUTF8(string(b), "\uFFFD")
		}
		return string(out)
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}

// Encode converts text to wire bytes. Characters the encoding cannot
// represent are replaced with the encoding's substitute byte.
func (c *Codec) Encode(s string) []byte {
	if c.enc == nil || c.enc == unicode.UTF8 {
		return []byte(s)
	}
	out, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// localeFallback picks the charset named by the process locale
// (LC_ALL, LC_CTYPE, LANG in that order), or ISO-8859-1 when the
// locale names none or names UTF-8 itself.
func localeFallback() encoding.Encoding {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		charset := localeCharset(v)
		if charset == "" {
			break
		}
		enc, err := htmlindex.Get(charset)
		if err != nil || enc == unicode.UTF8 {
			break
		}
		return enc
	}
	return charmap.ISO8859_1
}

// localeCharset extracts the charset from a locale such as
// "fi_FI.ISO-8859-15@euro".
func localeCharset(locale string) string {
	_, after, ok := strings.Cut(locale, ".")
	if !ok {
		return ""
	}
	charset, _, _ := strings.Cut(after, "@")
	return charset
}
