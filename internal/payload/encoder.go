package payload

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Scheme names an encoding applied to a raw payload before it is sent.
type Scheme string

const (
	Identity     Scheme = "identity"
	None         Scheme = "none" // alias of Identity used by the sweep tables
	URL          Scheme = "url"
	DoubleURL    Scheme = "double_url"
	Unicode      Scheme = "unicode"
	Hex          Scheme = "hex"
	Base64       Scheme = "base64"
	HTMLEntities Scheme = "html_entities"
)

// isUnreserved reports whether c may appear unescaped in an encoded payload:
// RFC 3986 unreserved characters plus "/", which is left alone the same way
// common URL quoting helpers do.
func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~' || c == '/'
}

// percentEncode escapes every byte that is not unreserved. Spaces become
// %20 (not +).
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Encoder transforms a payload string.
type Encoder interface {
	Name() string
	Encode(s string) string
}

// IdentityEncoder returns its input unchanged.
type IdentityEncoder struct{}

// Name returns the encoder name.
func (e *IdentityEncoder) Name() string { return string(Identity) }

// Encode returns s.
func (e *IdentityEncoder) Encode(s string) string { return s }

// URLEncoder performs URL encoding.
type URLEncoder struct{}

// Name returns the encoder name.
func (e *URLEncoder) Name() string { return string(URL) }

// Encode applies percent-encoding to the input string.
func (e *URLEncoder) Encode(s string) string {
	return percentEncode(s)
}

// HexEncoder renders the payload as 0x followed by the two-digit lowercase
// hex code of every character.
type HexEncoder struct{}

// Name returns the encoder name.
func (e *HexEncoder) Name() string { return string(Hex) }

// Encode converts each code point of the input to hex. Code points above
// 0xff produce more than two digits.
func (e *HexEncoder) Encode(s string) string {
	var b strings.Builder
	b.WriteString("0x")
	for _, r := range s {
		fmt.Fprintf(&b, "%02x", r)
	}
	return b.String()
}

// UnicodeEncoder converts each character to a \uXXXX escape.
type UnicodeEncoder struct{}

// Name returns the encoder name.
func (e *UnicodeEncoder) Name() string { return string(Unicode) }

// Encode converts each code point of the input to \u followed by at least
// four lowercase hex digits.
func (e *UnicodeEncoder) Encode(s string) string {
	var b strings.Builder
	for _, r := range s {
		fmt.Fprintf(&b, "\\u%04x", r)
	}
	return b.String()
}

// Base64Encoder encodes to standard base64.
type Base64Encoder struct{}

// Name returns the encoder name.
func (e *Base64Encoder) Name() string { return string(Base64) }

// Encode applies standard base64 encoding to the UTF-8 bytes of s.
func (e *Base64Encoder) Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// HTMLEntityEncoder escapes angle brackets only. Quotes and ampersands are
// left as-is so the payload still probes filters that only strip tags.
type HTMLEntityEncoder struct{}

// Name returns the encoder name.
func (e *HTMLEntityEncoder) Name() string { return string(HTMLEntities) }

// Encode replaces < with &lt; and > with &gt;.
func (e *HTMLEntityEncoder) Encode(s string) string {
	return strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(s)
}

// ChainEncoder applies multiple encoders in sequence.
type ChainEncoder struct {
	name     string
	encoders []Encoder
}

// NewChainEncoder creates a ChainEncoder with the given encoders.
func NewChainEncoder(name string, encoders ...Encoder) *ChainEncoder {
	return &ChainEncoder{name: name, encoders: encoders}
}

// Name returns the encoder name.
func (e *ChainEncoder) Name() string { return e.name }

// Encode applies each encoder in order.
func (e *ChainEncoder) Encode(s string) string {
	result := s
	for _, enc := range e.encoders {
		result = enc.Encode(result)
	}
	return result
}

// encoders maps every known scheme to its implementation.
var encoders = map[Scheme]Encoder{
	Identity:     &IdentityEncoder{},
	None:         &IdentityEncoder{},
	URL:          &URLEncoder{},
	DoubleURL:    NewChainEncoder(string(DoubleURL), &URLEncoder{}, &URLEncoder{}),
	Unicode:      &UnicodeEncoder{},
	Hex:          &HexEncoder{},
	Base64:       &Base64Encoder{},
	HTMLEntities: &HTMLEntityEncoder{},
}

// Lookup returns the encoder registered for scheme.
func Lookup(scheme Scheme) (Encoder, bool) {
	enc, ok := encoders[Scheme(strings.ToLower(string(scheme)))]
	return enc, ok
}

// Schemes returns every canonical scheme name (the "none" alias excluded).
func Schemes() []Scheme {
	return []Scheme{Identity, URL, DoubleURL, Unicode, Hex, Base64, HTMLEntities}
}

// Encode applies scheme to p. An unknown scheme is not an error: the payload
// is returned unchanged. Callers that want to report it check Lookup first.
func Encode(p string, scheme Scheme) string {
	enc, ok := Lookup(scheme)
	if !ok {
		return p
	}
	return enc.Encode(p)
}
