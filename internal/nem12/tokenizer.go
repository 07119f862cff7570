// =============================================================================
// NEM12 Converter - Tokenizer
// =============================================================================
//
// The tokenizer turns raw NEM12 text into a flat stream of tokens:
//
//   RecordMarker  - a record indicator (100/200/300/400/500/900) at line start
//   Separator     - a comma between fields
//   Field         - an unquoted field value, verbatim (may be empty)
//   QuotedField   - a double-quoted field with the quotes stripped and
//                   \" and \\ unescaped
//   EndOfInput    - always the last token
//
// MODES:
//   Seeking  - nothing has been read yet. Only a 100 record or a 200 record
//              may start the file; anything else is a TokenizeError.
//   InBlock  - a 100 or 200 record has been seen. Markers 200/300/400/500/900
//              are recognised at the start of a line only. A "100" at the
//              start of a later line is an ordinary field, as is any digit
//              run that does not begin a line.
//
// A marker must be followed directly by a comma or a line break (or the end
// of input); "3001,..." is a field, not a 300 marker. A 200 marker must be
// followed by a comma.
//
// Blank lines, a UTF-8 byte order mark and \r\n line endings are tolerated.
//
// =============================================================================

package nem12

import (
	"fmt"
	"strings"
)

// =============================================================================
// TOKENS
// =============================================================================

// TokenKind classifies a token.
type TokenKind int

// Token kinds produced by the tokenizer.
const (
	TokenRecordMarker TokenKind = iota
	TokenSeparator
	TokenField
	TokenQuotedField
	TokenEndOfInput
)

// String returns a readable name for the kind.
func (k TokenKind) String() string {
	switch k {
	case TokenRecordMarker:
		return "RecordMarker"
	case TokenSeparator:
		return "Separator"
	case TokenField:
		return "Field"
	case TokenQuotedField:
		return "QuotedField"
	case TokenEndOfInput:
		return "EndOfInput"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is a single lexical unit.
type Token struct {
	Kind TokenKind

	// Indicator is set for TokenRecordMarker.
	Indicator RecordIndicator

	// Value is the field text for TokenField and TokenQuotedField.
	Value string

	// Pos is where the token starts.
	Pos Position
}

// IsField reports whether the token carries a field value.
func (t Token) IsField() bool {
	return t.Kind == TokenField || t.Kind == TokenQuotedField
}

// =============================================================================
// TOKENIZER
// =============================================================================

type lexMode int

const (
	modeSeeking lexMode = iota
	modeInBlock
)

const byteOrderMark = "\uFEFF"

// Tokenizer produces tokens one at a time from an in-memory input.
type Tokenizer struct {
	input string
	pos   int

	// line and lineStart track the current line for positions.
	line      int
	lineStart int

	mode        lexMode
	atLineStart bool
	expectField bool

	err error
}

// NewTokenizer creates a tokenizer over input.
func NewTokenizer(input string) *Tokenizer {
	t := &Tokenizer{
		input:       input,
		line:        1,
		atLineStart: true,
	}
	if strings.HasPrefix(input, byteOrderMark) {
		t.pos = len(byteOrderMark)
		t.lineStart = t.pos
	}
	return t
}

// Tokenize returns every token in input, ending with TokenEndOfInput.
func Tokenize(input string) ([]Token, error) {
	t := NewTokenizer(input)
	var tokens []Token
	for {
		tok, err := t.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEndOfInput {
			return tokens, nil
		}
	}
}

// Next returns the next token. After TokenEndOfInput every call returns
// TokenEndOfInput again; after an error every call returns the same error.
func (t *Tokenizer) Next() (Token, error) {
	if t.err != nil {
		return Token{}, t.err
	}

	for {
		if t.expectField {
			t.expectField = false
			return t.lexField()
		}

		if t.pos >= len(t.input) {
			return Token{Kind: TokenEndOfInput, Pos: t.position()}, nil
		}

		c := t.input[t.pos]
		switch {
		case c == '\r' || c == '\n':
			t.consumeLineBreak()
			t.atLineStart = true

		case t.atLineStart:
			if t.skipBlankLine() {
				continue
			}
			t.atLineStart = false
			return t.lexLineStart()

		case c == ',':
			tok := Token{Kind: TokenSeparator, Pos: t.position()}
			t.pos++
			t.expectField = true
			return tok, nil

		default:
			return Token{}, t.fail(t.position(), fmt.Sprintf("unexpected character %q after field", c))
		}
	}
}

// lexLineStart lexes the first token of a non-blank line.
func (t *Tokenizer) lexLineStart() (Token, error) {
	pos := t.position()

	if indicator, ok := t.peekMarker(); ok {
		switch t.mode {
		case modeSeeking:
			if indicator == RecordHeader || (indicator == RecordNMIDataDetails && t.markerFollowedByComma()) {
				t.mode = modeInBlock
				return t.emitMarker(indicator, pos), nil
			}
		case modeInBlock:
			switch indicator {
			case RecordNMIDataDetails:
				if t.markerFollowedByComma() {
					return t.emitMarker(indicator, pos), nil
				}
			case RecordIntervalData, RecordIntervalEvent, RecordB2BDetails, RecordEndOfData:
				return t.emitMarker(indicator, pos), nil
			}
		}
	}

	if t.mode == modeSeeking {
		return Token{}, t.fail(pos, "input must begin with a 100 or 200 record")
	}

	return t.lexField()
}

// peekMarker reports whether a record indicator starts at the cursor and is
// followed by a comma, a line break or the end of input.
func (t *Tokenizer) peekMarker() (RecordIndicator, bool) {
	if t.pos+3 > len(t.input) {
		return recordIndicatorUnknown, false
	}
	if t.pos+3 < len(t.input) && !isDelimiter(t.input[t.pos+3]) {
		return recordIndicatorUnknown, false
	}

	switch t.input[t.pos : t.pos+3] {
	case "100":
		return RecordHeader, true
	case "200":
		return RecordNMIDataDetails, true
	case "300":
		return RecordIntervalData, true
	case "400":
		return RecordIntervalEvent, true
	case "500":
		return RecordB2BDetails, true
	case "900":
		return RecordEndOfData, true
	default:
		return recordIndicatorUnknown, false
	}
}

func (t *Tokenizer) markerFollowedByComma() bool {
	return t.pos+3 < len(t.input) && t.input[t.pos+3] == ','
}

func (t *Tokenizer) emitMarker(indicator RecordIndicator, pos Position) Token {
	t.pos += 3
	return Token{Kind: TokenRecordMarker, Indicator: indicator, Pos: pos}
}

// lexField lexes one field value starting at the cursor. An empty field is
// returned when the cursor sits on a delimiter.
func (t *Tokenizer) lexField() (Token, error) {
	pos := t.position()

	if t.pos < len(t.input) && t.input[t.pos] == '"' {
		return t.lexQuotedField(pos)
	}

	start := t.pos
	for t.pos < len(t.input) && !isDelimiter(t.input[t.pos]) {
		t.pos++
	}
	return Token{Kind: TokenField, Value: t.input[start:t.pos], Pos: pos}, nil
}

// lexQuotedField lexes a double-quoted field. The cursor is on the opening
// quote.
func (t *Tokenizer) lexQuotedField(pos Position) (Token, error) {
	t.pos++

	var b strings.Builder
	for t.pos < len(t.input) {
		c := t.input[t.pos]
		switch c {
		case '\\':
			if t.pos+1 < len(t.input) && (t.input[t.pos+1] == '"' || t.input[t.pos+1] == '\\') {
				b.WriteByte(t.input[t.pos+1])
				t.pos += 2
				continue
			}
			b.WriteByte(c)
			t.pos++
		case '"':
			t.pos++
			return Token{Kind: TokenQuotedField, Value: b.String(), Pos: pos}, nil
		case '\n':
			b.WriteByte(c)
			t.pos++
			t.line++
			t.lineStart = t.pos
		default:
			b.WriteByte(c)
			t.pos++
		}
	}

	return Token{}, t.fail(pos, "unterminated quoted field")
}

// skipBlankLine consumes spaces and tabs when they are all that remains of
// the current line, reporting whether it did so.
func (t *Tokenizer) skipBlankLine() bool {
	i := t.pos
	for i < len(t.input) && (t.input[i] == ' ' || t.input[i] == '\t') {
		i++
	}
	if i < len(t.input) && t.input[i] != '\r' && t.input[i] != '\n' {
		return false
	}
	t.pos = i
	return true
}

// consumeLineBreak consumes one of \r\n, \n or a lone \r.
func (t *Tokenizer) consumeLineBreak() {
	if t.input[t.pos] == '\r' && t.pos+1 < len(t.input) && t.input[t.pos+1] == '\n' {
		t.pos++
	}
	t.pos++
	t.line++
	t.lineStart = t.pos
}

func (t *Tokenizer) position() Position {
	return Position{Offset: t.pos, Line: t.line, Column: t.pos - t.lineStart + 1}
}

func (t *Tokenizer) fail(pos Position, msg string) error {
	t.err = &TokenizeError{Pos: pos, Message: msg}
	return t.err
}

func isDelimiter(c byte) bool {
	return c == ',' || c == '\r' || c == '\n'
}
