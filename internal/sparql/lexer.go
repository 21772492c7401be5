package sparql

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokVar
	tokBlank
	tokString
	tokLang
	tokInteger
	tokDecimal
	tokDouble
	tokIdent
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokIRI:
		return "IRI"
	case tokPName:
		return "prefixed name"
	case tokVar:
		return "variable"
	case tokBlank:
		return "blank node"
	case tokString:
		return "string"
	case tokLang:
		return "language tag"
	case tokInteger, tokDecimal, tokDouble:
		return "number"
	case tokIdent:
		return "keyword"
	default:
		return "punctuation"
	}
}

type token struct {
	kind tokenKind
	val  string
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return t.kind.String()
	case tokVar:
		return "?" + t.val
	case tokIRI:
		return "<" + t.val + ">"
	default:
		return strconv.Quote(t.val)
	}
}

// lexer splits a query into tokens. Line and column are 1-based.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
	toks []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src, line: 1, col: 1}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.toks = append(l.toks, token{kind: tokEOF, line: l.line, col: l.col})
			return l.toks, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) errorf(format string, args ...interface{}) error {
	return newParseError(l.line, l.col, format, args...)
}

func (l *lexer) peekRune(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos+off:])
	return r
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += size
		i += size
		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance(1)
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func (l *lexer) emit(kind tokenKind, val string, line, col int) {
	l.toks = append(l.toks, token{kind: kind, val: val, line: line, col: col})
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isVarChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isNameChar(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

var punctuation = []string{
	"^^", "&&", "||", "!=", "<=", ">=",
	"{", "}", "(", ")", "[", "]", ".", ",", ";", "*", "+", "-", "/", "!", "=", "<", ">", "^", "|", "?",
}

func (l *lexer) next() error {
	line, col := l.line, l.col
	c := l.src[l.pos]
	rest := l.src[l.pos:]

	switch {
	case c == '<':
		if iri, n, ok := scanIRI(rest); ok {
			l.advance(n)
			l.emit(tokIRI, iri, line, col)
			return nil
		}
	case c == '?' || c == '$':
		if r := l.peekRune(1); isVarChar(r) {
			l.advance(1)
			start := l.pos
			for l.pos < len(l.src) && isVarChar(l.peekRune(0)) {
				l.advance(1)
			}
			l.emit(tokVar, l.src[start:l.pos], line, col)
			return nil
		}
	case c == '"' || c == '\'':
		s, err := l.scanString()
		if err != nil {
			return err
		}
		l.emit(tokString, s, line, col)
		return nil
	case c == '@':
		l.advance(1)
		start := l.pos
		for l.pos < len(l.src) && (isLetterDigit(l.src[l.pos]) || l.src[l.pos] == '-') {
			l.advance(1)
		}
		if l.pos == start {
			return newParseError(line, col, "empty language tag")
		}
		l.emit(tokLang, strings.ToLower(l.src[start:l.pos]), line, col)
		return nil
	case c >= '0' && c <= '9', c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]):
		kind, n := scanNumber(rest)
		l.advance(n)
		l.emit(kind, rest[:n], line, col)
		return nil
	case strings.HasPrefix(rest, "_:"):
		l.advance(2)
		start := l.pos
		for l.pos < len(l.src) && (isNameChar(l.peekRune(0)) || l.src[l.pos] == '.') {
			l.advance(1)
		}
		label := strings.TrimRight(l.src[start:l.pos], ".")
		l.rewindTo(start + len(label))
		if label == "" {
			return newParseError(line, col, "empty blank node label")
		}
		l.emit(tokBlank, label, line, col)
		return nil
	}

	if r := l.peekRune(0); isNameStart(r) || r == ':' {
		return l.scanName(line, col)
	}

	for _, p := range punctuation {
		if strings.HasPrefix(rest, p) {
			l.advance(len(p))
			l.emit(tokPunct, p, line, col)
			return nil
		}
	}
	return l.errorf("unexpected character %q", l.peekRune(0))
}

// rewindTo moves back to an earlier byte offset on the current line.
func (l *lexer) rewindTo(pos int) {
	l.col -= utf8.RuneCountInString(l.src[pos:l.pos])
	l.pos = pos
}

// scanName reads a keyword, function name or prefixed name.
func (l *lexer) scanName(line, col int) error {
	start := l.pos
	for l.pos < len(l.src) && (isNameChar(l.peekRune(0)) || l.src[l.pos] == '.') {
		l.advance(1)
	}
	prefix := strings.TrimRight(l.src[start:l.pos], ".")
	l.rewindTo(start + len(prefix))

	if l.pos >= len(l.src) || l.src[l.pos] != ':' {
		l.emit(tokIdent, prefix, line, col)
		return nil
	}

	l.advance(1)
	localStart := l.pos
	for l.pos < len(l.src) {
		r := l.peekRune(0)
		if isNameChar(r) || r == '.' || r == ':' || r == '%' {
			l.advance(1)
			continue
		}
		if r == '\\' && l.pos+1 < len(l.src) {
			l.advance(2)
			continue
		}
		break
	}
	local := strings.TrimRight(l.src[localStart:l.pos], ".")
	l.rewindTo(localStart + len(local))
	l.emit(tokPName, prefix+":"+local, line, col)
	return nil
}

func (l *lexer) scanString() (string, error) {
	line, col := l.line, l.col
	q := l.src[l.pos]
	long := strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(q), 3))
	if long {
		l.advance(3)
	} else {
		l.advance(1)
	}

	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", newParseError(line, col, "unterminated string")
		}
		c := l.src[l.pos]
		switch {
		case c == q && !long:
			l.advance(1)
			return sb.String(), nil
		case c == q && long && strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(q), 3)):
			l.advance(3)
			return sb.String(), nil
		case (c == '\n' || c == '\r') && !long:
			return "", newParseError(line, col, "newline in string")
		case c == '\\':
			r, n, err := unescape(l.src[l.pos:])
			if err != nil {
				return "", l.errorf("%v", err)
			}
			sb.WriteRune(r)
			l.advance(n)
		default:
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			sb.WriteRune(r)
			l.advance(size)
		}
	}
}

func unescape(s string) (rune, int, error) {
	if len(s) < 2 {
		return 0, 0, errors.New("dangling escape")
	}
	switch s[1] {
	case 't':
		return '\t', 2, nil
	case 'n':
		return '\n', 2, nil
	case 'r':
		return '\r', 2, nil
	case 'b':
		return '\b', 2, nil
	case 'f':
		return '\f', 2, nil
	case '"', '\'', '\\':
		return rune(s[1]), 2, nil
	case 'u', 'U':
		n := 4
		if s[1] == 'U' {
			n = 8
		}
		if len(s) < 2+n {
			return 0, 0, errors.New("short unicode escape")
		}
		v, err := strconv.ParseUint(s[2:2+n], 16, 32)
		if err != nil {
			return 0, 0, errors.Newf("bad unicode escape %q", s[:2+n])
		}
		return rune(v), 2 + n, nil
	}
	return 0, 0, errors.Newf("unknown escape \\%c", s[1])
}

// scanIRI reports whether s starts with an IRI reference and returns it.
// A '<' that is not followed by a well-formed IRI is the less-than operator.
func scanIRI(s string) (string, int, bool) {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '>':
			return s[1:i], i + 1, true
		case ' ', '\t', '\n', '\r', '<', '"', '{', '}', '|', '^', '`', '\\':
			return "", 0, false
		}
	}
	return "", 0, false
}

func scanNumber(s string) (tokenKind, int) {
	i := 0
	kind := tokInteger
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' && i+1 < len(s) && isDigit(s[i+1]) {
		kind = tokDecimal
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			return tokDouble, j
		}
	}
	return kind, i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetterDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
