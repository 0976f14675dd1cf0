package exprkit

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type token struct {
	text string
	kind tokenKind
	// num is the parsed value of a tokenNum.
	num float64
	// spaceBefore and spaceAfter record whether the token was immediately
	// preceded or followed by whitespace or the end of input. The parser's
	// disambiguation step is the only consumer of these flags.
	spaceBefore bool
	spaceAfter  bool
}

func (t token) String() string {
	return t.kind.String() + ":" + t.text
}

type tokenKind int8

const (
	tokenNone tokenKind = iota
	// tokenEOF indicates the end of the input.
	tokenEOF
	// tokenNum is a numeric literal.
	tokenNum
	// tokenString is a quoted string or identifier literal, delimiters kept.
	tokenString
	// tokenIdent is a variable, function, or array name.
	tokenIdent
	// tokenOp is a bare operator, one or more symbol characters.
	tokenOp
	// tokenOpen and tokenClose are ( and ).
	tokenOpen
	tokenClose
	// tokenOpenSub and tokenCloseSub are [ and ].
	tokenOpenSub
	tokenCloseSub
	// tokenBad is an unrecognized character, rejected by the parser at the
	// point collapse fails.
	tokenBad
)

func (k tokenKind) String() string {
	switch k {
	case tokenNone:
		return "None"
	case tokenEOF:
		return "EOF"
	case tokenNum:
		return "Num"
	case tokenString:
		return "String"
	case tokenIdent:
		return "Ident"
	case tokenOp:
		return "Op"
	case tokenOpen:
		return "Open"
	case tokenClose:
		return "Close"
	case tokenOpenSub:
		return "OpenSub"
	case tokenCloseSub:
		return "CloseSub"
	case tokenBad:
		return "Bad"
	}
	return "tokenKind(" + strconv.Itoa(int(k)) + ")"
}

// OperatorChars contains the characters that bare operator tokens are drawn
// from. An operator is one or more of these.
const OperatorChars = "+-*/%&|!<>=?:^~,"

// identHead reports whether r may begin an identifier.
func identHead(r rune) bool {
	return r == '_' || r == '$' || r == '#' || r == '@' || unicode.IsLetter(r)
}

// identTail reports whether r may continue an identifier. Interior dots are
// handled separately so that a dot never ends up at a boundary.
func identTail(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

// IsValidIdentifier reports whether s is usable as a variable or function
// name: an identifier head character followed by tail characters, with dots
// allowed between characters but not at either boundary.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	prevDot := true // a dot may not lead
	first := true
	for _, r := range s {
		switch {
		case first:
			if !identHead(r) {
				return false
			}
			first = false
		case r == '.':
			if prevDot {
				return false
			}
			prevDot = true
			continue
		default:
			if !identTail(r) {
				return false
			}
		}
		prevDot = false
	}
	return !prevDot
}

// IsValidOperator reports whether s is usable as a custom operator: one or
// more characters drawn from OperatorChars.
func IsValidOperator(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(OperatorChars, r) {
			return false
		}
	}
	return true
}

type lexer struct {
	src string
	// pos is the byte offset of the next rune.
	pos int
	// stop contains runes which end the input early.
	stop string
}

// scanTokens tokenizes src completely. The only scan-time failure is an
// unterminated quoted literal; all other irregularities are deferred to the
// parser as tokenBad tokens.
func scanTokens(src, stop string) ([]token, error) {
	l := lexer{src: src, stop: stop}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokenEOF {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

func (l *lexer) peek() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r, true
}

func (l *lexer) read() (rune, bool) {
	r, ok := l.peek()
	if ok {
		l.pos += utf8.RuneLen(r)
	}
	return r, ok
}

// spaceAt reports whether the rune ending at byte offset i, or the rune
// starting there, is whitespace. Offsets outside the input count as
// whitespace so that tokens at either end read as space-adjacent.
func (l *lexer) spaceBeforeOffset(i int) bool {
	if i <= 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(l.src[:i])
	return unicode.IsSpace(r)
}

func (l *lexer) spaceAfterOffset(i int) bool {
	if i >= len(l.src) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(l.src[i:])
	return unicode.IsSpace(r)
}

func (l *lexer) next() (token, error) {
	for {
		r, ok := l.peek()
		if !ok {
			return token{kind: tokenEOF}, nil
		}
		if strings.ContainsRune(l.stop, r) {
			return token{kind: tokenEOF}, nil
		}
		if !unicode.IsSpace(r) {
			break
		}
		l.read()
	}
	start := l.pos
	tok, err := l.scan()
	if err != nil {
		return token{}, err
	}
	tok.spaceBefore = l.spaceBeforeOffset(start)
	tok.spaceAfter = l.spaceAfterOffset(l.pos)
	return tok, nil
}

func (l *lexer) scan() (token, error) {
	r, _ := l.peek()
	switch {
	case '0' <= r && r <= '9' || r == '.':
		return l.scanNum(), nil
	case r == '\'' || r == '"' || r == '`':
		return l.scanQuoted()
	case identHead(r):
		return l.scanIdent(), nil
	case r == '(':
		l.read()
		return token{kind: tokenOpen, text: "("}, nil
	case r == ')':
		l.read()
		return token{kind: tokenClose, text: ")"}, nil
	case r == '[':
		l.read()
		return token{kind: tokenOpenSub, text: "["}, nil
	case r == ']':
		l.read()
		return token{kind: tokenCloseSub, text: "]"}, nil
	case strings.ContainsRune(OperatorChars, r):
		return l.scanOp(), nil
	default:
		l.read()
		return token{kind: tokenBad, text: string(r)}, nil
	}
}

// scanNum scans a decimal literal with optional fraction and exponent, or a
// hexadecimal literal with an 0x prefix. A malformed number becomes a
// tokenBad for the parser to reject.
func (l *lexer) scanNum() token {
	start := l.pos
	if strings.HasPrefix(l.src[l.pos:], "0x") || strings.HasPrefix(l.src[l.pos:], "0X") {
		l.pos += 2
		for {
			r, ok := l.peek()
			if !ok || !isHexDigit(r) {
				break
			}
			l.read()
		}
		text := l.src[start:l.pos]
		u, err := strconv.ParseUint(text[2:], 16, 64)
		if err != nil {
			return token{kind: tokenBad, text: text}
		}
		return token{kind: tokenNum, text: text, num: float64(u)}
	}
	var dot, exp bool
	for {
		r, ok := l.peek()
		if !ok {
			break
		}
		switch {
		case '0' <= r && r <= '9':
		case r == '.' && !dot && !exp:
			dot = true
		case (r == 'e' || r == 'E') && !exp && l.pos > start:
			exp = true
			l.read()
			// An exponent sign belongs to the number.
			if s, ok := l.peek(); ok && (s == '+' || s == '-') {
				l.read()
			}
			continue
		default:
			goto done
		}
		l.read()
	}
done:
	text := l.src[start:l.pos]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{kind: tokenBad, text: text}
	}
	return token{kind: tokenNum, text: text, num: v}
}

func isHexDigit(r rune) bool {
	return '0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F'
}

// scanQuoted scans a single-, double-, or backtick-quoted literal. The token
// text retains the delimiters and escape sequences so that printing an
// expression round-trips exactly; unescaping happens where the cooked value
// is needed.
func (l *lexer) scanQuoted() (token, error) {
	delim, _ := l.read()
	start := l.pos
	for {
		r, ok := l.read()
		if !ok {
			return token{}, &MissingDelimiterError{Delim: string(delim)}
		}
		switch r {
		case delim:
			text := string(delim) + l.src[start:l.pos]
			return token{kind: tokenString, text: text}, nil
		case '\\':
			if _, ok := l.read(); !ok {
				return token{}, &MissingDelimiterError{Delim: string(delim)}
			}
		}
	}
}

// unescapeQuoted returns the cooked contents of a quoted literal token.
func unescapeQuoted(text string) string {
	if len(text) < 2 {
		return text
	}
	body := text[1 : len(text)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

func (l *lexer) scanIdent() token {
	start := l.pos
	l.read()
	for {
		r, ok := l.peek()
		if !ok {
			break
		}
		if r == '.' {
			// Interior dots only: the dot must be followed by another
			// identifier character.
			save := l.pos
			l.read()
			if s, ok := l.peek(); !ok || !identTail(s) && !identHead(s) {
				l.pos = save
				break
			}
			continue
		}
		if !identTail(r) {
			break
		}
		l.read()
	}
	return token{kind: tokenIdent, text: l.src[start:l.pos]}
}

// multiOps are the multi-character operators the scanner recognizes, longest
// first. Any other operator character stands alone, so "5*-3" lexes as
// "5", "*", "-", "3" rather than a single "*-" operator.
var multiOps = []string{
	"<<=", ">>=",
	"==", "!=", "<=", ">=", "&&", "||", "??", "?:",
	"<<", ">>", "++", "--", "+=", "-=", "*=", "/=", "%=", "**",
}

func (l *lexer) scanOp() token {
	rest := l.src[l.pos:]
	for _, op := range multiOps {
		if strings.HasPrefix(rest, op) {
			l.pos += len(op)
			return token{kind: tokenOp, text: op}
		}
	}
	r, _ := l.read()
	return token{kind: tokenOp, text: string(r)}
}
