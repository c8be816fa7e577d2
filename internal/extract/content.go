package extract

import (
	"encoding/hex"
	"strings"
)

// ContentText extracts the strings shown by the text operators of a PDF
// content stream. Line-positioning operators start a new line. Glyphs of
// fonts with custom encodings are returned as their raw bytes.
func ContentText(stream []byte) string {
	var (
		sb      strings.Builder
		operand []string
		lex     = lexer{src: stream}
	)

	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for {
		tok, kind, ok := lex.next()
		if !ok {
			break
		}

		switch kind {
		case tokenString:
			operand = append(operand, tok)
		case tokenArrayEnd:
			// TJ arrays are flattened into the pending operands
		case tokenOperator:
			switch tok {
			case "Tj", "TJ":
				sb.WriteString(strings.Join(operand, ""))
			case "'", "\"":
				newline()
				sb.WriteString(strings.Join(operand, ""))
			case "Td", "TD", "T*", "ET":
				newline()
			}
			operand = operand[:0]
		}
	}

	return sb.String()
}

type tokenKind int

const (
	tokenOther tokenKind = iota
	tokenString
	tokenArrayEnd
	tokenOperator
)

type lexer struct {
	src []byte
	pos int
}

func (l *lexer) next() (string, tokenKind, bool) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return "", tokenOther, false
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		return l.literal(), tokenString, true
	case c == '<' && l.peek(1) == '<':
		l.pos += 2
		return "<<", tokenOther, true
	case c == '>' && l.peek(1) == '>':
		l.pos += 2
		return ">>", tokenOther, true
	case c == '<':
		return l.hexString(), tokenString, true
	case c == '[':
		l.pos++
		return "[", tokenOther, true
	case c == ']':
		l.pos++
		return "]", tokenArrayEnd, true
	case c == '%':
		for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
			l.pos++
		}
		return l.next()
	case c == '/':
		l.pos++
		return "/" + l.word(), tokenOther, true
	case c == '\'' || c == '"':
		l.pos++
		return string(c), tokenOperator, true
	}

	w := l.word()
	if w == "" {
		l.pos++
		return string(c), tokenOther, true
	}
	if isOperator(w) {
		return w, tokenOperator, true
	}
	return w, tokenOther, true
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset < len(l.src) {
		return l.src[l.pos+offset]
	}
	return 0
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) && !isDelimiter(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) literal() string {
	var sb strings.Builder
	depth := 0
	l.pos++

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++

		switch c {
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			if depth == 0 {
				return sb.String()
			}
			depth--
			sb.WriteByte(c)
		case '\\':
			l.escape(&sb)
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

func (l *lexer) escape(sb *strings.Builder) {
	if l.pos >= len(l.src) {
		return
	}

	c := l.src[l.pos]
	l.pos++

	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case '\r':
		if l.peek(0) == '\n' {
			l.pos++
		}
	case '\n':
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(c - '0')
		for i := 0; i < 2 && l.pos < len(l.src); i++ {
			d := l.src[l.pos]
			if d < '0' || d > '7' {
				break
			}
			v = v*8 + int(d-'0')
			l.pos++
		}
		sb.WriteByte(byte(v))
	default:
		sb.WriteByte(c)
	}
}

func (l *lexer) hexString() string {
	l.pos++
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		l.pos++
	}

	raw := strings.Map(func(r rune) rune {
		if isSpace(byte(r)) {
			return -1
		}
		return r
	}, string(l.src[start:l.pos]))
	l.pos++

	if len(raw)%2 == 1 {
		raw += "0"
	}

	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func isOperator(w string) bool {
	switch w {
	case "Tj", "TJ", "Td", "TD", "T*", "Tm", "BT", "ET", "Tf", "TL", "Tc", "Tw", "Tz", "Ts", "Tr":
		return true
	}
	c := w[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
