package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Grammar rules ("ppr" match kind) are written in a small combinator
// vocabulary and compiled down to anchored regular expressions:
//
//	Word(nums, exact=4) + Literal("-") + Word(nums, min=1, max=2)
//
// Supported combinators: Word, Char, Literal, CaselessLiteral, Optional,
// oneOf. Named character sets: nums, alphas, alphanums, hexnums,
// printables. "+" concatenates, "|" alternates (first match wins, which
// regex alternation preserves for anchored whole-string matches).

// namedCharsets maps DSL charset names to regex character-class fragments.
var namedCharsets = map[string]string{
	"nums":       "0-9",
	"alphas":     "A-Za-z",
	"alphanums":  "A-Za-z0-9",
	"hexnums":    "0-9A-Fa-f",
	"printables": "!-~",
}

// CompilePattern translates a grammar expression into an anchored regexp.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	p := &patternParser{toks: lexPattern(expr)}
	body, err := p.parseAlt()
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", expr, err)
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("pattern %q: unexpected %q", expr, p.peek().text)
	}
	re, err := regexp.Compile(`\A(?:` + body + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", expr, err)
	}
	return re, nil
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokString
	tokNumber
	tokPunct // + | ( ) , =
	tokEOF
)

type token struct {
	kind tokKind
	text string
}

func lexPattern(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+' || c == '|' || c == '(' || c == ')' || c == ',' || c == '=':
			toks = append(toks, token{tokPunct, string(c)})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(s) && s[j] != quote {
				if s[j] == '\\' && j+1 < len(s) {
					j++
				}
				sb.WriteByte(s[j])
				j++
			}
			toks = append(toks, token{tokString, sb.String()})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case isIdentByte(c):
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		default:
			toks = append(toks, token{tokPunct, string(c)})
			i++
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

type patternParser struct {
	toks []token
	pos  int
}

func (p *patternParser) peek() token { return p.toks[p.pos] }
func (p *patternParser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *patternParser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *patternParser) accept(text string) bool {
	if p.peek().kind == tokPunct && p.peek().text == text {
		p.pos++
		return true
	}
	return false
}

func (p *patternParser) expect(text string) error {
	if !p.accept(text) {
		return fmt.Errorf("expected %q, got %q", text, p.peek().text)
	}
	return nil
}

func (p *patternParser) parseAlt() (string, error) {
	first, err := p.parseConcat()
	if err != nil {
		return "", err
	}
	parts := []string{first}
	for p.accept("|") {
		next, err := p.parseConcat()
		if err != nil {
			return "", err
		}
		parts = append(parts, next)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(?:" + strings.Join(parts, "|") + ")", nil
}

func (p *patternParser) parseConcat() (string, error) {
	var sb strings.Builder
	first, err := p.parseTerm()
	if err != nil {
		return "", err
	}
	sb.WriteString(first)
	for p.accept("+") {
		next, err := p.parseTerm()
		if err != nil {
			return "", err
		}
		sb.WriteString(next)
	}
	return sb.String(), nil
}

func (p *patternParser) parseTerm() (string, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return regexp.QuoteMeta(t.text), nil
	case tokIdent:
		return p.parseCall()
	case tokPunct:
		if t.text == "(" {
			p.next()
			inner, err := p.parseAlt()
			if err != nil {
				return "", err
			}
			if err := p.expect(")"); err != nil {
				return "", err
			}
			return "(?:" + inner + ")", nil
		}
	}
	return "", fmt.Errorf("unexpected %q", t.text)
}

func (p *patternParser) parseCall() (string, error) {
	name := p.next().text
	switch name {
	case "Word":
		return p.parseWord(false)
	case "Char":
		return p.parseWord(true)
	case "Literal", "Suppress":
		s, err := p.parseStringArg()
		if err != nil {
			return "", err
		}
		return regexp.QuoteMeta(s), nil
	case "CaselessLiteral":
		s, err := p.parseStringArg()
		if err != nil {
			return "", err
		}
		return "(?i:" + regexp.QuoteMeta(s) + ")", nil
	case "Optional":
		if err := p.expect("("); err != nil {
			return "", err
		}
		inner, err := p.parseAlt()
		if err != nil {
			return "", err
		}
		if err := p.expect(")"); err != nil {
			return "", err
		}
		return "(?:" + inner + ")?", nil
	case "oneOf":
		s, err := p.parseStringArg()
		if err != nil {
			return "", err
		}
		return oneOfAlternation(s), nil
	default:
		return "", fmt.Errorf("unknown combinator %q", name)
	}
}

// parseStringArg consumes "( <string or charset concat> )" and returns the
// literal string value.
func (p *patternParser) parseStringArg() (string, error) {
	if err := p.expect("("); err != nil {
		return "", err
	}
	s, err := p.parseCharsetExpr()
	if err != nil {
		return "", err
	}
	if err := p.expect(")"); err != nil {
		return "", err
	}
	return s, nil
}

// parseWord handles Word(charset[, bodyCharset][, exact=n | min=a, max=b])
// and Char(charset).
func (p *patternParser) parseWord(single bool) (string, error) {
	if err := p.expect("("); err != nil {
		return "", err
	}

	var classes []string
	exact, minRep, maxRep := -1, -1, -1

	for {
		if p.peek().kind == tokIdent && p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == "=" {
			key := p.next().text
			p.next() // "="
			numTok := p.next()
			if numTok.kind != tokNumber {
				return "", fmt.Errorf("expected number for %s=", key)
			}
			n, _ := strconv.Atoi(numTok.text)
			switch key {
			case "exact":
				exact = n
			case "min":
				minRep = n
			case "max":
				maxRep = n
			default:
				return "", fmt.Errorf("unknown keyword argument %q", key)
			}
		} else {
			cls, err := p.parseCharsetClass()
			if err != nil {
				return "", err
			}
			classes = append(classes, cls)
		}
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return "", err
	}
	if len(classes) == 0 {
		return "", fmt.Errorf("Word requires a character set")
	}

	if single {
		return "[" + classes[0] + "]", nil
	}

	head := "[" + classes[0] + "]"
	body := head
	if len(classes) > 1 {
		body = "[" + classes[1] + "]"
	}

	// With a separate body charset the first character comes from the head
	// set, so repetition bounds shift down by one.
	twoPart := len(classes) > 1
	switch {
	case exact >= 0:
		if twoPart {
			if exact == 1 {
				return head, nil
			}
			return head + body + "{" + strconv.Itoa(exact-1) + "}", nil
		}
		return head + "{" + strconv.Itoa(exact) + "}", nil
	case minRep >= 0 || maxRep >= 0:
		lo, hi := "", ""
		if minRep >= 0 {
			lo = strconv.Itoa(boundShift(minRep, twoPart))
		} else if twoPart {
			lo = "0"
		} else {
			lo = "1"
		}
		if maxRep >= 0 {
			hi = strconv.Itoa(boundShift(maxRep, twoPart))
		}
		prefix := ""
		if twoPart {
			prefix = head
		}
		if twoPart {
			return prefix + body + "{" + lo + "," + hi + "}", nil
		}
		return body + "{" + lo + "," + hi + "}", nil
	default:
		if twoPart {
			return head + body + "*", nil
		}
		return body + "+", nil
	}
}

func boundShift(n int, twoPart bool) int {
	if twoPart && n > 0 {
		return n - 1
	}
	return n
}

// parseCharsetClass evaluates a charset expression (named set, string
// literal, or "+" concatenation of those) into a regex class fragment.
func (p *patternParser) parseCharsetClass() (string, error) {
	var sb strings.Builder
	for {
		t := p.peek()
		switch {
		case t.kind == tokIdent:
			frag, ok := namedCharsets[t.text]
			if !ok {
				return "", fmt.Errorf("unknown character set %q", t.text)
			}
			p.next()
			sb.WriteString(frag)
		case t.kind == tokString:
			p.next()
			sb.WriteString(escapeClassChars(t.text))
		default:
			return "", fmt.Errorf("expected character set, got %q", t.text)
		}
		if !p.accept("+") {
			return sb.String(), nil
		}
	}
}

// parseCharsetExpr evaluates string-valued arguments ("+"-joined literals),
// used by Literal and oneOf.
func (p *patternParser) parseCharsetExpr() (string, error) {
	var sb strings.Builder
	for {
		t := p.next()
		if t.kind != tokString {
			return "", fmt.Errorf("expected string, got %q", t.text)
		}
		sb.WriteString(t.text)
		if !p.accept("+") {
			return sb.String(), nil
		}
	}
}

// escapeClassChars escapes characters that are special inside a regex class.
func escapeClassChars(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\', ']', '^', '-', '[':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// oneOfAlternation builds an alternation over space-separated words,
// longest first so prefixes never shadow longer alternatives.
func oneOfAlternation(words string) string {
	fields := strings.Fields(words)
	// stable longest-first ordering
	for i := 1; i < len(fields); i++ {
		for j := i; j > 0 && len(fields[j]) > len(fields[j-1]); j-- {
			fields[j], fields[j-1] = fields[j-1], fields[j]
		}
	}
	quoted := make([]string, len(fields))
	for i, w := range fields {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}
