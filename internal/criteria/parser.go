package criteria

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dupescan/dupescan/internal/fsentry"
)

// Parse compiles a criteria string into a Program. All vocabulary,
// type and regular-expression errors surface here with positions;
// evaluation cannot fail afterwards.
func Parse(text string) (*Program, error) {
	p := &parser{lex: newLexer(text)}
	if err := p.consume(); err != nil {
		return nil, err
	}

	program := &Program{Source: text}
	for {
		phrase, err := p.phrase()
		if err != nil {
			return nil, err
		}
		program.phrases = append(program.phrases, phrase)

		switch p.tok.Type {
		case TokenEnd:
			return program, nil
		case TokenComma:
			if err := p.consume(); err != nil {
				return nil, err
			}
		default:
			return nil, errorAtToken("expected ',' or end of criteria", p.tok)
		}
	}
}

type parser struct {
	lex *lexer
	tok Token
}

func (p *parser) consume() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) phrase() (phraseFunc, error) {
	if propertyGraph.navigator().canGo(p.tok) {
		return p.booleanPhrase()
	}
	if adjectiveGraph.navigator().canGo(p.tok) {
		return p.extremaPhrase()
	}
	return nil, errorAtToken("expected a property or an adjective", p.tok)
}

// booleanPhrase := property operator argument [modifier]
func (p *parser) booleanPhrase() (phraseFunc, error) {
	prop, err := parseUsing(p, propertyGraph, "property")
	if err != nil {
		return nil, err
	}

	opTok := p.tok
	op, err := parseUsing(p, operatorGraph, "operator")
	if err != nil {
		return nil, err
	}
	if op.wantsString && prop.kind != kindString {
		return nil, errorAtToken(
			fmt.Sprintf("operator %q needs a text property, not %q", op.name, prop.name), opTok)
	}

	if p.tok.Type != TokenString {
		return nil, errorAtToken(fmt.Sprintf("expected an argument for %q", op.name), p.tok)
	}
	argTok := p.tok
	arg := p.tok.Value
	if err := p.consume(); err != nil {
		return nil, err
	}

	ctx, err := p.modifier()
	if err != nil {
		return nil, err
	}

	var test func(v value) bool
	if op.isRegex {
		re, compileErr := compileArgRegexp(arg, ctx)
		if compileErr != nil {
			return nil, errorAtToken(
				fmt.Sprintf("invalid regular expression: %v", compileErr), argTok)
		}
		test = func(v value) bool { return re.MatchString(v.str) }
	} else {
		test = func(v value) bool { return op.test(ctx, v, arg) }
	}

	predicate := test
	if op.negated {
		predicate = func(v value) bool { return !test(v) }
	}

	// Candidates passing the predicate rank strictly ahead of those
	// failing it; when nobody passes, everybody ties and the phrase
	// is a no-op.
	return func(a, b *fsentry.Entry) int {
		return boolRank(predicate(prop.eval(b))) - boolRank(predicate(prop.eval(a)))
	}, nil
}

// extremaPhrase := adjective property [modifier]
func (p *parser) extremaPhrase() (phraseFunc, error) {
	adj, err := parseUsing(p, adjectiveGraph, "adjective")
	if err != nil {
		return nil, err
	}

	propTok := p.tok
	prop, err := parseUsing(p, propertyGraph, "property")
	if err != nil {
		return nil, err
	}
	if adj.wantsString && prop.kind != kindString {
		return nil, errorAtToken(
			fmt.Sprintf("adjective %q needs a text property, not %q", adj.name, prop.name), propTok)
	}

	ctx, err := p.modifier()
	if err != nil {
		return nil, err
	}

	return func(a, b *fsentry.Entry) int {
		return adj.compare(ctx, prop.eval(a), prop.eval(b))
	}, nil
}

// modifier parses an optional trailing "ignoring case".
func (p *parser) modifier() (evalContext, error) {
	if !modifierGraph.navigator().canGo(p.tok) {
		return evalContext{}, nil
	}
	return parseUsing(p, modifierGraph, "modifier")
}

// parseUsing greedily walks a vocabulary graph from the current
// token, consuming as many words as the graph admits, and returns the
// data at the node it stops on.
func parseUsing[T any](p *parser, graph *tokenGraph[T], what string) (T, error) {
	nav := graph.navigator()
	for nav.canGo(p.tok) {
		nav.advance(p.tok)
		if err := p.consume(); err != nil {
			var zero T
			return zero, err
		}
	}
	if nav.accepting() {
		return nav.data(), nil
	}

	var zero T
	expected := nav.expected()
	if len(expected) == 0 {
		return zero, errorAtToken(fmt.Sprintf("unknown %s", what), p.tok)
	}
	return zero, errorAtToken(
		fmt.Sprintf("expected one of: %s", strings.Join(expected, ", ")), p.tok)
}

// compileArgRegexp anchors the pattern at the start of the property
// value and applies case folding through an engine flag, matching
// how the rest of the language treats "ignoring case".
func compileArgRegexp(pattern string, ctx evalContext) (*regexp.Regexp, error) {
	flags := ""
	if ctx.ignoreCase {
		flags = "(?i)"
	}
	return regexp.Compile(flags + `\A(?:` + pattern + `)`)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// highlightLineWidth is the window HighlightError fits its two lines
// into, for terminals.
const highlightLineWidth = 78

// HighlightError renders a criteria parse error as the source line
// with the offending range underlined, for stderr diagnostics. A
// range of known length is underlined with tildes; a bare position
// (length zero, as at end of input) gets a caret. Long criteria
// strings are windowed around the offending range, with "..." marking
// elided ends.
func HighlightError(source string, err error) []string {
	var parseErr *ParseError
	if !errors.As(err, &parseErr) || parseErr.Pos < 0 {
		return nil
	}

	underline := strings.Repeat(" ", parseErr.Pos)
	hlLen := parseErr.Len
	maxLen := highlightLineWidth - 12
	if hlLen < 1 {
		underline += "^"
		hlLen = maxLen
	} else {
		underline += strings.Repeat("~", hlLen)
		if hlLen > maxLen {
			hlLen = maxLen
		}
	}

	start := parseErr.Pos - (highlightLineWidth-hlLen)/2
	if start < 0 || len(source) <= highlightLineWidth {
		start = 0
	}
	startEllipsis := start > 0
	endEllipsis := start+highlightLineWidth < len(source)

	sample := window(source, start, highlightLineWidth)
	if startEllipsis && len(sample) >= 3 {
		sample = "..." + sample[3:]
	}
	if endEllipsis && len(sample) >= 3 {
		sample = sample[:len(sample)-3] + "..."
	}

	return []string{sample, window(underline, start, highlightLineWidth)}
}

// window clips s to width characters starting at start.
func window(s string, start, width int) string {
	if start >= len(s) {
		return ""
	}
	end := start + width
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}
