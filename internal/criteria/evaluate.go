package criteria

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dupescan/dupescan/internal/fsentry"
)

type valueKind int

const (
	kindString valueKind = iota
	kindNumber
)

// value is a property's result for one candidate: a string for
// path-derived properties, an integer for modification time
// (nanoseconds) and root index.
type value struct {
	kind valueKind
	str  string
	num  int64
}

func stringValue(s string) value { return value{kind: kindString, str: s} }
func numberValue(n int64) value  { return value{kind: kindNumber, num: n} }

func (v value) render() string {
	if v.kind == kindNumber {
		return strconv.FormatInt(v.num, 10)
	}
	return v.str
}

// evalContext carries the per-phrase comparison mode set by the
// "ignoring case" modifier.
type evalContext struct {
	ignoreCase bool
}

func (c evalContext) fold(s string) string {
	if c.ignoreCase {
		return strings.ToLower(s)
	}
	return s
}

// equals compares a property value against a phrase argument. When
// the property is numeric and the argument parses as an integer the
// comparison is numeric; otherwise both sides compare as text.
func (c evalContext) equals(v value, arg string) bool {
	if v.kind == kindNumber {
		if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return v.num == n
		}
	}
	return c.fold(v.render()) == c.fold(arg)
}

// compare orders two values of the same property.
func (c evalContext) compare(a, b value) int {
	if a.kind == kindNumber && b.kind == kindNumber {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	}
	return strings.Compare(c.fold(a.render()), c.fold(b.render()))
}

type property struct {
	name string
	kind valueKind
	eval func(*fsentry.Entry) value
}

type operator struct {
	name        string
	negated     bool
	isRegex     bool
	wantsString bool
	test        func(ctx evalContext, v value, arg string) bool
}

type adjective struct {
	name        string
	wantsString bool
	compare     func(ctx evalContext, a, b value) int
}

var (
	propertyGraph  = newTokenGraph[*property]()
	operatorGraph  = newTokenGraph[*operator]()
	adjectiveGraph = newTokenGraph[*adjective]()
	modifierGraph  = newTokenGraph[evalContext]()
)

func init() {
	for _, p := range []struct {
		paths []string
		prop  *property
	}{
		{[]string{"path"}, &property{name: "path", kind: kindString,
			eval: func(e *fsentry.Entry) value { return stringValue(e.Path) }}},
		{[]string{"name"}, &property{name: "name", kind: kindString,
			eval: func(e *fsentry.Entry) value { return stringValue(e.Name()) }}},
		{[]string{"dir/ectory"}, &property{name: "directory", kind: kindString,
			eval: func(e *fsentry.Entry) value { return stringValue(e.Dir()) }}},
		{[]string{"dir/ectory name"}, &property{name: "directory name", kind: kindString,
			eval: func(e *fsentry.Entry) value { return stringValue(e.DirName()) }}},
		{[]string{"ext/ension"}, &property{name: "extension", kind: kindString,
			eval: func(e *fsentry.Entry) value { return stringValue(e.Ext()) }}},
		{[]string{"mtime", "modification time?"}, &property{name: "mtime", kind: kindNumber,
			eval: func(e *fsentry.Entry) value { return numberValue(e.ModTime.UnixNano()) }}},
		{[]string{"index"}, &property{name: "index", kind: kindNumber,
			eval: func(e *fsentry.Entry) value { return numberValue(int64(e.Root.Index)) }}},
	} {
		propertyGraph.add(p.paths, p.prop)
	}

	for _, o := range []struct {
		name     string
		paths    []string
		negPaths []string
		wantsStr bool
		isRegex  bool
		test     func(ctx evalContext, v value, arg string) bool
	}{
		{"is", []string{"is"}, []string{"is not", "isnt"}, false, false,
			func(ctx evalContext, v value, arg string) bool { return ctx.equals(v, arg) }},
		{"contains", []string{"contain/s"}, []string{"not contain/s"}, true, false,
			func(ctx evalContext, v value, arg string) bool {
				return strings.Contains(ctx.fold(v.str), ctx.fold(arg))
			}},
		{"starts with", []string{"start/s with?"}, []string{"not start/s with?"}, true, false,
			func(ctx evalContext, v value, arg string) bool {
				return strings.HasPrefix(ctx.fold(v.str), ctx.fold(arg))
			}},
		{"ends with", []string{"end/s with?"}, []string{"not end/s with?"}, true, false,
			func(ctx evalContext, v value, arg string) bool {
				return strings.HasSuffix(ctx.fold(v.str), ctx.fold(arg))
			}},
		{"matches regex", []string{"match/es re|regex/p"}, []string{"not match/es re|regex/p"}, true, true, nil},
	} {
		operatorGraph.add(o.paths, &operator{
			name: o.name, wantsString: o.wantsStr, isRegex: o.isRegex, test: o.test,
		})
		operatorGraph.add(o.negPaths, &operator{
			name: "not " + o.name, negated: true,
			wantsString: o.wantsStr, isRegex: o.isRegex, test: o.test,
		})
	}

	separator := string(filepath.Separator)
	for _, a := range []struct {
		posPaths []string
		negPaths []string
		posName  string
		negName  string
		wantsStr bool
		compare  func(ctx evalContext, a, b value) int
	}{
		{[]string{"shorter"}, []string{"longer"}, "shorter", "longer", true,
			func(ctx evalContext, a, b value) int { return len(a.str) - len(b.str) }},
		{[]string{"shallower"}, []string{"deeper"}, "shallower", "deeper", true,
			func(ctx evalContext, a, b value) int {
				return strings.Count(a.str, separator) - strings.Count(b.str, separator)
			}},
		{[]string{"earlier", "lower"}, []string{"later", "higher"}, "earlier", "later", false,
			func(ctx evalContext, a, b value) int { return ctx.compare(a, b) }},
	} {
		pos := &adjective{name: a.posName, wantsString: a.wantsStr, compare: a.compare}
		adjectiveGraph.add(a.posPaths, pos)
		inner := a.compare
		adjectiveGraph.add(a.negPaths, &adjective{
			name: a.negName, wantsString: a.wantsStr,
			compare: func(ctx evalContext, a, b value) int { return -inner(ctx, a, b) },
		})
	}

	modifierGraph.add([]string{"ignoring case"}, evalContext{ignoreCase: true})
}

// phraseFunc compares two candidates under one phrase: negative means
// the first is strictly preferred, zero means they tie.
type phraseFunc func(a, b *fsentry.Entry) int

// Program is a compiled criteria string. Programs are immutable and
// safe for concurrent use.
type Program struct {
	Source  string
	phrases []phraseFunc
}

// Len returns the number of phrases in the program.
func (p *Program) Len() int {
	return len(p.phrases)
}

// Pick narrows a group of candidates phrase by phrase and returns the
// survivors. The result is never empty for a non-empty group: a
// phrase that would eliminate every remaining candidate instead
// leaves the round unchanged, and evaluation stops as soon as one
// candidate remains.
func (p *Program) Pick(entries []*fsentry.Entry) []*fsentry.Entry {
	round := make([]*fsentry.Entry, len(entries))
	copy(round, entries)

	for _, decide := range p.phrases {
		if len(round) <= 1 {
			break
		}

		next := []*fsentry.Entry{round[0]}
		for _, candidate := range round[1:] {
			outcome := decide(candidate, next[0])
			if outcome < 0 {
				next = []*fsentry.Entry{candidate}
			} else if outcome == 0 {
				next = append(next, candidate)
			}
		}
		round = next
	}
	return round
}
