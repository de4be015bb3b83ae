package criteria

import (
	"sort"
	"strings"
)

// tokenGraph is a word-level DFA used to recognize the multi-word
// names of properties, operators, adjectives and modifiers, so that
// "directory name" and "not starts with" parse longest-match with no
// backtracking.
//
// Paths are added with a compact builder syntax: words are separated
// by spaces, a trailing "?" makes a word optional, "|" separates
// alternate spellings of a word, and "/" marks an optional suffix
// ("dir/ectory" adds both "dir" and "directory").
type tokenGraph[T any] struct {
	root *graphNode[T]
}

type graphNode[T any] struct {
	accept bool
	data   T
	edges  map[string]*graphNode[T]
}

func newTokenGraph[T any]() *tokenGraph[T] {
	return &tokenGraph[T]{root: newGraphNode[T]()}
}

func newGraphNode[T any]() *graphNode[T] {
	return &graphNode[T]{edges: make(map[string]*graphNode[T])}
}

func (n *graphNode[T]) join(word string) *graphNode[T] {
	next, ok := n.edges[word]
	if !ok {
		next = newGraphNode[T]()
		n.edges[word] = next
	}
	return next
}

func (g *tokenGraph[T]) add(paths []string, data T) {
	for _, path := range paths {
		g.addPath(path, data)
	}
}

func (g *tokenGraph[T]) addPath(path string, data T) {
	current := []*graphNode[T]{g.root}

	for _, word := range strings.Split(path, " ") {
		var next []*graphNode[T]

		if strings.HasSuffix(word, "?") {
			word = strings.TrimSuffix(word, "?")
			next = append(next, current...)
		}

		for _, alt := range strings.Split(word, "|") {
			parts := strings.Split(alt, "/")
			prefix := parts[0]
			spellings := []string{prefix}
			for _, suffix := range parts[1:] {
				spellings = append(spellings, prefix+suffix)
			}
			for _, spelling := range spellings {
				for _, node := range current {
					next = append(next, node.join(spelling))
				}
			}
		}

		current = next
	}

	for _, node := range current {
		node.accept = true
		node.data = data
	}
}

// navigator walks the graph one token at a time.
type navigator[T any] struct {
	node *graphNode[T]
}

func (g *tokenGraph[T]) navigator() *navigator[T] {
	return &navigator[T]{node: g.root}
}

func (n *navigator[T]) canGo(tok Token) bool {
	if tok.Type != TokenString {
		return false
	}
	_, ok := n.node.edges[tok.Value]
	return ok
}

func (n *navigator[T]) advance(tok Token) {
	n.node = n.node.edges[tok.Value]
}

func (n *navigator[T]) accepting() bool {
	return n.node.accept
}

func (n *navigator[T]) data() T {
	return n.node.data
}

// expected lists the words reachable from the current node, for error
// messages.
func (n *navigator[T]) expected() []string {
	var words []string
	for word := range n.node.edges {
		words = append(words, word)
	}
	sort.Strings(words)
	return words
}
