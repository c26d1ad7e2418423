// file: internal/template/parse.go
package template

import (
	"fmt"
	"strings"
)

// Node is one element of a parsed template body. The set of implementations
// is closed: TextNode, VarNode, IfNode, EachNode.
type Node interface {
	node()
}

// TextNode is a run of literal text.
type TextNode struct {
	Text string
}

// VarNode is a variable reference, e.g. {{name}}.
type VarNode struct {
	Name string
}

// IfNode is a conditional section: {{#if cond}}...{{else}}...{{/if}}.
// Else may be nil when no else-branch was written.
type IfNode struct {
	Var  string
	Then []Node
	Else []Node
}

// EachNode is a repeat section: {{#each items}}...{{/each}}. Within the body
// the current element is bound to "this".
type EachNode struct {
	Var  string
	Body []Node
}

func (TextNode) node() {}
func (VarNode) node()  {}
func (IfNode) node()   {}
func (EachNode) node() {}

// ParseError reports a structurally malformed template body, such as an
// unterminated section or an unmatched closing tag.
type ParseError struct {
	// Offset is the byte offset of the offending tag in the source.
	Offset int
	// Reason describes the problem.
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("template parse error at offset %d: %s", e.Offset, e.Reason)
}

// tag delimiters.
const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// token is an intermediate lexing product: either literal text or the inner
// content of a {{...}} tag.
type token struct {
	text   string
	isTag  bool
	offset int
}

// Parse turns template source into a node sequence. It is used at publish
// time so malformed bodies are rejected before a template becomes visible,
// and defensively again by Render via the stored node tree.
func Parse(source string) ([]Node, error) {
	tokens, err := lex(source)
	if err != nil {
		return nil, err
	}
	parser := &parser{tokens: tokens}
	nodes, err := parser.parseNodes("")
	if err != nil {
		return nil, err
	}
	if parser.pos < len(parser.tokens) {
		leftover := parser.tokens[parser.pos]
		return nil, &ParseError{Offset: leftover.offset, Reason: fmt.Sprintf("unmatched closing tag {{%s}}", leftover.text)}
	}
	return nodes, nil
}

// lex splits source into literal and tag tokens. An unclosed "{{" is an error.
func lex(source string) ([]token, error) {
	var tokens []token
	offset := 0
	for {
		start := strings.Index(source[offset:], openDelim)
		if start < 0 {
			if offset < len(source) {
				tokens = append(tokens, token{text: source[offset:], offset: offset})
			}
			return tokens, nil
		}
		start += offset
		if start > offset {
			tokens = append(tokens, token{text: source[offset:start], offset: offset})
		}
		end := strings.Index(source[start+len(openDelim):], closeDelim)
		if end < 0 {
			return nil, &ParseError{Offset: start, Reason: "unclosed '{{' tag"}
		}
		end += start + len(openDelim)
		inner := strings.TrimSpace(source[start+len(openDelim) : end])
		if inner == "" {
			return nil, &ParseError{Offset: start, Reason: "empty tag"}
		}
		tokens = append(tokens, token{text: inner, isTag: true, offset: start})
		offset = end + len(closeDelim)
	}
}

// parser consumes the token stream by recursive descent.
type parser struct {
	tokens []token
	pos    int
}

// parseNodes parses until the closing tag for the enclosing section, or until
// end of input at the top level. enclosing is "" at the top level, otherwise
// "if" or "each".
func (p *parser) parseNodes(enclosing string) ([]Node, error) {
	var nodes []Node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		if !tok.isTag {
			p.pos++
			nodes = append(nodes, TextNode{Text: tok.text})
			continue
		}

		keyword := strings.Fields(tok.text)[0]
		switch {
		case keyword == "#if":
			p.pos++
			node, err := p.parseIf(tok)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)

		case keyword == "#each":
			p.pos++
			node, err := p.parseEach(tok)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)

		case tok.text == "else", tok.text == "/if":
			if enclosing != "if" {
				return nil, &ParseError{Offset: tok.offset, Reason: fmt.Sprintf("{{%s}} outside of an #if section", tok.text)}
			}
			return nodes, nil // Caller consumes the tag.

		case tok.text == "/each":
			if enclosing != "each" {
				return nil, &ParseError{Offset: tok.offset, Reason: "{{/each}} outside of an #each section"}
			}
			return nodes, nil // Caller consumes the tag.

		case strings.HasPrefix(keyword, "#") || strings.HasPrefix(keyword, "/"):
			return nil, &ParseError{Offset: tok.offset, Reason: fmt.Sprintf("unknown section tag {{%s}}", tok.text)}

		default:
			name, err := identifier(tok)
			if err != nil {
				return nil, err
			}
			p.pos++
			nodes = append(nodes, VarNode{Name: name})
		}
	}
	if enclosing != "" {
		offset := 0
		if len(p.tokens) > 0 {
			offset = p.tokens[len(p.tokens)-1].offset
		}
		return nil, &ParseError{Offset: offset, Reason: fmt.Sprintf("unterminated #%s section", enclosing)}
	}
	return nodes, nil
}

// parseIf parses the body of an {{#if name}} section after its opening tag.
func (p *parser) parseIf(open token) (Node, error) {
	name, err := sectionArg(open, "#if")
	if err != nil {
		return nil, err
	}

	thenBranch, err := p.parseNodes("if")
	if err != nil {
		return nil, err
	}

	var elseBranch []Node
	if p.pos >= len(p.tokens) {
		return nil, &ParseError{Offset: open.offset, Reason: "unterminated #if section"}
	}
	if p.tokens[p.pos].text == "else" {
		p.pos++
		elseBranch, err = p.parseNodes("if")
		if err != nil {
			return nil, err
		}
		if p.pos < len(p.tokens) && p.tokens[p.pos].text == "else" {
			return nil, &ParseError{Offset: p.tokens[p.pos].offset, Reason: "duplicate {{else}} in #if section"}
		}
	}
	if p.pos >= len(p.tokens) || p.tokens[p.pos].text != "/if" {
		return nil, &ParseError{Offset: open.offset, Reason: "unterminated #if section"}
	}
	p.pos++ // Consume {{/if}}.
	return IfNode{Var: name, Then: thenBranch, Else: elseBranch}, nil
}

// parseEach parses the body of an {{#each name}} section after its opening tag.
func (p *parser) parseEach(open token) (Node, error) {
	name, err := sectionArg(open, "#each")
	if err != nil {
		return nil, err
	}

	body, err := p.parseNodes("each")
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.tokens) || p.tokens[p.pos].text != "/each" {
		return nil, &ParseError{Offset: open.offset, Reason: "unterminated #each section"}
	}
	p.pos++ // Consume {{/each}}.
	return EachNode{Var: name, Body: body}, nil
}

// sectionArg extracts the single identifier argument of a section tag.
func sectionArg(tok token, keyword string) (string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(tok.text, keyword))
	if rest == "" {
		return "", &ParseError{Offset: tok.offset, Reason: fmt.Sprintf("{{%s}} requires a variable name", keyword)}
	}
	if !validIdentifier(rest) {
		return "", &ParseError{Offset: tok.offset, Reason: fmt.Sprintf("invalid variable name %q in {{%s}}", rest, keyword)}
	}
	return rest, nil
}

// identifier validates a bare {{name}} tag.
func identifier(tok token) (string, error) {
	if !validIdentifier(tok.text) {
		return "", &ParseError{Offset: tok.offset, Reason: fmt.Sprintf("invalid variable name %q", tok.text)}
	}
	return tok.text, nil
}

// validIdentifier accepts names of letters, digits and underscores, starting
// with a letter or underscore.
func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if !isLetter && !isDigit {
			return false
		}
	}
	return true
}
