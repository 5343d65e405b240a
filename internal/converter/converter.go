// Package converter turns XML documents into their JSON representation.
//
// The mapping is structural: elements become object members keyed by their
// qualified name, attributes become "@name" members, text becomes a string
// (or a "#text" member when the element also has attributes or children),
// and repeated sibling elements collapse into an array at the position of
// the first occurrence. Leaf values are never coerced; everything stays a
// string. Member order follows document order, so identical input always
// yields byte-identical output.
package converter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedInput is returned when the input is not a well-formed XML document.
var ErrMalformedInput = errors.New("malformed xml input")

const (
	attrPrefix = "@"
	textKey    = "#text"
	declKey    = "?xml"
)

// Convert converts a complete XML document into compact JSON text.
func Convert(raw []byte) (string, error) {
	return ConvertReader(bytes.NewReader(raw))
}

// ConvertReader converts the XML document read from r into compact JSON text.
// The input is consumed in a single streaming pass.
func ConvertReader(r io.Reader) (string, error) {
	doc, err := parse(r)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := &writer{buf: &buf}
	w.enc = json.NewEncoder(&buf)
	w.enc.SetEscapeHTML(false)
	if err := w.document(doc); err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return buf.String(), nil
}

type attr struct {
	name  string
	value string
}

// member is one entry of an element's content in first-occurrence order:
// either the text runs (isText) or a group of same-named child elements.
type member struct {
	isText   bool
	name     string
	children []*element
}

type element struct {
	name     string
	attrs    []attr
	prefixes map[string]struct{}
	members  []*member
	groups   map[string]*member
	text     *member
	runs     []string
	// open text run accumulated from adjacent character data tokens
	pending strings.Builder
	hasRun  bool
}

func (e *element) addChild(c *element) {
	e.flushText()
	if e.groups == nil {
		e.groups = make(map[string]*member)
	}
	g, ok := e.groups[c.name]
	if !ok {
		g = &member{name: c.name}
		e.groups[c.name] = g
		e.members = append(e.members, g)
	}
	g.children = append(g.children, c)
}

func (e *element) addText(s string) {
	e.pending.WriteString(s)
	e.hasRun = true
}

// flushText closes the current text run. Whitespace-only runs are dropped.
func (e *element) flushText() {
	if !e.hasRun {
		return
	}
	s := e.pending.String()
	e.pending.Reset()
	e.hasRun = false
	if strings.TrimSpace(s) == "" {
		return
	}
	if e.text == nil {
		e.text = &member{isText: true}
		e.members = append(e.members, e.text)
	}
	e.runs = append(e.runs, s)
}

type document struct {
	decl []attr
	root *element
}

func parse(r io.Reader) (*document, error) {
	src, err := decodeBOM(bufio.NewReader(r))
	if err != nil {
		return nil, malformed(err)
	}

	dec := xml.NewDecoder(src.reader)
	dec.Strict = true
	dec.CharsetReader = src.charsetReader

	doc := &document{}
	var stack []*element
	done := false

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" && doc.root == nil && len(stack) == 0 {
				doc.decl = parseDecl(string(t.Inst))
			}
		case xml.StartElement:
			if done {
				return nil, malformed(fmt.Errorf("unexpected element <%s> after document root", qualified(t.Name)))
			}
			el, err := newElement(t, stack)
			if err != nil {
				return nil, malformed(err)
			}
			if len(stack) > 0 {
				stack[len(stack)-1].addChild(el)
			} else {
				doc.root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			name := qualified(t.Name)
			if len(stack) == 0 {
				return nil, malformed(fmt.Errorf("unexpected closing tag </%s>", name))
			}
			top := stack[len(stack)-1]
			if top.name != name {
				return nil, malformed(fmt.Errorf("element <%s> closed by </%s>", top.name, name))
			}
			top.flushText()
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				done = true
			}
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, malformed(errors.New("text outside of document root"))
				}
				continue
			}
			stack[len(stack)-1].addText(string(t))
		case xml.Comment:
			if len(stack) > 0 {
				stack[len(stack)-1].flushText()
			}
		case xml.Directive:
			// DOCTYPE and friends carry no content.
		}
	}

	if len(stack) > 0 {
		return nil, malformed(fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].name))
	}
	if doc.root == nil {
		return nil, malformed(errors.New("empty document"))
	}
	return doc, nil
}

// newElement builds the element for a start tag, enforcing unique attribute
// names and that every prefix in use is bound in scope.
func newElement(t xml.StartElement, stack []*element) (*element, error) {
	el := &element{name: qualified(t.Name)}
	seen := make(map[string]struct{}, len(t.Attr))
	for _, a := range t.Attr {
		name := qualified(a.Name)
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate attribute %q on <%s>", name, el.name)
		}
		seen[name] = struct{}{}
		if a.Name.Space == "xmlns" {
			if el.prefixes == nil {
				el.prefixes = make(map[string]struct{})
			}
			el.prefixes[a.Name.Local] = struct{}{}
		}
		el.attrs = append(el.attrs, attr{name: attrPrefix + name, value: a.Value})
	}

	if !bound(t.Name.Space, el, stack) {
		return nil, fmt.Errorf("undeclared prefix %q on <%s>", t.Name.Space, el.name)
	}
	for _, a := range t.Attr {
		if a.Name.Space != "xmlns" && !bound(a.Name.Space, el, stack) {
			return nil, fmt.Errorf("undeclared prefix %q on attribute %q", a.Name.Space, qualified(a.Name))
		}
	}
	return el, nil
}

func bound(prefix string, el *element, stack []*element) bool {
	switch prefix {
	case "", "xml", "xmlns":
		return true
	}
	if _, ok := el.prefixes[prefix]; ok {
		return true
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if _, ok := stack[i].prefixes[prefix]; ok {
			return true
		}
	}
	return false
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedInput, err)
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// parseDecl reads the pseudo-attributes of an XML declaration in order.
func parseDecl(inst string) []attr {
	var out []attr
	s := inst
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return out
		}
		key := strings.TrimSpace(s[:eq])
		s = strings.TrimLeft(s[eq+1:], " \t\r\n")
		if s == "" || (s[0] != '"' && s[0] != '\'') {
			return out
		}
		end := strings.IndexByte(s[1:], s[0])
		if end < 0 {
			return out
		}
		out = append(out, attr{name: attrPrefix + key, value: s[1 : end+1]})
		s = s[end+2:]
	}
}

type writer struct {
	buf *bytes.Buffer
	enc *json.Encoder
}

func (w *writer) document(doc *document) error {
	w.buf.WriteByte('{')
	if doc.decl != nil {
		if err := w.key(declKey); err != nil {
			return err
		}
		if err := w.attrObject(doc.decl); err != nil {
			return err
		}
		w.buf.WriteByte(',')
	}
	if err := w.key(doc.root.name); err != nil {
		return err
	}
	if err := w.element(doc.root); err != nil {
		return err
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *writer) attrObject(attrs []attr) error {
	w.buf.WriteByte('{')
	for i, a := range attrs {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.key(a.name); err != nil {
			return err
		}
		if err := w.str(a.value); err != nil {
			return err
		}
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *writer) element(e *element) error {
	if len(e.attrs) == 0 && len(e.groups) == 0 {
		switch len(e.runs) {
		case 0:
			w.buf.WriteString("null")
			return nil
		case 1:
			return w.str(e.runs[0])
		}
	}

	w.buf.WriteByte('{')
	first := true
	sep := func() {
		if !first {
			w.buf.WriteByte(',')
		}
		first = false
	}
	for _, a := range e.attrs {
		sep()
		if err := w.key(a.name); err != nil {
			return err
		}
		if err := w.str(a.value); err != nil {
			return err
		}
	}
	for _, m := range e.members {
		sep()
		if m.isText {
			if err := w.key(textKey); err != nil {
				return err
			}
			if err := w.texts(e.runs); err != nil {
				return err
			}
			continue
		}
		if err := w.key(m.name); err != nil {
			return err
		}
		if err := w.group(m.children); err != nil {
			return err
		}
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *writer) texts(runs []string) error {
	if len(runs) == 1 {
		return w.str(runs[0])
	}
	w.buf.WriteByte('[')
	for i, s := range runs {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.str(s); err != nil {
			return err
		}
	}
	w.buf.WriteByte(']')
	return nil
}

func (w *writer) group(children []*element) error {
	if len(children) == 1 {
		return w.element(children[0])
	}
	w.buf.WriteByte('[')
	for i, c := range children {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.element(c); err != nil {
			return err
		}
	}
	w.buf.WriteByte(']')
	return nil
}

func (w *writer) key(k string) error {
	if err := w.str(k); err != nil {
		return err
	}
	w.buf.WriteByte(':')
	return nil
}

// str writes a JSON string literal. Encoder.Encode appends a newline, which is trimmed.
func (w *writer) str(s string) error {
	if err := w.enc.Encode(s); err != nil {
		return err
	}
	w.buf.Truncate(w.buf.Len() - 1)
	return nil
}
