// internal/browser/locator.go
package browser

import (
	"fmt"
	"strconv"
	"strings"
)

// Strategy says how a Locator finds its element.
type Strategy int

const (
	StrategyCSS Strategy = iota + 1
	StrategyXPath
	StrategyRole
	StrategyText
	StrategyHandle
)

func (s Strategy) String() string {
	switch s {
	case StrategyCSS:
		return "css"
	case StrategyXPath:
		return "xpath"
	case StrategyRole:
		return "role"
	case StrategyText:
		return "text"
	case StrategyHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// Element is a node a driver resolved at some point in time. It is only valid on
// the document it came from; drivers report ErrStale once that document is gone.
type Element interface {
	Describe() string
}

// Locator describes where an element is. It is either a declarative selector,
// resolved again on every action, or a handle wrapping a previously resolved
// Element. The zero value matches nothing.
//
// Actions act on the first match, or on the match picked with Nth.
type Locator struct {
	strategy Strategy
	query    string
	role     string
	name     string
	hasText  string
	nth      int
	handle   Element
}

// CSS locates elements by CSS selector.
func CSS(selector string) Locator {
	return Locator{strategy: StrategyCSS, query: selector}
}

// XPath locates elements by XPath expression.
func XPath(expr string) Locator {
	return Locator{strategy: StrategyXPath, query: expr}
}

// Role locates elements by ARIA role and accessible name. An empty name matches
// any element with the role. Names match case-insensitively as substrings.
func Role(role, name string) Locator {
	return Locator{strategy: StrategyRole, role: role, name: name}
}

// Text locates the innermost elements whose text contains text, ignoring case
// and surrounding whitespace.
func Text(text string) Locator {
	return Locator{strategy: StrategyText, query: text}
}

// Handle wraps an already resolved element.
func Handle(el Element) Locator {
	return Locator{strategy: StrategyHandle, handle: el}
}

// WithText narrows the matches to elements whose text contains s.
func (l Locator) WithText(s string) Locator {
	l.hasText = s
	return l
}

// Nth picks the i-th match (zero based) instead of the first.
func (l Locator) Nth(i int) Locator {
	l.nth = i
	return l
}

func (l Locator) Strategy() Strategy { return l.strategy }
func (l Locator) Query() string      { return l.query }
func (l Locator) Role() (role, name string) {
	return l.role, l.name
}
func (l Locator) HasText() string  { return l.hasText }
func (l Locator) Index() int       { return l.nth }
func (l Locator) Element() Element { return l.handle }
func (l Locator) IsHandle() bool   { return l.strategy == StrategyHandle }
func (l Locator) IsZero() bool     { return l.strategy == 0 }

// String renders the locator in Playwright selector syntax. It is stable, so it
// doubles as a key in logs, errors and test fakes.
func (l Locator) String() string {
	var b strings.Builder
	switch l.strategy {
	case StrategyCSS:
		b.WriteString("css=" + l.query)
	case StrategyXPath:
		b.WriteString("xpath=" + l.query)
	case StrategyRole:
		b.WriteString("role=" + l.role)
		if l.name != "" {
			b.WriteString("[name=" + strconv.Quote(l.name) + "]")
		}
	case StrategyText:
		b.WriteString("text=" + l.query)
	case StrategyHandle:
		if l.handle == nil {
			return "handle=<nil>"
		}
		b.WriteString("handle=" + l.handle.Describe())
	default:
		return "<zero locator>"
	}
	if l.hasText != "" {
		b.WriteString(" >> has-text=" + strconv.Quote(l.hasText))
	}
	if l.nth != 0 {
		b.WriteString(" >> nth=" + strconv.Itoa(l.nth))
	}
	return b.String()
}

// XPathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value containing both quote kinds is built with concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}

// XPathf formats an XPath expression, quoting every argument with XPathLiteral.
func XPathf(format string, args ...string) Locator {
	quoted := make([]any, len(args))
	for i, a := range args {
		quoted[i] = XPathLiteral(a)
	}
	return XPath(fmt.Sprintf(format, quoted...))
}
