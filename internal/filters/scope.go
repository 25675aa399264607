package filters

import (
	"github.com/PuerkitoBio/goquery"
)

// Checkbox is a single filter checkbox
type Checkbox interface {
	Value() string
	Checked() bool
	SetChecked(checked bool)
}

// ClickFunc is called with the filter name a listener was registered for
type ClickFunc func(name string)

// Scope is the part of a page the filter state is bound to
type Scope interface {
	// Checkboxes returns the checkboxes whose name is name, in document order
	Checkboxes(name string) []Checkbox
	// OnClick registers fn for clicks on any checkbox named name
	OnClick(name string, fn ClickFunc)
	// SetLink displays the shareable link
	SetLink(link string)
}

// DocumentScope is a Scope over a parsed HTML document
type DocumentScope struct {
	sel          *goquery.Selection
	linkSelector string
	handlers     map[string][]ClickFunc
}

// NewDocumentScope binds to the checkboxes below sel. The link is written to
// the value attribute of the elements matching linkSelector
func NewDocumentScope(sel *goquery.Selection, linkSelector string) *DocumentScope {
	if linkSelector == "" {
		linkSelector = DefaultLinkSelector
	}
	return &DocumentScope{
		sel:          sel,
		linkSelector: linkSelector,
		handlers:     make(map[string][]ClickFunc),
	}
}

func (d *DocumentScope) find(name string) *goquery.Selection {
	return d.sel.Find("input[name='" + name + "']")
}

// Checkboxes implements Scope
func (d *DocumentScope) Checkboxes(name string) []Checkbox {
	var out []Checkbox
	d.find(name).Each(func(_ int, s *goquery.Selection) {
		out = append(out, docCheckbox{s})
	})
	return out
}

// OnClick implements Scope
func (d *DocumentScope) OnClick(name string, fn ClickFunc) {
	d.handlers[name] = append(d.handlers[name], fn)
}

// SetLink implements Scope
func (d *DocumentScope) SetLink(link string) {
	d.sel.Find(d.linkSelector).SetAttr("value", link)
}

// Link returns the displayed link
func (d *DocumentScope) Link() string {
	return d.sel.Find(d.linkSelector).First().AttrOr("value", "")
}

// Click toggles the checkbox name=value and notifies the listeners for name
// It reports false when there is no such checkbox
func (d *DocumentScope) Click(name, value string) bool {
	found := false
	d.find(name).Each(func(_ int, s *goquery.Selection) {
		if s.AttrOr("value", "") != value {
			return
		}
		cb := docCheckbox{s}
		cb.SetChecked(!cb.Checked())
		found = true
	})
	if !found {
		return false
	}
	d.dispatch(name)
	return true
}

// Check sets the checkboxes named name so that exactly values are checked and
// notifies the listeners for name once
func (d *DocumentScope) Check(name string, values []string) {
	for _, cb := range d.Checkboxes(name) {
		cb.SetChecked(contains(values, cb.Value()))
	}
	d.dispatch(name)
}

func (d *DocumentScope) dispatch(name string) {
	for _, fn := range d.handlers[name] {
		fn(name)
	}
}

type docCheckbox struct {
	s *goquery.Selection
}

func (c docCheckbox) Value() string {
	return c.s.AttrOr("value", "")
}

func (c docCheckbox) Checked() bool {
	_, ok := c.s.Attr("checked")
	return ok
}

func (c docCheckbox) SetChecked(checked bool) {
	if checked {
		c.s.SetAttr("checked", "checked")
	} else {
		c.s.RemoveAttr("checked")
	}
}
