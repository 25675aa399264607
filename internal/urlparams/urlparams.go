// Package urlparams reads and rewrites the query string of a page URL
//
// Values are passed through raw: nothing is percent-decoded or encoded, so a
// value read from a URL is written back byte for byte
package urlparams

import (
	"sort"
	"strings"
)

// Params is an ordered key/value view of a query string
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams returns an empty parameter set
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// FromMap builds a parameter set from m. Keys are added in sorted order
func FromMap(m map[string]string) *Params {
	p := NewParams()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

// Get returns the value for key and whether it was present
func (p *Params) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Set stores value under key. A new key is appended after the existing ones,
// an existing key keeps its position
func (p *Params) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Keys returns the keys in order
func (p *Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of keys
func (p *Params) Len() int {
	return len(p.keys)
}

// Map returns a copy of the parameters as a plain map
func (p *Params) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Encode joins the parameters as k1=v1&k2=v2
func (p *Params) Encode() string {
	pairs := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		pairs = append(pairs, k+"="+p.values[k])
	}
	return strings.Join(pairs, "&")
}

// Split separates rawURL into the part before the query string and the raw
// query. The fragment is dropped
func Split(rawURL string) (base, query string) {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	base, query, _ = strings.Cut(rawURL, "?")
	return base, query
}

// Parse reads the query string of rawURL. Empty segments are skipped, a
// segment without '=' yields an empty value and the last duplicate wins
func Parse(rawURL string) *Params {
	_, query := Split(rawURL)
	return ParseQuery(query)
}

// ParseQuery is Parse for a bare query string without the leading '?'
func ParseQuery(query string) *Params {
	p := NewParams()
	for _, segment := range strings.Split(query, "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		p.Set(key, value)
	}
	return p
}

// Serialize merges overrides into the parameters of rawURL and returns the
// rewritten URL. Existing keys keep their order; keys only present in
// overrides follow in sorted order. Without any parameter the URL has no '?'
func Serialize(overrides map[string]string, rawURL string) string {
	base, query := Split(rawURL)
	p := ParseQuery(query)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Set(k, overrides[k])
	}

	if p.Len() == 0 {
		return base
	}
	return base + "?" + p.Encode()
}
