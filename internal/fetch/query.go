package fetch

import (
	"net/url"
	"strings"
)

// sensitiveParams are masked when a query is rendered for logs.
var sensitiveParams = map[string]bool{
	"token_auth": true,
}

type param struct {
	key   string
	value string
}

// QuerySpec is an ordered set of request parameters. Values are immutable:
// With returns a modified copy.
type QuerySpec struct {
	params []param
}

// NewQuerySpec builds a spec from alternating key/value pairs.
func NewQuerySpec(pairs ...string) QuerySpec {
	if len(pairs)%2 == 1 {
		panic("fetch.NewQuerySpec: odd argument count")
	}
	spec := QuerySpec{params: make([]param, 0, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		spec = spec.With(pairs[i], pairs[i+1])
	}
	return spec
}

// With returns a copy with key set to value. An existing key keeps its
// position.
func (q QuerySpec) With(key, value string) QuerySpec {
	params := make([]param, len(q.params), len(q.params)+1)
	copy(params, q.params)
	for i := range params {
		if params[i].key == key {
			params[i].value = value
			return QuerySpec{params: params}
		}
	}
	return QuerySpec{params: append(params, param{key: key, value: value})}
}

// Get returns the value for key, or "" when unset.
func (q QuerySpec) Get(key string) string {
	for _, p := range q.params {
		if p.key == key {
			return p.value
		}
	}
	return ""
}

// Len returns the number of parameters.
func (q QuerySpec) Len() int {
	return len(q.params)
}

// Encode renders the parameters in insertion order using RFC 3986
// percent-encoding (spaces become %20).
func (q QuerySpec) Encode() string {
	var b strings.Builder
	for i, p := range q.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p.key))
		b.WriteByte('=')
		b.WriteString(escape(p.value))
	}
	return b.String()
}

// String renders the parameters unescaped, masking credentials.
func (q QuerySpec) String() string {
	parts := make([]string, len(q.params))
	for i, p := range q.params {
		value := p.value
		if sensitiveParams[p.key] {
			value = "***"
		}
		parts[i] = p.key + "=" + value
	}
	return strings.Join(parts, "&")
}

// URL appends the encoded parameters to endpoint, which may already carry a
// query string.
func (q QuerySpec) URL(endpoint string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + q.Encode()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
