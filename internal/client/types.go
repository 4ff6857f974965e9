package client

import (
	"math"
	"strconv"
	"strings"
)

// CallOptions are the keyword arguments of an execute_kw call.
// Zero fields are left out of the request.
type CallOptions struct {
	Fields []string
	Limit  int
	Offset int
	Order  string
	// Context is the remote call context (lang, tz, ...).
	Context map[string]any
}

func (o *CallOptions) kwargs() map[string]any {
	if o == nil {
		return nil
	}
	kw := map[string]any{}
	if len(o.Fields) > 0 {
		kw["fields"] = o.Fields
	}
	if o.Limit > 0 {
		kw["limit"] = o.Limit
	}
	if o.Offset > 0 {
		kw["offset"] = o.Offset
	}
	if o.Order != "" {
		kw["order"] = o.Order
	}
	if len(o.Context) > 0 {
		kw["context"] = o.Context
	}
	return kw
}

// Domain is a search filter: a list of [field, operator, value] conditions,
// implicitly AND-ed.
type Domain [][3]any

// Where appends a condition and returns the extended domain.
func (d Domain) Where(field, op string, value any) Domain {
	return append(d, [3]any{field, op, value})
}

func (d Domain) args() []any {
	out := make([]any, 0, len(d))
	for _, cond := range d {
		out = append(out, []any{cond[0], cond[1], cond[2]})
	}
	return out
}

// ServerVersion is the answer of the common endpoint's version().
type ServerVersion struct {
	ServerVersion   string
	ProtocolVersion int
}

// The remote returns false for empty fields and sometimes numbers as
// strings; the helpers below coerce such values without failing.

// Int returns v as an int, or 0.
func Int(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// Float returns v as a float64, or 0.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// String returns v as a string; false, nil and non-text values become "".
func String(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// Many2One splits a relational value. The remote sends either an
// [id, display_name] pair, a bare id, or false when unset; ok is false
// only in the last case.
func Many2One(v any) (id int, name string, ok bool) {
	switch r := v.(type) {
	case []any:
		if len(r) == 0 {
			return 0, "", false
		}
		id = Int(r[0])
		if len(r) > 1 {
			name = String(r[1])
		}
		return id, name, true
	case nil, bool:
		return 0, "", false
	default:
		return Int(r), "", true
	}
}
