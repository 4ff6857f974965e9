package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyResponse means the body was empty or carried no value at all.
	ErrEmptyResponse = errors.New("empty xml-rpc response")
	// ErrMalformedResponse means the body was not an XML-RPC envelope.
	ErrMalformedResponse = errors.New("malformed xml-rpc response")
)

// Fault is a fault envelope returned by the remote side.
type Fault struct {
	Code   int
	String string
	// Value is the full decoded fault payload.
	Value any
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xml-rpc fault %d: %s", f.Code, f.String)
}

// node is a generic element tree; decoding dispatches on tag names only.
type node struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	Nodes   []node `xml:",any"`
}

func (n *node) child(name string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

func parse(data []byte, root string) (*node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyResponse
	}
	var n node
	if err := xml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if n.XMLName.Local != root {
		return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrMalformedResponse, n.XMLName.Local)
	}
	return &n, nil
}

// DecodeResponse decodes a methodResponse body. A fault envelope is returned
// as a *Fault error, never as a value.
func DecodeResponse(data []byte) (any, error) {
	root, err := parse(data, "methodResponse")
	if err != nil {
		return nil, err
	}

	if f := root.child("fault"); f != nil {
		return nil, newFault(f.child("value"))
	}

	params := root.child("params")
	if params == nil {
		return nil, ErrEmptyResponse
	}
	param := params.child("param")
	if param == nil {
		return nil, ErrEmptyResponse
	}
	v := param.child("value")
	if v == nil {
		return nil, ErrEmptyResponse
	}
	return decodeValue(v), nil
}

// DecodeCall decodes a methodCall body into its method name and parameters.
func DecodeCall(data []byte) (string, []any, error) {
	root, err := parse(data, "methodCall")
	if err != nil {
		return "", nil, err
	}
	name := root.child("methodName")
	if name == nil {
		return "", nil, fmt.Errorf("%w: missing methodName", ErrMalformedResponse)
	}

	params := []any{}
	if ps := root.child("params"); ps != nil {
		for i := range ps.Nodes {
			p := &ps.Nodes[i]
			if p.XMLName.Local != "param" {
				continue
			}
			if v := p.child("value"); v != nil {
				params = append(params, decodeValue(v))
			} else {
				params = append(params, nil)
			}
		}
	}
	return strings.TrimSpace(name.Text), params, nil
}

func newFault(v *node) *Fault {
	f := &Fault{}
	if v == nil {
		f.String = "unknown fault"
		return f
	}
	f.Value = decodeValue(v)
	if m, ok := f.Value.(map[string]any); ok {
		switch code := m["faultCode"].(type) {
		case int:
			f.Code = code
		case string:
			f.Code, _ = strconv.Atoi(strings.TrimSpace(code))
		}
		if s, ok := m["faultString"].(string); ok {
			f.String = s
		}
	}
	return f
}

// decodeValue decodes a <value> element. Untagged values and unknown tags
// yield their text; numbers that fail to parse yield their text as well.
func decodeValue(v *node) any {
	if len(v.Nodes) == 0 {
		return v.Text
	}
	t := &v.Nodes[0]

	switch t.XMLName.Local {
	case "array":
		items := []any{}
		data := t.child("data")
		if data == nil {
			return items
		}
		for i := range data.Nodes {
			if data.Nodes[i].XMLName.Local == "value" {
				items = append(items, decodeValue(&data.Nodes[i]))
			}
		}
		return items

	case "struct":
		m := map[string]any{}
		for i := range t.Nodes {
			member := &t.Nodes[i]
			if member.XMLName.Local != "member" {
				continue
			}
			name := member.child("name")
			if name == nil {
				continue
			}
			var val any
			if mv := member.child("value"); mv != nil {
				val = decodeValue(mv)
			}
			m[name.Text] = val
		}
		return m

	case "int", "i4", "i8":
		n, err := strconv.Atoi(strings.TrimSpace(t.Text))
		if err != nil {
			return t.Text
		}
		return n

	case "double":
		f, err := strconv.ParseFloat(strings.TrimSpace(t.Text), 64)
		if err != nil {
			return t.Text
		}
		return f

	case "boolean":
		return strings.TrimSpace(t.Text) == "1"

	case "nil":
		return nil

	default:
		return t.Text
	}
}
