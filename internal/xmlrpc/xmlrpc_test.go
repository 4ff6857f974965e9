package xmlrpc

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip_AllValueKinds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int", 42, 42},
		{"negative int64", int64(-7), -7},
		{"double", 3.25, 3.25},
		{"bool true", true, true},
		{"bool false", false, false},
		{"string", "hello", "hello"},
		{"special characters", `a < b && "c" > 'd'`, `a < b && "c" > 'd'`},
		{"newlines", "line1\nline2\r\n", "line1\nline2\r\n"},
		{"empty string", "", ""},
		{"nil", nil, nil},
		{"nested array", []any{1, "two", []any{3.5, false}}, []any{1, "two", []any{3.5, false}}},
		{"string slice", []string{"id", "name"}, []any{"id", "name"}},
		{"empty array", []any{}, []any{}},
		{
			"nested struct",
			map[string]any{"a": 1, "b": map[string]any{"c": []any{"x&y"}}, "n": nil},
			map[string]any{"a": 1, "b": map[string]any{"c": []any{"x&y"}}, "n": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Request side: the remote parses what we send.
			body, err := EncodeCall("echo", tt.in)
			require.NoError(t, err)
			method, params, err := DecodeCall(body)
			require.NoError(t, err)
			assert.Equal(t, "echo", method)
			require.Len(t, params, 1)
			assert.Equal(t, tt.want, params[0])

			// Response side: the remote echoes it back.
			resp, err := EncodeResponse(params[0])
			require.NoError(t, err)
			got, err := DecodeResponse(resp)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeCall_EscapesMarkup(t *testing.T) {
	body, err := EncodeCall("execute_kw", `<script>&"`)
	require.NoError(t, err)
	s := string(body)
	assert.NotContains(t, s, "<script>")
	assert.Contains(t, s, "&lt;script&gt;&amp;&#34;")
}

func TestEncodeCall_Layout(t *testing.T) {
	body, err := EncodeCall("execute_kw", "db", 2, map[string]any{"limit": 5})
	require.NoError(t, err)
	s := string(body)
	assert.True(t, strings.HasPrefix(s, `<?xml version="1.0"`))
	assert.Contains(t, s, "<methodName>execute_kw</methodName>")
	assert.Contains(t, s, "<param><value><string>db</string></value></param>")
	assert.Contains(t, s, "<param><value><int>2</int></value></param>")
	assert.Contains(t, s, "<member><name>limit</name><value><int>5</int></value></member>")
}

func TestEncodeCall_StructMembersSorted(t *testing.T) {
	body, err := EncodeCall("m", map[string]any{"order": "x", "fields": []string{"id"}, "limit": 1})
	require.NoError(t, err)
	s := string(body)
	assert.Less(t, strings.Index(s, "fields"), strings.Index(s, "limit"))
	assert.Less(t, strings.Index(s, "limit"), strings.Index(s, "order"))
}

func TestEncodeCall_Unsupported(t *testing.T) {
	_, err := EncodeCall("m", struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = EncodeCall("m", map[int]any{1: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = EncodeCall("m", math.Inf(1))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeCall_Uint64(t *testing.T) {
	body, err := EncodeCall("m", uint64(5), uintptr(7))
	require.NoError(t, err)
	assert.Contains(t, string(body), "<param><value><int>5</int></value></param>")
	assert.Contains(t, string(body), "<param><value><int>7</int></value></param>")

	_, err = EncodeCall("m", uint64(math.MaxUint64))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDecodeResponse_Fault(t *testing.T) {
	body, err := EncodeFault(3, "Access Denied")
	require.NoError(t, err)

	v, err := DecodeResponse(body)
	assert.Nil(t, v)

	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, 3, fault.Code)
	assert.Equal(t, "Access Denied", fault.String)
	assert.Equal(t, map[string]any{"faultCode": 3, "faultString": "Access Denied"}, fault.Value)
}

func TestDecodeResponse_LooseValues(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want any
	}{
		{"untagged text", `<value>plain</value>`, "plain"},
		{"i4", `<value><i4> 12 </i4></value>`, 12},
		{"unknown tag", `<value><dateTime.iso8601>20240101T10:00:00</dateTime.iso8601></value>`, "20240101T10:00:00"},
		{"bad int degrades", `<value><int>abc</int></value>`, "abc"},
		{"bad double degrades", `<value><double>1,5</double></value>`, "1,5"},
		{"boolean textual", `<value><boolean>true</boolean></value>`, false},
		{"array without data", `<value><array></array></value>`, []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "<methodResponse><params><param>" + tt.xml + "</param></params></methodResponse>"
			got, err := DecodeResponse([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeResponse_Failures(t *testing.T) {
	_, err := DecodeResponse(nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = DecodeResponse([]byte("   \n"))
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = DecodeResponse([]byte("<methodResponse><params></params></methodResponse>"))
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = DecodeResponse([]byte("<html><body>502 Bad Gateway</body></html>"))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = DecodeResponse([]byte("not xml at all <"))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
