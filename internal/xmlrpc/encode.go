// Package xmlrpc encodes and decodes XML-RPC payloads.
//
// Values travel as plain Go values:
//
//	int, int8..int64, uint..uint64   <int>       (uint64 up to MaxInt64)
//	float32, float64                 <double>
//	bool                             <boolean>   (1 / 0)
//	string                           <string>    (markup escaped)
//	slices and arrays                <array><data>...</data></array>
//	map[string]T                     <struct>    (members sorted by name)
//	nil                              <nil/>
//
// Decoding produces int, float64, bool, string, []any, map[string]any and nil.
// Anything the decoder does not recognise comes back as its raw text.
package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// ErrUnsupportedType is returned when a Go value has no XML-RPC rendering.
var ErrUnsupportedType = errors.New("unsupported type")

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// EncodeCall renders a methodCall envelope with one <param> per element of params.
func EncodeCall(method string, params ...any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("<methodCall><methodName>")
	if err := xml.EscapeText(&buf, []byte(method)); err != nil {
		return nil, fmt.Errorf("escape method name: %w", err)
	}
	buf.WriteString("</methodName><params>")
	for i, p := range params {
		buf.WriteString("<param>")
		if err := encodeValue(&buf, reflect.ValueOf(p)); err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		buf.WriteString("</param>")
	}
	buf.WriteString("</params></methodCall>")
	return buf.Bytes(), nil
}

// EncodeResponse renders a successful methodResponse carrying v.
func EncodeResponse(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("<methodResponse><params><param>")
	if err := encodeValue(&buf, reflect.ValueOf(v)); err != nil {
		return nil, fmt.Errorf("response value: %w", err)
	}
	buf.WriteString("</param></params></methodResponse>")
	return buf.Bytes(), nil
}

// EncodeFault renders a fault methodResponse.
func EncodeFault(code int, message string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("<methodResponse><fault>")
	fault := map[string]any{"faultCode": code, "faultString": message}
	if err := encodeValue(&buf, reflect.ValueOf(fault)); err != nil {
		return nil, fmt.Errorf("fault value: %w", err)
	}
	buf.WriteString("</fault></methodResponse>")
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v reflect.Value) error {
	if !v.IsValid() {
		buf.WriteString("<value><nil/></value>")
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			buf.WriteString("<value><nil/></value>")
			return nil
		}
		return encodeValue(buf, v.Elem())

	case reflect.Bool:
		if v.Bool() {
			buf.WriteString("<value><boolean>1</boolean></value>")
		} else {
			buf.WriteString("<value><boolean>0</boolean></value>")
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString("<value><int>")
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
		buf.WriteString("</int></value>")

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if v.Uint() > math.MaxInt64 {
			return fmt.Errorf("%w: %d overflows int", ErrUnsupportedType, v.Uint())
		}
		buf.WriteString("<value><int>")
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
		buf.WriteString("</int></value>")

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite double %v", ErrUnsupportedType, f)
		}
		buf.WriteString("<value><double>")
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		buf.WriteString("</double></value>")

	case reflect.String:
		buf.WriteString("<value><string>")
		if err := xml.EscapeText(buf, []byte(v.String())); err != nil {
			return err
		}
		buf.WriteString("</string></value>")

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			buf.WriteString("<value><array><data></data></array></value>")
			return nil
		}
		buf.WriteString("<value><array><data>")
		for i := 0; i < v.Len(); i++ {
			if err := encodeValue(buf, v.Index(i)); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		buf.WriteString("</data></array></value>")

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key %s", ErrUnsupportedType, v.Type().Key())
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)

		buf.WriteString("<value><struct>")
		for _, k := range keys {
			buf.WriteString("<member><name>")
			if err := xml.EscapeText(buf, []byte(k)); err != nil {
				return err
			}
			buf.WriteString("</name>")
			kv := reflect.ValueOf(k).Convert(v.Type().Key())
			if err := encodeValue(buf, v.MapIndex(kv)); err != nil {
				return fmt.Errorf("member %q: %w", k, err)
			}
			buf.WriteString("</member>")
		}
		buf.WriteString("</struct></value>")

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())
	}
	return nil
}
