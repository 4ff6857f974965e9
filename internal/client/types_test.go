package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt(t *testing.T) {
	assert.Equal(t, 5, Int(5))
	assert.Equal(t, 5, Int(int64(5)))
	assert.Equal(t, 5, Int(5.9))
	assert.Equal(t, 12, Int(" 12 "))
	assert.Equal(t, 0, Int("x"))
	assert.Equal(t, 0, Int(false))
	assert.Equal(t, 0, Int(nil))
}

func TestFloat(t *testing.T) {
	assert.Equal(t, 10.5, Float(10.5))
	assert.Equal(t, 3.0, Float(3))
	assert.Equal(t, 99.99, Float("99.99"))
	assert.Equal(t, 0.0, Float(false))
}

func TestString(t *testing.T) {
	assert.Equal(t, "abc", String("abc"))
	assert.Equal(t, "", String(false))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "7", String(7))
}

func TestMany2One(t *testing.T) {
	id, name, ok := Many2One([]any{5, "Acme Corp"})
	assert.True(t, ok)
	assert.Equal(t, 5, id)
	assert.Equal(t, "Acme Corp", name)

	id, name, ok = Many2One(7)
	assert.True(t, ok)
	assert.Equal(t, 7, id)
	assert.Empty(t, name)

	_, _, ok = Many2One(false)
	assert.False(t, ok)
	_, _, ok = Many2One(nil)
	assert.False(t, ok)
	_, _, ok = Many2One([]any{})
	assert.False(t, ok)
}

func TestCallOptions_Kwargs(t *testing.T) {
	var nilOpts *CallOptions
	assert.Nil(t, nilOpts.kwargs())
	assert.Empty(t, (&CallOptions{}).kwargs())

	kw := (&CallOptions{Fields: []string{"id"}, Limit: 10, Offset: 20, Order: "date_order desc"}).kwargs()
	assert.Equal(t, map[string]any{
		"fields": []string{"id"},
		"limit":  10,
		"offset": 20,
		"order":  "date_order desc",
	}, kw)
}

func TestDomain_Args(t *testing.T) {
	d := Domain{}.Where("is_company", "=", true)
	assert.Equal(t, []any{[]any{"is_company", "=", true}}, d.args())
	assert.Equal(t, []any{}, Domain(nil).args())
}
