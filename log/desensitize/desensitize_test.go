package desensitize

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinRules(t *testing.T) {
	h := NewHook(BuiltinRules()...)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bearer", "Authorization: Bearer abc.def-ghi", "Authorization: Bearer ******"},
		{"json token", `{"access_token":"abc","token_type":"bearer"}`, `{"access_token":"******","token_type":"bearer"}`},
		{"json password", `{"password": "p@ss"}`, `{"password": "******"}`},
		{"form password", "username=dev&password=p%40ss&scope=", "username=dev&password=******&scope="},
		{"untouched", "stream connection closed", "stream connection closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Desensitize(tt.in))
		})
	}
}

func TestHookRules(t *testing.T) {
	h := NewHook()
	assert.Equal(t, 0, h.RuleCount())

	h.AddRule(PasswordRule, PasswordRule)
	assert.Equal(t, 1, h.RuleCount(), "同名规则只保留一个")

	r, ok := h.GetRule("password")
	require.True(t, ok)
	r.SetEnabled(false)
	assert.Equal(t, `{"password":"x"}`, h.Desensitize(`{"password":"x"}`))
	r.SetEnabled(true)

	assert.True(t, h.RemoveRule("password"))
	assert.False(t, h.RemoveRule("password"))
}

func TestNewPatternRuleInvalid(t *testing.T) {
	_, err := NewPatternRule("", "x", "y")
	assert.Error(t, err)
	_, err = NewPatternRule("bad", "(", "y")
	assert.Error(t, err)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, NewHook(BearerRule))

	in := []byte("dial with Bearer abc123\n")
	n, err := w.Write(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, "dial with Bearer ******\n", buf.String())
}
