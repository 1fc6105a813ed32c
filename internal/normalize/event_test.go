package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wisegate/pkg/errors"
)

func TestDecode(t *testing.T) {
	e, err := Decode([]byte(`{"s":1,"p1v00r0000x00":"250","nested":{"a":true}}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), e["s"])
	assert.Equal(t, "250", e["p1v00r0000x00"])

	nested, ok := e.Object("nested")
	require.True(t, ok)
	assert.True(t, nested.Has("a"))

	_, ok = e.Object("s")
	assert.False(t, ok)
}

func TestDecode_Errors(t *testing.T) {
	for _, payload := range []string{
		``,
		`{"s":`,
		`not json`,
		`[1,2,3]`,
		`"text"`,
		`null`,
		`{"a":1}{"b":2}`,
	} {
		t.Run(payload, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			require.Error(t, err)
			assert.True(t, apperrors.IsDecode(err))
		})
	}
}

func TestDecode_TrailingWhitespace(t *testing.T) {
	_, err := Decode([]byte("{\"s\":1}\n  "))
	assert.NoError(t, err)
}
