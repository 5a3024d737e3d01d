package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDoubleEncodedEnvelope(t *testing.T) {
	body := []byte(`{"data":"{\"answer\":\"42\",\"sql\":\"SELECT 1\"}"}`)

	res := Normalize(body)
	assert.Equal(t, "42", res.Answer)
	assert.Equal(t, "SELECT 1", res.SQL)
	assert.Nil(t, res.Data)
}

func TestNormalizeWholeBodyEncodedAsString(t *testing.T) {
	body := []byte(`"{\"answer\":\"hi\",\"sql\":\"SELECT 2\",\"data\":[[\"A\",1]]}"`)

	res := Normalize(body)
	assert.Equal(t, "hi", res.Answer)
	assert.Equal(t, "SELECT 2", res.SQL)
	assert.Equal(t, []any{[]any{"A", float64(1)}}, res.Data)
}

func TestNormalizeRowKeyOrder(t *testing.T) {
	res := Normalize([]byte(`{"answer":"a","queryData":[[1,2]],"rows":[[3,4]]}`))
	assert.Equal(t, []any{[]any{float64(1), float64(2)}}, res.Data)

	res = Normalize([]byte(`{"answer":"a","data":"not rows","rows":[[3,4]]}`))
	assert.Equal(t, []any{[]any{float64(3), float64(4)}}, res.Data)

	res = Normalize([]byte(`{"answer":"a","data":"[[\"x\",5]]"}`))
	assert.Equal(t, []any{[]any{"x", float64(5)}}, res.Data)
}

func TestNormalizeNonStringAnswer(t *testing.T) {
	res := Normalize([]byte(`{"answer":42,"sql":null}`))
	assert.Equal(t, "42", res.Answer)
	assert.Equal(t, "", res.SQL)
}

func TestNormalizeMalformed(t *testing.T) {
	for _, body := range []string{``, `not json`, `[1,2,3]`, `"just text"`, `null`, `{"data":{"nothing":"here"}}`} {
		res := Normalize([]byte(body))
		assert.Empty(t, res.Answer, body)
		assert.Empty(t, res.SQL, body)
		assert.Nil(t, res.Data, body)
	}
}
