package canonhash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type terms struct {
	Total    float64        `json:"total"`
	Currency string         `json:"currency"`
	Extra    map[string]int `json:"extra"`
}

func TestSum_Deterministic(t *testing.T) {
	doc := terms{Total: 1000, Currency: "USD", Extra: map[string]int{"b": 2, "a": 1, "c": 3}}

	first, err := Sum(doc)
	require.NoError(t, err)
	second, err := Sum(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "sha256:"))
	assert.Len(t, first, len("sha256:")+64)
}

func TestSum_ChangesWithContent(t *testing.T) {
	base, err := Sum(terms{Total: 1000, Currency: "USD"})
	require.NoError(t, err)

	changed, err := Sum(terms{Total: 1000.01, Currency: "USD"})
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestSumBytes_KnownVector(t *testing.T) {
	assert.Equal(t,
		"sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SumBytes(nil))
}

func TestSum_Unsupported(t *testing.T) {
	_, err := Sum(make(chan int))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	doc := terms{Total: 50, Currency: "USD"}
	h, err := Sum(doc)
	require.NoError(t, err)

	ok, err := Verify(doc, h)
	require.NoError(t, err)
	assert.True(t, ok)

	doc.Total = 51
	ok, err = Verify(doc, h)
	require.NoError(t, err)
	assert.False(t, ok)
}
