package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/diagnostic"
)

func TestParseParamsCharacteristics(t *testing.T) {
	info, diags, err := ParseParams("paramX{a=xyz;b=42;c}")
	require.NoError(t, err)
	assert.Zero(t, diags.Len())
	require.Equal(t, []string{"paramX"}, info.Order)

	chars := info.Characteristics("paramX")
	require.Len(t, chars, 3)
	a, ok := chars.Value("a")
	assert.True(t, ok)
	assert.Equal(t, "xyz", a)
	b, _ := chars.Value("b")
	assert.Equal(t, "42", b)
	c, ok := chars["c"]
	assert.True(t, ok)
	assert.Nil(t, c)
}

func TestParseParamsMultipleNames(t *testing.T) {
	info, _, err := ParseParams(" geometry{layerType=point} , nilReason,precision{scale=2;round}")
	require.NoError(t, err)
	assert.Equal(t, []string{"geometry", "nilReason", "precision"}, info.Order)
	assert.True(t, info.Has("nilReason"))
	assert.Empty(t, info.Characteristics("nilReason"))
	assert.Len(t, info.Characteristics("precision"), 2)
}

func TestParseParamsBase64Padding(t *testing.T) {
	info, _, err := ParseParams("codec{key=dGVzdA==;iv=YWJjZA=;plain=YWJj}")
	require.NoError(t, err)
	chars := info.Characteristics("codec")

	key, _ := chars.Value("key")
	assert.Equal(t, "dGVzdA==", key)
	iv, _ := chars.Value("iv")
	assert.Equal(t, "YWJjZA=", iv)
	plain, _ := chars.Value("plain")
	assert.Equal(t, "YWJj", plain)
}

func TestParseParamsDuplicates(t *testing.T) {
	info, diags, err := ParseParams("p{a=1;a=2},p{b=3}")
	require.NoError(t, err)

	assert.Equal(t, []string{"p"}, info.Order)
	a, _ := info.Characteristics("p").Value("a")
	assert.Equal(t, "1", a)
	_, hasB := info.Characteristics("p")["b"]
	assert.False(t, hasB)

	assert.Len(t, diags.WithCode(diagnostic.CodeDuplicateCharacter), 1)
	assert.Len(t, diags.WithCode(diagnostic.CodeDuplicateParam), 1)
}

func TestParseParamsSyntaxErrors(t *testing.T) {
	cases := []string{
		"p{a=1",
		"p}a{",
		"p{a=1;}",
		"p{}",
		"p{{a}}",
		"1p",
		"a,,b",
		"p{a=}",
		"p{a=b=c}",
		"p{a==}",
	}
	for _, raw := range cases {
		_, _, err := ParseParams(raw)
		assert.ErrorIs(t, err, ErrParamSyntax, "input %q", raw)
	}
}

func TestParseParamsEmpty(t *testing.T) {
	info, diags, err := ParseParams("   ")
	require.NoError(t, err)
	assert.Empty(t, info.Order)
	assert.Zero(t, diags.Len())
}
