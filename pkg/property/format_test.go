package property_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	"github.com/dmitrymomot/togglekit/pkg/property"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("entries and comments", func(t *testing.T) {
		t.Parallel()
		doc := `
# comment
! another comment
F1 = true
F1.strategy: release-date
F1.param.date=2030-01-01
F1.param.time = 12:30
EMPTY=
`
		props, err := property.Parse(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"F1":            "true",
			"F1.strategy":   "release-date",
			"F1.param.date": "2030-01-01",
			"F1.param.time": "12:30",
			"EMPTY":         "",
		}, props)
	})

	t.Run("later duplicates win", func(t *testing.T) {
		t.Parallel()
		props, err := property.Parse(strings.NewReader("F1=true\nF1=false\n"))
		require.NoError(t, err)
		assert.Equal(t, "false", props["F1"])
	})

	t.Run("missing separator", func(t *testing.T) {
		t.Parallel()
		_, err := property.Parse(strings.NewReader("F1=true\nbroken line\n"))
		require.ErrorIs(t, err, feature.ErrMalformedEntry)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()
		_, err := property.Parse(strings.NewReader(" = true"))
		require.ErrorIs(t, err, feature.ErrMalformedEntry)
	})
}

func TestEncode(t *testing.T) {
	t.Parallel()

	props := map[string]string{
		"F2":             "false",
		"F1.strategy":    "username",
		"F1":             "true",
		"F1.param.users": "a,b",
	}

	var buf bytes.Buffer
	require.NoError(t, property.Encode(&buf, props))
	assert.Equal(t, "F1=true\nF1.param.users=a,b\nF1.strategy=username\nF2=false\n", buf.String())

	parsed, err := property.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, props, parsed)
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"true", "TRUE", "yes", "Yes", "enable", "enabled", " Enabled "} {
		assert.True(t, property.ParseBool(v), v)
	}
	for _, v := range []string{"", "false", "no", "1", "on", "disabled", "truth"} {
		assert.False(t, property.ParseBool(v), v)
	}
}

func TestEncode_Escaping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		props map[string]string
		line  string
	}{
		{"newline in value", map[string]string{"F.param.msg": "line1\nline2"}, `F.param.msg=line1\nline2`},
		{"separator in key", map[string]string{"F.param.a:b": "v", "F.param.c=d": "w"}, `F.param.a\:b=v` + "\n" + `F.param.c\=d=w`},
		{"separators in value", map[string]string{"F.param.time": "12:30=x"}, `F.param.time=12:30=x`},
		{"leading and trailing space", map[string]string{"F.param.pad": "  v "}, `F.param.pad=\  v\ `},
		{"single space", map[string]string{"F.param.pad": " "}, `F.param.pad=\ `},
		{"space in key", map[string]string{"F.param.a b": "v"}, `F.param.a\ b=v`},
		{"comment marker", map[string]string{"#F": "#x", "!G": "y"}, `\!G=y` + "\n" + `\#F=#x`},
		{"backslashes", map[string]string{`F.param.path`: `C:\dir\`}, `F.param.path=C:\\dir\\`},
		{"control characters", map[string]string{"F.param.c": "a\tb\rc\fd"}, `F.param.c=a\tb\rc\fd`},
		{"escaped space before trailing backslash", map[string]string{"F.param.s": `a\ `}, `F.param.s=a\\\ `},
		{"unicode", map[string]string{"F.param.name": "Zoë 東京"}, `F.param.name=Zoë 東京`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, property.Encode(&buf, tt.props))
			assert.Equal(t, tt.line+"\n", buf.String())

			parsed, err := property.Parse(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.props, parsed)
		})
	}
}

func TestParse_Escapes(t *testing.T) {
	t.Parallel()

	t.Run("hand written escapes", func(t *testing.T) {
		t.Parallel()
		props, err := property.Parse(strings.NewReader("a\\:b = caf\\u00e9\\x\n  key\\ 2 :\\ v \n"))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a:b": "caféx", "key 2": " v"}, props)
	})

	t.Run("dangling escape", func(t *testing.T) {
		t.Parallel()
		_, err := property.Parse(strings.NewReader("F=abc\\\n"))
		require.ErrorIs(t, err, feature.ErrMalformedEntry)
	})

	t.Run("short unicode escape", func(t *testing.T) {
		t.Parallel()
		_, err := property.Parse(strings.NewReader("F=\\u12\n"))
		require.ErrorIs(t, err, feature.ErrMalformedEntry)
	})

	t.Run("escaped separator only", func(t *testing.T) {
		t.Parallel()
		_, err := property.Parse(strings.NewReader("F\\=true\n"))
		require.ErrorIs(t, err, feature.ErrMalformedEntry)
	})
}
