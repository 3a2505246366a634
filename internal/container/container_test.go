package container

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	tests := []struct {
		scripts string
		want    []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"a.exe", []string{"a.exe"}},
		{"a.exe, b.exe", []string{"a.exe", "b.exe"}},
		{" a.exe ,b.exe,, c.ahk ", []string{"a.exe", "b.exe", "c.ahk"}},
		{",", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.scripts, func(t *testing.T) {
			assert.Equal(t, tt.want, Container{Scripts: tt.scripts}.Names())
		})
	}
}

func TestNew(t *testing.T) {
	c := New("a.exe", "b.exe")
	assert.Equal(t, "a.exe, b.exe", c.Scripts)
	assert.Equal(t, Container{}, New())
}

func TestEncodeShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Container{Scripts: "a.exe, b.exe"}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `<ScriptContainer xmlns="`+Namespace+`"`)
	assert.Contains(t, out, `xmlns:i="http://www.w3.org/2001/XMLSchema-instance"`)
	assert.Contains(t, out, "<ScriptsToLoad>a.exe, b.exe</ScriptsToLoad>")
}

func TestDecodeOriginalRecord(t *testing.T) {
	// record as written by the original launcher, without indentation
	raw := `<?xml version="1.0" encoding="utf-8"?><ScriptContainer xmlns:i="http://www.w3.org/2001/XMLSchema-instance" xmlns="` +
		Namespace + `"><ScriptsToLoad>fov.ahk, hud.exe</ScriptsToLoad></ScriptContainer>`
	c, err := Decode(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"fov.ahk", "hud.exe"}, c.Names())
}

func TestDecodeWithoutNamespace(t *testing.T) {
	c, err := Decode(strings.NewReader(`<ScriptContainer><ScriptsToLoad>x</ScriptsToLoad></ScriptContainer>`))
	require.NoError(t, err)
	assert.Equal(t, "x", c.Scripts)
}

func TestDecodeRejectsOtherRoot(t *testing.T) {
	_, err := Decode(strings.NewReader(`<Settings><ScriptsToLoad>x</ScriptsToLoad></Settings>`))
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		" ",
		"a.exe",
		"a.exe, b.exe",
		"  leading, trailing  ",
		"<tag>&amp;\"quoted\" 'single'",
		"line1\nline2\r\nline3\ttab",
		"ünïcødé, 脚本.exe",
		strings.Repeat("x,", 500),
	}
	for _, in := range inputs {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, Container{Scripts: in}))
		got, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, in, got.Scripts)
	}

	for _, in := range []string{"x\x01y", "\xff", "a.exe\x00", "\uFFFE"} {
		var buf bytes.Buffer
		err := Encode(&buf, Container{Scripts: in})
		require.ErrorIs(t, err, ErrInvalidChar, "%q", in)
		assert.Zero(t, buf.Len(), "%q", in)
	}
}
