package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Key
		wantOK bool
	}{
		{name: "bare digit", input: "5", want: D5, wantOK: true},
		{name: "prefixed digit", input: "D5", want: D5, wantOK: true},
		{name: "canonical", input: "Space", want: Space, wantOK: true},
		{name: "lowercase canonical", input: "space", want: Space, wantOK: true},
		{name: "virtual keyboard label", input: "L Shift", want: LeftShift, wantOK: true},
		{name: "surrounding whitespace", input: "  Enter ", want: Enter, wantOK: true},
		{name: "lone space", input: " ", want: Space, wantOK: true},
		{name: "platform spelling", input: "Return", want: Enter, wantOK: true},
		{name: "symbol label", input: "[ {", want: OemOpenBrackets, wantOK: true},
		{name: "arrow glyph", input: "←", want: Left, wantOK: true},
		{name: "letter D", input: "d", want: D, wantOK: true},
		{name: "fn is unbindable", input: "Fn", want: None, wantOK: false},
		{name: "none is unbindable", input: "None", want: None, wantOK: false},
		{name: "empty", input: "", want: None, wantOK: false},
		{name: "unknown", input: "Hyper", want: None, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParse_RoundTripsEveryKey(t *testing.T) {
	for _, k := range All() {
		got, ok := Parse(k.String())
		require.True(t, ok, "key %d name %q", k, k.String())
		require.Equal(t, k, got)
	}
}

func TestParse_AliasesResolve(t *testing.T) {
	for _, a := range Aliases() {
		got, ok := Parse(a.Name)
		require.True(t, ok, a.Name)
		require.Equal(t, a.Key, got, a.Name)
	}
}

func TestMustParse_PanicsOnUnknown(t *testing.T) {
	require.Equal(t, Tab, MustParse("Tab"))
	require.Panics(t, func() { MustParse("NotAKey") })
}

func TestKey_Predicates(t *testing.T) {
	require.False(t, None.Valid())
	require.True(t, A.Valid())
	require.False(t, keyCount.Valid())
	require.Equal(t, "None", Key(9999).String())

	require.True(t, D0.IsDigit())
	require.True(t, D9.IsDigit())
	require.False(t, NumPad5.IsDigit())
	require.Len(t, All(), int(keyCount)-1)
}

func TestFromVirtualKey(t *testing.T) {
	tests := []struct {
		vk   uint32
		want Key
	}{
		{0x41, A},
		{0x5A, Z},
		{0x35, D5},
		{0x20, Space},
		{0x0D, Enter},
		{0xA1, RightShift},
		{0x10, LeftShift},
		{0x65, NumPad5},
		{0x70, F1},
		{0x87, F24},
		{0xBA, OemSemicolon},
		{0xFF, None},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FromVirtualKey(tt.vk), "vk 0x%X", tt.vk)
	}
}

func TestFromLinuxCode(t *testing.T) {
	tests := []struct {
		code uint16
		want Key
	}{
		{1, Escape},
		{2, D1},
		{11, D0},
		{30, A},
		{57, Space},
		{28, Enter},
		{96, Enter},
		{54, RightShift},
		{183, F13},
		{194, F24},
		{0, None},
		{500, None},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FromLinuxCode(tt.code), "code %d", tt.code)
	}
}

func TestFromRune(t *testing.T) {
	require.Equal(t, A, FromRune('a'))
	require.Equal(t, A, FromRune('A'))
	require.Equal(t, D7, FromRune('7'))
	require.Equal(t, D7, FromRune('&'))
	require.Equal(t, Space, FromRune(' '))
	require.Equal(t, Enter, FromRune('\r'))
	require.Equal(t, Backspace, FromRune(0x7f))
	require.Equal(t, None, FromRune('é'))
}

// Property: any valid key survives a String/Parse round trip, and the
// serialized name is never empty.
func TestKey_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := Key(rapid.IntRange(int(None)+1, int(keyCount)-1).Draw(t, "key"))
		name := k.String()
		if name == "" {
			t.Fatalf("key %d has no name", k)
		}
		got, ok := Parse(name)
		if !ok || got != k {
			t.Fatalf("Parse(%q) = %v, %v; want %v", name, got, ok, k)
		}
	})
}
