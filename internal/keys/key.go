// Package keys defines the logical identifiers for physical keyboard keys.
//
// A Key is stable across platforms and survives serialization: String gives
// the canonical name written to profile descriptors and Parse accepts that
// name plus every historical spelling found in existing sound packs.
package keys

// Key identifies one physical key. The zero value None means "no key".
type Key uint16

const (
	None Key = iota

	// Letters
	A
	B
	C
	D
	E
	F
	G
	H
	I
	J
	K
	L
	M
	N
	O
	P
	Q
	R
	S
	T
	U
	V
	W
	X
	Y
	Z

	// Top-row digits
	D0
	D1
	D2
	D3
	D4
	D5
	D6
	D7
	D8
	D9

	// Function keys
	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	F13
	F14
	F15
	F16
	F17
	F18
	F19
	F20
	F21
	F22
	F23
	F24

	// Keypad
	NumPad0
	NumPad1
	NumPad2
	NumPad3
	NumPad4
	NumPad5
	NumPad6
	NumPad7
	NumPad8
	NumPad9
	Multiply
	Add
	Subtract
	Decimal
	Divide

	// Editing and whitespace
	Space
	Enter
	Backspace
	Tab
	CapsLock
	Escape
	Insert
	Delete
	Home
	End
	PageUp
	PageDown

	// Modifiers
	LeftShift
	RightShift
	LeftCtrl
	RightCtrl
	LeftAlt
	RightAlt
	LeftWin
	RightWin
	Apps

	// Arrows
	Up
	Down
	Left
	Right

	// Locks and system
	PrintScreen
	Pause
	ScrollLock
	NumLock

	// Punctuation (US layout positions)
	OemTilde
	OemMinus
	OemPlus
	OemOpenBrackets
	OemCloseBrackets
	OemBackslash
	OemSemicolon
	OemQuotes
	OemComma
	OemPeriod
	OemQuestion

	// Media
	VolumeMute
	VolumeDown
	VolumeUp
	MediaNext
	MediaPrevious
	MediaStop
	MediaPlayPause

	keyCount
)

var names = [keyCount]string{
	None: "None",
	A:    "A", B: "B", C: "C", D: "D", E: "E", F: "F", G: "G", H: "H", I: "I",
	J: "J", K: "K", L: "L", M: "M", N: "N", O: "O", P: "P", Q: "Q", R: "R",
	S: "S", T: "T", U: "U", V: "V", W: "W", X: "X", Y: "Y", Z: "Z",
	D0: "D0", D1: "D1", D2: "D2", D3: "D3", D4: "D4",
	D5: "D5", D6: "D6", D7: "D7", D8: "D8", D9: "D9",
	F1: "F1", F2: "F2", F3: "F3", F4: "F4", F5: "F5", F6: "F6",
	F7: "F7", F8: "F8", F9: "F9", F10: "F10", F11: "F11", F12: "F12",
	F13: "F13", F14: "F14", F15: "F15", F16: "F16", F17: "F17", F18: "F18",
	F19: "F19", F20: "F20", F21: "F21", F22: "F22", F23: "F23", F24: "F24",
	NumPad0: "NumPad0", NumPad1: "NumPad1", NumPad2: "NumPad2", NumPad3: "NumPad3",
	NumPad4: "NumPad4", NumPad5: "NumPad5", NumPad6: "NumPad6", NumPad7: "NumPad7",
	NumPad8: "NumPad8", NumPad9: "NumPad9",
	Multiply: "Multiply", Add: "Add", Subtract: "Subtract", Decimal: "Decimal", Divide: "Divide",
	Space: "Space", Enter: "Enter", Backspace: "Back", Tab: "Tab",
	CapsLock: "CapsLock", Escape: "Escape", Insert: "Insert", Delete: "Delete",
	Home: "Home", End: "End", PageUp: "PageUp", PageDown: "PageDown",
	LeftShift: "LeftShift", RightShift: "RightShift", LeftCtrl: "LeftCtrl",
	RightCtrl: "RightCtrl", LeftAlt: "LeftAlt", RightAlt: "RightAlt",
	LeftWin: "LWin", RightWin: "RWin", Apps: "Apps",
	Up: "Up", Down: "Down", Left: "Left", Right: "Right",
	PrintScreen: "PrintScreen", Pause: "Pause", ScrollLock: "Scroll", NumLock: "NumLock",
	OemTilde: "OemTilde", OemMinus: "OemMinus", OemPlus: "OemPlus",
	OemOpenBrackets: "OemOpenBrackets", OemCloseBrackets: "OemCloseBrackets",
	OemBackslash: "Oem5", OemSemicolon: "OemSemicolon", OemQuotes: "OemQuotes",
	OemComma: "OemComma", OemPeriod: "OemPeriod", OemQuestion: "OemQuestion",
	VolumeMute: "VolumeMute", VolumeDown: "VolumeDown", VolumeUp: "VolumeUp",
	MediaNext: "MediaNextTrack", MediaPrevious: "MediaPreviousTrack",
	MediaStop: "MediaStop", MediaPlayPause: "MediaPlayPause",
}

// String returns the canonical serialized name of the key.
func (k Key) String() string {
	if k < keyCount {
		return names[k]
	}
	return "None"
}

// Valid reports whether k is a real key (not None and inside the enumeration).
func (k Key) Valid() bool {
	return k > None && k < keyCount
}

// IsDigit reports whether k is one of the top-row digit keys.
func (k Key) IsDigit() bool {
	return k >= D0 && k <= D9
}

// All returns every valid key in enumeration order.
func All() []Key {
	out := make([]Key, 0, keyCount-1)
	for k := None + 1; k < keyCount; k++ {
		out = append(out, k)
	}
	return out
}
