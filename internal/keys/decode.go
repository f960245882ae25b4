package keys

// Windows virtual-key codes. Generic modifier codes (VK_SHIFT, VK_CONTROL,
// VK_MENU) decode to the left-hand key; the low-level hook reports sided
// codes for real presses.
var virtualKeys = map[uint32]Key{
	0x08: Backspace, 0x09: Tab, 0x0D: Enter,
	0x10: LeftShift, 0x11: LeftCtrl, 0x12: LeftAlt,
	0x13: Pause, 0x14: CapsLock, 0x1B: Escape, 0x20: Space,
	0x21: PageUp, 0x22: PageDown, 0x23: End, 0x24: Home,
	0x25: Left, 0x26: Up, 0x27: Right, 0x28: Down,
	0x2C: PrintScreen, 0x2D: Insert, 0x2E: Delete,
	0x5B: LeftWin, 0x5C: RightWin, 0x5D: Apps,
	0x6A: Multiply, 0x6B: Add, 0x6C: Decimal, 0x6D: Subtract, 0x6E: Decimal, 0x6F: Divide,
	0x90: NumLock, 0x91: ScrollLock,
	0xA0: LeftShift, 0xA1: RightShift, 0xA2: LeftCtrl, 0xA3: RightCtrl,
	0xA4: LeftAlt, 0xA5: RightAlt,
	0xAD: VolumeMute, 0xAE: VolumeDown, 0xAF: VolumeUp,
	0xB0: MediaNext, 0xB1: MediaPrevious, 0xB2: MediaStop, 0xB3: MediaPlayPause,
	0xBA: OemSemicolon, 0xBB: OemPlus, 0xBC: OemComma, 0xBD: OemMinus,
	0xBE: OemPeriod, 0xBF: OemQuestion, 0xC0: OemTilde,
	0xDB: OemOpenBrackets, 0xDC: OemBackslash, 0xDD: OemCloseBrackets, 0xDE: OemQuotes,
	0xE2: OemBackslash,
}

// FromVirtualKey decodes a Windows virtual-key code.
func FromVirtualKey(vk uint32) Key {
	switch {
	case vk >= 0x30 && vk <= 0x39:
		return D0 + Key(vk-0x30)
	case vk >= 0x41 && vk <= 0x5A:
		return A + Key(vk-0x41)
	case vk >= 0x60 && vk <= 0x69:
		return NumPad0 + Key(vk-0x60)
	case vk >= 0x70 && vk <= 0x87:
		return F1 + Key(vk-0x70)
	}
	return virtualKeys[vk]
}

// Linux evdev KEY_* codes from linux/input-event-codes.h.
var linuxKeys = map[uint16]Key{
	1: Escape,
	2: D1, 3: D2, 4: D3, 5: D4, 6: D5, 7: D6, 8: D7, 9: D8, 10: D9, 11: D0,
	12: OemMinus, 13: OemPlus, 14: Backspace, 15: Tab,
	16: Q, 17: W, 18: E, 19: R, 20: T, 21: Y, 22: U, 23: I, 24: O, 25: P,
	26: OemOpenBrackets, 27: OemCloseBrackets, 28: Enter, 29: LeftCtrl,
	30: A, 31: S, 32: D, 33: F, 34: G, 35: H, 36: J, 37: K, 38: L,
	39: OemSemicolon, 40: OemQuotes, 41: OemTilde, 42: LeftShift, 43: OemBackslash,
	44: Z, 45: X, 46: C, 47: V, 48: B, 49: N, 50: M,
	51: OemComma, 52: OemPeriod, 53: OemQuestion, 54: RightShift,
	55: Multiply, 56: LeftAlt, 57: Space, 58: CapsLock,
	59: F1, 60: F2, 61: F3, 62: F4, 63: F5, 64: F6, 65: F7, 66: F8, 67: F9, 68: F10,
	69: NumLock, 70: ScrollLock,
	71: NumPad7, 72: NumPad8, 73: NumPad9, 74: Subtract,
	75: NumPad4, 76: NumPad5, 77: NumPad6, 78: Add,
	79: NumPad1, 80: NumPad2, 81: NumPad3, 82: NumPad0, 83: Decimal,
	86: OemBackslash, 87: F11, 88: F12,
	96: Enter, 97: RightCtrl, 98: Divide, 99: PrintScreen, 100: RightAlt,
	102: Home, 103: Up, 104: PageUp, 105: Left, 106: Right, 107: End,
	108: Down, 109: PageDown, 110: Insert, 111: Delete,
	113: VolumeMute, 114: VolumeDown, 115: VolumeUp, 119: Pause,
	125: LeftWin, 126: RightWin, 127: Apps,
	163: MediaNext, 164: MediaPlayPause, 165: MediaPrevious, 166: MediaStop,
}

// FromLinuxCode decodes a Linux evdev key code.
func FromLinuxCode(code uint16) Key {
	if code >= 183 && code <= 194 {
		return F13 + Key(code-183)
	}
	return linuxKeys[code]
}

var runeKeys = map[rune]Key{
	' ': Space, '\r': Enter, '\n': Enter, '\t': Tab, 0x7f: Backspace, 0x08: Backspace, 0x1b: Escape,
	'-': OemMinus, '_': OemMinus, '=': OemPlus, '+': OemPlus,
	'[': OemOpenBrackets, '{': OemOpenBrackets, ']': OemCloseBrackets, '}': OemCloseBrackets,
	';': OemSemicolon, ':': OemSemicolon, '\'': OemQuotes, '"': OemQuotes,
	',': OemComma, '<': OemComma, '.': OemPeriod, '>': OemPeriod,
	'/': OemQuestion, '?': OemQuestion, '\\': OemBackslash, '|': OemBackslash,
	'`': OemTilde, '~': OemTilde,
	'!': D1, '@': D2, '#': D3, '$': D4, '%': D5, '^': D6, '&': D7, '*': D8, '(': D9, ')': D0,
}

// FromRune decodes a character typed on a US layout into the key that
// produces it. Characters with no dedicated key return None.
func FromRune(r rune) Key {
	switch {
	case r >= 'a' && r <= 'z':
		return A + Key(r-'a')
	case r >= 'A' && r <= 'Z':
		return A + Key(r-'A')
	case r >= '0' && r <= '9':
		return D0 + Key(r-'0')
	}
	return runeKeys[r]
}
