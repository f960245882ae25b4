package keys

import (
	"sort"
	"strings"
)

// aliases maps every non-canonical spelling found in sound packs to a key.
// Lookups are case-insensitive; symbol labels are stored as written.
var aliases = map[string]Key{
	// Bare digits, as written by pack authors.
	"0": D0, "1": D1, "2": D2, "3": D3, "4": D4,
	"5": D5, "6": D6, "7": D7, "8": D8, "9": D9,

	// Virtual keyboard labels.
	"Caps":    CapsLock,
	"Esc":     Escape,
	"Win":     LeftWin,
	"L Shift": LeftShift,
	"R Shift": RightShift,
	"L Ctrl":  LeftCtrl,
	"R Ctrl":  RightCtrl,
	"L Alt":   LeftAlt,
	"R Alt":   RightAlt,
	"L Win":   LeftWin,
	"R Win":   RightWin,
	"↑":       Up,
	"↓":       Down,
	"←":       Left,
	"→":       Right,
	"[ {":     OemOpenBrackets,
	"] }":     OemCloseBrackets,
	"; :":     OemSemicolon,
	"'":       OemQuotes,
	"' \"":    OemQuotes,
	", <":     OemComma,
	". >":     OemPeriod,
	"/ ?":     OemQuestion,
	"\\":      OemBackslash,
	"\\ |":    OemBackslash,
	"-":       OemMinus,
	"- _":     OemMinus,
	"=":       OemPlus,
	"= +":     OemPlus,
	"`":       OemTilde,
	"` ~":     OemTilde,
	"Del":     Delete,
	"Ins":     Insert,
	"PgUp":    PageUp,
	"PgDn":    PageDown,
	"SrcLk":   ScrollLock,
	"ScrLk":   ScrollLock,
	"PrtSc":   PrintScreen,
	"Menu":    Apps,

	// Platform enumeration spellings.
	"Return":         Enter,
	"Backspace":      Backspace,
	"Capital":        CapsLock,
	"ScrollLock":     ScrollLock,
	"Snapshot":       PrintScreen,
	"Prior":          PageUp,
	"Next":           PageDown,
	"LeftWin":        LeftWin,
	"RightWin":       RightWin,
	"LeftControl":    LeftCtrl,
	"RightControl":   RightCtrl,
	"LShiftKey":      LeftShift,
	"RShiftKey":      RightShift,
	"LControlKey":    LeftCtrl,
	"RControlKey":    RightCtrl,
	"LMenu":          LeftAlt,
	"RMenu":          RightAlt,
	"Oem1":           OemSemicolon,
	"Oem2":           OemQuestion,
	"Oem3":           OemTilde,
	"Oem4":           OemOpenBrackets,
	"Oem6":           OemCloseBrackets,
	"Oem7":           OemQuotes,
	"OemBackslash":   OemBackslash,
	"OemPipe":        OemBackslash,
	"MediaNext":      MediaNext,
	"MediaPrevious":  MediaPrevious,
	"MediaPlay":      MediaPlayPause,
	"Separator":      Decimal,
	"NumPadMultiply": Multiply,
	"NumPadAdd":      Add,
	"NumPadSubtract": Subtract,
	"NumPadDecimal":  Decimal,
	"NumPadDivide":   Divide,
}

// unbindable are names that are recognised but never map to a key.
var unbindable = map[string]bool{
	"fn":   true,
	"none": true,
}

var lookup map[string]Key

func init() {
	lookup = make(map[string]Key, len(aliases)+int(keyCount))
	for alias, k := range aliases {
		lookup[strings.ToLower(alias)] = k
	}
	// Canonical names win over any alias with the same spelling.
	for k := None + 1; k < keyCount; k++ {
		lookup[strings.ToLower(names[k])] = k
	}
}

// Parse maps a serialized key name to a Key. It accepts canonical names in
// any case, bare digits ("5"), D-prefixed digits ("D5") and the human labels
// used by on-screen keyboards ("L Shift", "PgUp", "[ {"). Unknown or
// unbindable names return (None, false).
func Parse(name string) (Key, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		// A lone space is the label some packs use for the space bar.
		if name == " " {
			return Space, true
		}
		return None, false
	}

	lower := strings.ToLower(trimmed)
	if unbindable[lower] {
		return None, false
	}
	if k, ok := lookup[lower]; ok {
		return k, true
	}
	return None, false
}

// MustParse is Parse for names known at compile time. It panics on an
// unknown name.
func MustParse(name string) Key {
	k, ok := Parse(name)
	if !ok {
		panic("keys: unknown key name " + name)
	}
	return k
}

// Alias is one accepted spelling and the key it resolves to.
type Alias struct {
	Name string
	Key  Key
}

// Aliases returns every non-canonical spelling accepted by Parse, sorted by
// key then name.
func Aliases() []Alias {
	out := make([]Alias, 0, len(aliases))
	for name, k := range aliases {
		out = append(out, Alias{Name: name, Key: k})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Name < out[j].Name
	})
	return out
}
