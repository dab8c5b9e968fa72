package hook

import "runtime"

// Platform raw key codes for the keys the gesture layer recognizes.
// gohook reports the native code: macOS virtual key codes, X11 key codes
// on Linux, and virtual-key codes on Windows.
const (
	darwinEscape      = 53
	darwinLeftBracket = 33

	x11Escape      = 9
	x11LeftBracket = 34

	winEscape      = 27  // VK_ESCAPE
	winLeftBracket = 219 // VK_OEM_4
)

// Raw modifier key codes per platform, used to flag modifier key events.
var darwinModifiers = map[uint16]bool{
	54: true, // right command
	55: true, // command
	56: true, // shift
	57: true, // caps lock
	58: true, // option
	59: true, // control
	60: true, // right shift
	61: true, // right option
	62: true, // right control
	63: true, // fn
}

var x11Modifiers = map[uint16]bool{
	50:  true, // Shift_L
	62:  true, // Shift_R
	37:  true, // Control_L
	105: true, // Control_R
	64:  true, // Alt_L
	108: true, // Alt_R
	133: true, // Super_L
	134: true, // Super_R
	66:  true, // Caps_Lock
}

var winModifiers = map[uint16]bool{
	16: true, 160: true, 161: true, // shift
	17: true, 162: true, 163: true, // control
	18: true, 164: true, 165: true, // alt
	91: true, 92: true, // win
	20: true, // caps lock
}

// normalizeKey maps a platform raw code to a normalized Key.
func normalizeKey(raw uint16) Key {
	switch runtime.GOOS {
	case "darwin":
		switch raw {
		case darwinEscape:
			return KeyEscape
		case darwinLeftBracket:
			return KeyLeftBracket
		}
	case "windows":
		switch raw {
		case winEscape:
			return KeyEscape
		case winLeftBracket:
			return KeyLeftBracket
		}
	default:
		switch raw {
		case x11Escape:
			return KeyEscape
		case x11LeftBracket:
			return KeyLeftBracket
		}
	}
	return KeyOther
}

// isModifierKey reports whether the raw code is a modifier key.
func isModifierKey(raw uint16) bool {
	switch runtime.GOOS {
	case "darwin":
		return darwinModifiers[raw]
	case "windows":
		return winModifiers[raw]
	default:
		return x11Modifiers[raw]
	}
}
