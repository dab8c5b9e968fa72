//go:build windows

package source

import (
	"fmt"
	"strconv"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetKeyboardLayoutLst = user32.NewProc("GetKeyboardLayoutList")
	procGetKeyboardLayout    = user32.NewProc("GetKeyboardLayout")
	procGetForegroundWindow  = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadPID   = user32.NewProc("GetWindowThreadProcessId")
	procLoadKeyboardLayout   = user32.NewProc("LoadKeyboardLayoutW")
	procActivateKeyboardLay  = user32.NewProc("ActivateKeyboardLayout")
	procSendInput            = user32.NewProc("SendInput")
)

const (
	klfActivate    = 0x0001
	klfSetForProc  = 0x0100
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002

	// VK 0xE8 is unassigned and produces no action.
	vkNeutral = 0xE8
)

// WindowsBackend controls input sources as keyboard layouts (HKLs).
// A source id is the 8-hex-digit keyboard layout identifier (KLID),
// e.g. "00000409" for US English.
type WindowsBackend struct {
	mu sync.Mutex
}

func newPlatformBackend() (Backend, error) {
	return &WindowsBackend{}, nil
}

// langTag maps a Windows primary language id to a BCP-47 primary tag for
// the subset of languages the classifier cares about, falling back to a
// decimal placeholder for the rest.
func langTag(langID uint16) string {
	switch langID & 0x3ff {
	case 0x04:
		return "zh"
	case 0x11:
		return "ja"
	case 0x12:
		return "ko"
	case 0x2a:
		return "vi"
	case 0x09:
		return "en"
	default:
		return "und-" + strconv.FormatUint(uint64(langID&0x3ff), 16)
	}
}

func layoutSource(hkl uintptr) Source {
	langID := uint16(hkl & 0xffff)
	// Plain layouts: the KLID is the language id zero-padded to eight
	// digits. IME layouts (high word 0xExxx): the whole handle is the KLID.
	hi := uint32(hkl>>16) & 0xffff
	klidVal := uint32(langID)
	if hi&0xf000 == 0xe000 {
		klidVal = uint32(hkl)
	}
	klid := fmt.Sprintf("%08X", klidVal)
	return Source{
		ID:          klid,
		DisplayName: fmt.Sprintf("layout %s", klid),
		Languages:   []string{langTag(langID)},
		Selectable:  true,
	}
}

// List enumerates the loaded keyboard layouts.
func (b *WindowsBackend) List() ([]Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, _, _ := procGetKeyboardLayoutLst.Call(0, 0)
	if n == 0 {
		return nil, fmt.Errorf("%w: GetKeyboardLayoutList returned 0", ErrQueryFailed)
	}

	hkls := make([]uintptr, n)
	got, _, _ := procGetKeyboardLayoutLst.Call(n, uintptr(unsafe.Pointer(&hkls[0])))
	if got == 0 {
		return nil, fmt.Errorf("%w: GetKeyboardLayoutList failed", ErrQueryFailed)
	}

	sources := make([]Source, 0, got)
	for _, hkl := range hkls[:got] {
		sources = append(sources, layoutSource(hkl))
	}
	return sources, nil
}

// Current returns the layout of the foreground window's thread.
func (b *WindowsBackend) Current() (Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hwnd, _, _ := procGetForegroundWindow.Call()
	var tid uintptr
	if hwnd != 0 {
		tid, _, _ = procGetWindowThreadPID.Call(hwnd, 0)
	}

	hkl, _, _ := procGetKeyboardLayout.Call(tid)
	if hkl == 0 {
		return Source{}, fmt.Errorf("%w: GetKeyboardLayout failed", ErrQueryFailed)
	}
	return layoutSource(hkl), nil
}

// Select loads and activates the layout with the given KLID.
func (b *WindowsBackend) Select(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	klid, err := windows.UTF16PtrFromString(id)
	if err != nil {
		return err
	}

	hkl, _, _ := procLoadKeyboardLayout.Call(uintptr(unsafe.Pointer(klid)), klfActivate)
	if hkl == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}

	procActivateKeyboardLay.Call(hkl, klfSetForProc)
	return nil
}

type keyboardInput struct {
	typ uint32
	_   uint32 // struct alignment padding before the union
	ki  struct {
		vk        uint16
		scan      uint16
		flags     uint32
		time      uint32
		extraInfo uintptr
	}
	_ [8]byte // pad to the size of the largest union member
}

// PulseNeutralKey sends a press and release of an unassigned virtual key.
func (b *WindowsBackend) PulseNeutralKey() error {
	inputs := [2]keyboardInput{}
	for i := range inputs {
		inputs[i].typ = inputKeyboard
		inputs[i].ki.vk = vkNeutral
	}
	inputs[1].ki.flags = keyeventfKeyup

	sent, _, _ := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if sent != uintptr(len(inputs)) {
		return fmt.Errorf("SendInput sent %d of %d events", sent, len(inputs))
	}
	return nil
}

// Available reports backend availability.
func (b *WindowsBackend) Available() (bool, string) {
	n, _, _ := procGetKeyboardLayoutLst.Call(0, 0)
	if n == 0 {
		return false, "no keyboard layouts loaded"
	}
	return true, "keyboard layout API available"
}

var _ Backend = (*WindowsBackend)(nil)
