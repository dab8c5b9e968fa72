//go:build darwin

package source

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Carbon -framework ApplicationServices -framework Foundation

#include <Carbon/Carbon.h>
#include <ApplicationServices/ApplicationServices.h>
#include <stdlib.h>
#include <string.h>

// Snapshot of the TIS keyboard input source list. Rebuilt on every
// tisRefreshList call; indexed access keeps the cgo surface simple.
static CFArrayRef tisList = NULL;

static char* cfStringDup(CFStringRef str) {
    if (str == NULL) {
        return NULL;
    }
    CFIndex length = CFStringGetLength(str);
    CFIndex maxSize = CFStringGetMaximumSizeForEncoding(length, kCFStringEncodingUTF8) + 1;
    char* buf = malloc(maxSize);
    if (buf == NULL) {
        return NULL;
    }
    if (!CFStringGetCString(str, buf, maxSize, kCFStringEncodingUTF8)) {
        free(buf);
        return NULL;
    }
    return buf;
}

// tisRefreshList rebuilds the snapshot with all keyboard-category input
// sources (palette/ink/other categories excluded). Returns the count, or
// -1 if the TIS query failed.
int tisRefreshList(void) {
    if (tisList != NULL) {
        CFRelease(tisList);
        tisList = NULL;
    }

    CFArrayRef all = TISCreateInputSourceList(NULL, false);
    if (all == NULL) {
        return -1;
    }

    CFMutableArrayRef keyboard = CFArrayCreateMutable(kCFAllocatorDefault, 0, &kCFTypeArrayCallBacks);
    CFIndex n = CFArrayGetCount(all);
    for (CFIndex i = 0; i < n; i++) {
        TISInputSourceRef src = (TISInputSourceRef)CFArrayGetValueAtIndex(all, i);
        CFStringRef category = TISGetInputSourceProperty(src, kTISPropertyInputSourceCategory);
        if (category != NULL && CFEqual(category, kTISCategoryKeyboardInputSource)) {
            CFArrayAppendValue(keyboard, src);
        }
    }
    CFRelease(all);

    tisList = keyboard;
    return (int)CFArrayGetCount(tisList);
}

static TISInputSourceRef tisAt(int i) {
    if (tisList == NULL || i < 0 || i >= CFArrayGetCount(tisList)) {
        return NULL;
    }
    return (TISInputSourceRef)CFArrayGetValueAtIndex(tisList, i);
}

static char* tisRefID(TISInputSourceRef src) {
    if (src == NULL) {
        return NULL;
    }
    return cfStringDup(TISGetInputSourceProperty(src, kTISPropertyInputSourceID));
}

static char* tisRefName(TISInputSourceRef src) {
    if (src == NULL) {
        return NULL;
    }
    return cfStringDup(TISGetInputSourceProperty(src, kTISPropertyLocalizedName));
}

// tisRefLanguages joins the declared language tags with commas, primary
// tag first.
static char* tisRefLanguages(TISInputSourceRef src) {
    if (src == NULL) {
        return NULL;
    }
    CFArrayRef langs = TISGetInputSourceProperty(src, kTISPropertyInputSourceLanguages);
    if (langs == NULL || CFArrayGetCount(langs) == 0) {
        return strdup("");
    }
    CFStringRef joined = CFStringCreateByCombiningStrings(kCFAllocatorDefault, langs, CFSTR(","));
    if (joined == NULL) {
        return strdup("");
    }
    char* out = cfStringDup(joined);
    CFRelease(joined);
    return out;
}

static int tisRefSelectable(TISInputSourceRef src) {
    if (src == NULL) {
        return 0;
    }
    CFBooleanRef capable = TISGetInputSourceProperty(src, kTISPropertyInputSourceIsSelectCapable);
    return (capable != NULL && CFBooleanGetValue(capable)) ? 1 : 0;
}

char* tisSourceID(int i)        { return tisRefID(tisAt(i)); }
char* tisSourceName(int i)      { return tisRefName(tisAt(i)); }
char* tisSourceLanguages(int i) { return tisRefLanguages(tisAt(i)); }
int   tisSourceSelectable(int i){ return tisRefSelectable(tisAt(i)); }

char* tisCurrentID(void) {
    TISInputSourceRef cur = TISCopyCurrentKeyboardInputSource();
    if (cur == NULL) {
        return NULL;
    }
    char* id = tisRefID(cur);
    CFRelease(cur);
    return id;
}

char* tisCurrentName(void) {
    TISInputSourceRef cur = TISCopyCurrentKeyboardInputSource();
    if (cur == NULL) {
        return NULL;
    }
    char* name = tisRefName(cur);
    CFRelease(cur);
    return name;
}

char* tisCurrentLanguages(void) {
    TISInputSourceRef cur = TISCopyCurrentKeyboardInputSource();
    if (cur == NULL) {
        return NULL;
    }
    char* langs = tisRefLanguages(cur);
    CFRelease(cur);
    return langs;
}

// tisSelect activates the input source with the given id.
// Returns 0 on success, -1 if the id is not installed, -2 if the
// activation call was rejected.
int tisSelect(const char* id) {
    CFStringRef wanted = CFStringCreateWithCString(kCFAllocatorDefault, id, kCFStringEncodingUTF8);
    if (wanted == NULL) {
        return -1;
    }

    CFMutableDictionaryRef filter = CFDictionaryCreateMutable(kCFAllocatorDefault, 1,
        &kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
    CFDictionaryAddValue(filter, kTISPropertyInputSourceID, wanted);

    CFArrayRef matches = TISCreateInputSourceList(filter, false);
    CFRelease(filter);
    CFRelease(wanted);

    if (matches == NULL || CFArrayGetCount(matches) == 0) {
        if (matches != NULL) {
            CFRelease(matches);
        }
        return -1;
    }

    TISInputSourceRef src = (TISInputSourceRef)CFArrayGetValueAtIndex(matches, 0);
    OSStatus status = TISSelectInputSource(src);
    CFRelease(matches);

    return status == noErr ? 0 : -2;
}

// tisPulseNeutralKey posts a press and release of virtual key 255, which
// has no bound action, through the HID event tap. This nudges the OS
// text-input subsystem into refreshing its focused state after a switch.
void tisPulseNeutralKey(void) {
    CGEventRef down = CGEventCreateKeyboardEvent(NULL, (CGKeyCode)255, true);
    CGEventRef up = CGEventCreateKeyboardEvent(NULL, (CGKeyCode)255, false);
    if (down != NULL) {
        CGEventPost(kCGHIDEventTap, down);
        CFRelease(down);
    }
    if (up != NULL) {
        CGEventPost(kCGHIDEventTap, up);
        CFRelease(up);
    }
}
*/
import "C"

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"
)

// DarwinBackend controls input sources through the Text Input Sources API.
type DarwinBackend struct {
	// The C-side snapshot is shared global state; serialize access.
	mu sync.Mutex
}

func newPlatformBackend() (Backend, error) {
	return &DarwinBackend{}, nil
}

func goStringFree(cs *C.char) string {
	if cs == nil {
		return ""
	}
	s := C.GoString(cs)
	C.free(unsafe.Pointer(cs))
	return s
}

func splitLanguages(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

// List enumerates keyboard-category input sources.
func (b *DarwinBackend) List() ([]Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := int(C.tisRefreshList())
	if n < 0 {
		return nil, fmt.Errorf("%w: TISCreateInputSourceList failed", ErrQueryFailed)
	}

	sources := make([]Source, 0, n)
	for i := 0; i < n; i++ {
		id := goStringFree(C.tisSourceID(C.int(i)))
		if id == "" {
			continue
		}
		sources = append(sources, Source{
			ID:          id,
			DisplayName: goStringFree(C.tisSourceName(C.int(i))),
			Languages:   splitLanguages(goStringFree(C.tisSourceLanguages(C.int(i)))),
			Selectable:  C.tisSourceSelectable(C.int(i)) == 1,
		})
	}
	return sources, nil
}

// Current returns the active keyboard input source.
func (b *DarwinBackend) Current() (Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := goStringFree(C.tisCurrentID())
	if id == "" {
		return Source{}, fmt.Errorf("%w: no current keyboard input source", ErrQueryFailed)
	}
	return Source{
		ID:          id,
		DisplayName: goStringFree(C.tisCurrentName()),
		Languages:   splitLanguages(goStringFree(C.tisCurrentLanguages())),
		Selectable:  true,
	}, nil
}

// Select activates the source with the given id.
func (b *DarwinBackend) Select(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cid := C.CString(id)
	defer C.free(unsafe.Pointer(cid))

	switch C.tisSelect(cid) {
	case 0:
		return nil
	case -1:
		return fmt.Errorf("%w: %q", ErrUnknownSource, id)
	default:
		return errors.New("TISSelectInputSource rejected the activation")
	}
}

// PulseNeutralKey posts a side-effect-free key press and release.
func (b *DarwinBackend) PulseNeutralKey() error {
	C.tisPulseNeutralKey()
	return nil
}

// Available reports backend availability.
func (b *DarwinBackend) Available() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if C.tisRefreshList() < 0 {
		return false, "Text Input Sources API unavailable"
	}
	return true, "Text Input Sources API available"
}

var _ Backend = (*DarwinBackend)(nil)
