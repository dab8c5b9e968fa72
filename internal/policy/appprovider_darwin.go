//go:build darwin && cgo

package policy

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AppKit -framework Foundation
#import <AppKit/AppKit.h>
#import <Foundation/Foundation.h>
#include <stdlib.h>
#include <string.h>

static char *frontmostBundleID(void) {
	@autoreleasepool {
		NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
		if (app == nil) {
			return NULL;
		}
		NSString *bundleID = [app bundleIdentifier];
		if (bundleID == nil) {
			return NULL;
		}
		return strdup([bundleID UTF8String]);
	}
}
*/
import "C"

import "unsafe"

// darwinAppProvider reports the frontmost application's bundle identifier
// via NSWorkspace.
type darwinAppProvider struct{}

func systemAppProvider() AppProvider {
	return darwinAppProvider{}
}

func (darwinAppProvider) ActiveApp() string {
	cstr := C.frontmostBundleID()
	if cstr == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(cstr))
	return C.GoString(cstr)
}
