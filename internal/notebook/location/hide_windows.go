//go:build windows

package location

import "syscall"

// Windows hides the folder with an attribute instead of a name prefix.
const hiddenPrefix = ""

func hideFolder(folder string) error {
	p, err := syscall.UTF16PtrFromString(folder)
	if err != nil {
		return err
	}
	attrs, err := syscall.GetFileAttributes(p)
	if err != nil {
		return err
	}
	return syscall.SetFileAttributes(p, attrs|syscall.FILE_ATTRIBUTE_HIDDEN)
}
