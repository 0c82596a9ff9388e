//go:build windows
// +build windows

package extract

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procEnumResourceNamesW = modkernel32.NewProc("EnumResourceNamesW")

	// Callbacks are a finite resource, so one is shared and guarded.
	enumMu       sync.Mutex
	enumFound    []ResourceID
	enumCallback = windows.NewCallback(func(module windows.Handle, kind, name, param uintptr) uintptr {
		if name>>16 == 0 {
			enumFound = append(enumFound, ID(uint16(name)))
		} else {
			enumFound = append(enumFound, Name(windows.UTF16PtrToString((*uint16)(unsafe.Pointer(name)))))
		}
		return 1
	})
)

// nativeModule is a module mapped as data by the Windows loader; no code
// in it runs.
type nativeModule struct {
	handle windows.Handle
}

// OpenNative maps the module with LOAD_LIBRARY_AS_DATAFILE.
func OpenNative(path string) (ResourceReader, error) {
	handle, err := windows.LoadLibraryEx(path, 0, windows.LOAD_LIBRARY_AS_DATAFILE)
	if err != nil {
		return nil, fmt.Errorf("loading module as data file: %w", err)
	}
	return &nativeModule{handle: handle}, nil
}

func (m *nativeModule) GroupIconIDs() ([]ResourceID, error) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumFound = nil
	r1, _, err := procEnumResourceNamesW.Call(
		uintptr(m.handle),
		uintptr(windows.RT_GROUP_ICON),
		enumCallback,
		0,
	)
	if r1 == 0 {
		if errors.Is(err, windows.ERROR_RESOURCE_TYPE_NOT_FOUND) {
			return nil, nil
		}
		return nil, fmt.Errorf("enumerating group icons: %w", err)
	}
	ids := enumFound
	enumFound = nil
	return ids, nil
}

func (m *nativeModule) ResourceBytes(kind ResourceType, id ResourceID) ([]byte, error) {
	var name windows.ResourceIDOrString = windows.ResourceID(id.Ordinal)
	if id.IsName() {
		name = id.Name
	}
	info, err := windows.FindResource(m.handle, name, windows.ResourceID(kind))
	if err != nil {
		if errors.Is(err, windows.ERROR_RESOURCE_NAME_NOT_FOUND) || errors.Is(err, windows.ERROR_RESOURCE_TYPE_NOT_FOUND) {
			return nil, &NotFoundError{Type: kind, ID: id}
		}
		return nil, fmt.Errorf("finding %s %s: %w", kind, id, err)
	}
	size, err := windows.SizeofResource(m.handle, info)
	if err != nil {
		return nil, fmt.Errorf("sizing %s %s: %w", kind, id, err)
	}
	if size == 0 {
		return []byte{}, nil
	}
	loaded, err := windows.LoadResource(m.handle, info)
	if err != nil {
		return nil, fmt.Errorf("loading %s %s: %w", kind, id, err)
	}
	ptr, err := windows.LockResource(loaded)
	if err != nil {
		return nil, fmt.Errorf("locking %s %s: %w", kind, id, err)
	}
	if ptr == 0 {
		return nil, fmt.Errorf("locking %s %s: null pointer", kind, id)
	}
	// Resource memory is read-only and owned by the module; copy it out.
	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
	return data, nil
}

func (m *nativeModule) Close() error {
	if m.handle == 0 {
		return nil
	}
	err := windows.FreeLibrary(m.handle)
	m.handle = 0
	return err
}
