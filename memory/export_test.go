package memory

import "os"

// SetWriteData replaces the snapshot write call until the returned func runs.
func SetWriteData(fn func(*os.File, []byte) (int, error)) (restore func()) {
	prev := writeData
	writeData = fn
	return func() { writeData = prev }
}
