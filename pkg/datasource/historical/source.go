package historical

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var errOutOfRange = errors.New("index out of range")

// File is a memory mapped array of fixed size records of type T. T must not contain padding
// or pointers.
type File[T any] struct {
	dataSourceName string
	reader         *mmap.ReaderAt
	bufferPool     *sync.Pool
}

func NewFile[T any](dataSourceName string) *File[T] {
	return &File[T]{
		dataSourceName: dataSourceName,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buffer := make([]byte, int(unsafe.Sizeof(*new(T))))
				return &buffer
			},
		},
	}
}

func (f *File[T]) Open() error {
	var err error
	f.reader, err = mmap.Open(f.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", f.dataSourceName, err)
	}
	return nil
}

func (f *File[T]) Close() error {
	if f.reader == nil {
		return nil
	}
	return f.reader.Close()
}

func (f *File[T]) Read(index int64, data *T) error {
	buffer := f.bufferPool.Get().(*[]byte)
	defer f.bufferPool.Put(buffer)

	offset := index * int64(len(*buffer))
	if index < 0 || offset >= int64(f.reader.Len()) {
		return errOutOfRange
	}

	n, err := f.reader.ReadAt(*buffer, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read: %w", err)
	}
	if n < len(*buffer) {
		return errOutOfRange
	}

	*data = *(*T)(unsafe.Pointer(&(*buffer)[0])) // #nosec G103
	return nil
}

func (f *File[T]) EntryCount() (int64, error) {
	entrySize := int64(unsafe.Sizeof(*new(T)))
	if entrySize == 0 {
		return 0, fmt.Errorf("size of T is zero")
	}

	fileInfo, err := os.Stat(f.dataSourceName)
	if err != nil {
		return 0, fmt.Errorf("unable to get data source %q stats: %w", f.dataSourceName, err)
	}

	totalSize := fileInfo.Size()
	if totalSize%entrySize != 0 {
		return 0, fmt.Errorf("file size %d is not a multiple of entry size %d", totalSize, entrySize)
	}

	return totalSize / entrySize, nil
}
