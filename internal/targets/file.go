package targets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// File loads target identifiers from the first column of a CSV file.
type File struct {
	Path string
}

// NewFile returns a provider for path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Targets reads the file fresh on every call. A missing file yields an
// empty list, not an error.
func (f *File) Targets() ([]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer file.Close()

	return Read(file)
}

// Read parses one target per record, taking the first column.
func Read(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var ids []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse target list: %w", err)
		}
		if len(record) == 0 {
			continue
		}

		id := record[0]
		if len(ids) == 0 {
			id = strings.TrimPrefix(id, "\ufeff")
		}
		ids = append(ids, id)
	}

	return ids, nil
}
