// SPDX-License-Identifier: MPL-2.0

package kilnfile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"kiln-cli/internal/cueutil"
)

// FileName is the canonical recipe file name searched for in the workspace root.
const FileName = "kilnfile.cue"

//go:embed kilnfile_schema.cue
var schemaBytes []byte

// ErrKilnfileNotFound is returned when no kilnfile exists in the workspace.
var ErrKilnfileNotFound = errors.New("kilnfile not found")

// Find locates the kilnfile in the given workspace directory.
// Returns ErrKilnfileNotFound if there is none.
func Find(dir string) (string, error) {
	p := filepath.Join(dir, FileName)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no %s in %s", ErrKilnfileNotFound, FileName, dir)
		}
		return "", fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrKilnfileNotFound, p)
	}
	return p, nil
}

// Load reads and parses the kilnfile at the given path, validating it against
// the embedded schema and the Go-level recipe invariants.
func Load(path string) (*Kilnfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kilnfile: %w", err)
	}
	return Parse(data, path)
}

// Parse parses kilnfile bytes. filePath is used for error messages and is
// recorded on the returned Kilnfile.
func Parse(data []byte, filePath string) (*Kilnfile, error) {
	result, err := cueutil.ParseAndDecode[Kilnfile](
		schemaBytes,
		data,
		"#Kilnfile",
		cueutil.WithFilename(filePath),
	)
	if err != nil {
		return nil, err
	}

	kf := result.Value
	kf.FilePath = filePath

	if err := kf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	return kf, nil
}
