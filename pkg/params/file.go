package params

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Table is the name of the config file table holding the parameters.
const Table = "params"

// Decode reads the [params] table from TOML data. Keys the table omits keep
// their defaults; out-of-range values are clamped.
func Decode(data []byte) (Values, error) {
	doc := struct {
		Params Values `toml:"params"`
	}{Params: Defaults()}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Values{}, fmt.Errorf("decode params: %w", err)
	}
	return doc.Params.Clamped(), nil
}

// ReadFile decodes the [params] table of the file at path.
func ReadFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("read params: %w", err)
	}
	return Decode(data)
}

// WriteFile stores v as the [params] table of path, keeping every other
// key and the permissions of an existing file. The file is replaced
// atomically.
func WriteFile(path string, v Values) error {
	doc := make(map[string]any)
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}

	doc[Table] = v
	out, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".glint-*.toml")
	if err != nil {
		return fmt.Errorf("write params: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write params: %w", err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write params: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write params: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write params: %w", err)
	}
	return nil
}
