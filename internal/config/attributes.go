package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/robert-at-pretension-io/silver-run/internal/validator"
)

// LoadAttributes reads the attributes file that assigns verification roles to
// design signals. Entries come back in file order.
func LoadAttributes(path string) ([]validator.Field, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingAttributes, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading attributes file: %w", err)
	}

	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("init validator: %w", err)
	}
	fields, err := v.Attributes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fields, nil
}
