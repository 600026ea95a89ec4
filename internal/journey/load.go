package journey

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a journey from a .json, .yaml or .yml file. When the file has no
// inline code and scriptPath is non-empty, the script is read from scriptPath.
// A missing mode defaults to inline.
func Load(path, scriptPath string) (Journey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Journey{}, fmt.Errorf("journey file: %w", err)
	}

	var j Journey
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &j); err != nil {
			return Journey{}, fmt.Errorf("journey file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &j); err != nil {
			return Journey{}, fmt.Errorf("journey file %s: %w", path, err)
		}
	}

	if j.Code == "" && scriptPath != "" {
		code, err := os.ReadFile(scriptPath)
		if err != nil {
			return Journey{}, fmt.Errorf("journey script: %w", err)
		}
		j.Code = string(code)
	}
	if j.Mode == "" {
		j.Mode = ModeInline
	}
	if j.Name == "" {
		j.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := j.Validate(); err != nil {
		return Journey{}, fmt.Errorf("journey file %s: %w", path, err)
	}
	return j, nil
}
