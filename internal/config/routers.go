package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/afrietaadmin/uisp-service-suspension/internal/directory"
)

// ErrRouterFileNotFound is returned when the router directory file is absent.
var ErrRouterFileNotFound = errors.New("router directory file not found")

// LoadRouterFile reads the site-keyed router directory file at path. Files
// ending in .yaml or .yml are decoded as YAML, anything else as JSON. Site
// order in the file is preserved since it decides resolution priority.
// Non-object values are ignored.
func LoadRouterFile(path string) ([]directory.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRouterFileNotFound, path)
		}
		return nil, fmt.Errorf("read router file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseRouterYAML(data)
	default:
		return ParseRouterJSON(data)
	}
}

// LoadDirectory reads the router file at path and builds the directory from it.
func LoadDirectory(path string, log *zap.Logger) (*directory.Directory, error) {
	sources, err := LoadRouterFile(path)
	if err != nil {
		return nil, err
	}
	return directory.New(sources, log)
}

// ParseRouterJSON decodes a JSON object of site name to router settings.
func ParseRouterJSON(data []byte) ([]directory.Source, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("router file: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("router file: top level must be an object of sites")
	}

	var out []directory.Source
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("router file: %w", err)
		}
		site, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("router file: site %q: %w", site, err)
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}

		var src directory.Source
		if err := json.Unmarshal(trimmed, &src); err != nil {
			return nil, fmt.Errorf("router file: site %q: %w", site, err)
		}
		src.Site = site
		out = append(out, src)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("router file: %w", err)
	}
	return out, nil
}

// ParseRouterYAML decodes a YAML mapping of site name to router settings.
func ParseRouterYAML(data []byte) ([]directory.Source, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("router file: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("router file: top level must be a mapping of sites")
	}

	var out []directory.Source
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind != yaml.MappingNode {
			continue
		}
		var src directory.Source
		if err := val.Decode(&src); err != nil {
			return nil, fmt.Errorf("router file: site %q: %w", key.Value, err)
		}
		src.Site = key.Value
		out = append(out, src)
	}
	return out, nil
}
