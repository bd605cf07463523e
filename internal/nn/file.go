package nn

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ModelExtension is the canonical model file extension.
const ModelExtension = ".bin"

// ModelFilename replaces any extension on name with ModelExtension.
func ModelFilename(name string) string {
	return MakeFilename(name, ModelExtension)
}

// MakeFilename swaps the extension of name for ext; ext may omit the dot.
func MakeFilename(name, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	base := name
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 && dot > strings.LastIndexAny(name, `/\`) {
		base = name[:dot]
	}
	return base + ext
}

// SaveFile writes net to the normalised model path and returns that path.
func SaveFile(net *Network, path string) (string, error) {
	path = ModelFilename(path)
	data, err := net.MarshalBinary()
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save model %s: %w", path, err)
	}
	return path, nil
}

// LoadFile reads the normalised model path.
func LoadFile(catalog *Catalog, path string) (*Network, error) {
	path = ModelFilename(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	net, err := Unmarshal(data, catalog)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return net, nil
}

// ListModels returns the model names (without extension) stored in dir.
func ListModels(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ModelExtension {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ModelExtension))
	}
	sort.Strings(names)
	return names, nil
}
