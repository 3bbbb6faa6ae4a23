package format

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct {
	Indent bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

// YAMLFormatter writes YAML output.
type YAMLFormatter struct{}

// Write writes YAML payload to a writer.
func (f YAMLFormatter) Write(w io.Writer, payload any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(payload); err != nil {
		return err
	}
	return enc.Close()
}

// ForPath picks a formatter from a report file extension. Unknown extensions
// are an error so a typo never produces a file in the wrong format.
func ForPath(path string) (Formatter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSONFormatter{Indent: true}, nil
	case ".yaml", ".yml":
		return YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// Decode reads a payload written by ForPath's formatter back into out.
func Decode(path string, r io.Reader, out any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.NewDecoder(r).Decode(out)
	case ".yaml", ".yml":
		return yaml.NewDecoder(r).Decode(out)
	default:
		return fmt.Errorf("unsupported report extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}
