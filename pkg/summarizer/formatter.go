package summarizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formatter renders a Summary.
type Formatter interface {
	Format(summary *Summary) string
}

// FormatFunc adapts a function to Formatter.
type FormatFunc func(summary *Summary) string

// Format implements Formatter.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// YAMLFormatter renders a Summary as YAML for scripts and dashboards.
type YAMLFormatter struct{}

// Format implements Formatter.
func (YAMLFormatter) Format(summary *Summary) string {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Sprintf("# failed to encode summary: %v\n", err)
	}
	return string(data)
}

// ForPath picks a formatter from the file extension: .yaml and .yml get
// YAMLFormatter, anything else Markdown.
func ForPath(path string, opts ...MarkdownOption) Formatter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLFormatter{}
	default:
		return NewMarkdownFormatter(opts...)
	}
}
