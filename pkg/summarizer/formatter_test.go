package summarizer

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		yaml bool
	}{
		{"summary.md", false},
		{"summary", false},
		{"reports/summary.yaml", true},
		{"reports/SUMMARY.YML", true},
	}

	for _, tt := range tests {
		_, isYAML := ForPath(tt.path).(YAMLFormatter)
		if isYAML != tt.yaml {
			t.Errorf("ForPath(%q): YAML = %t, want %t", tt.path, isYAML, tt.yaml)
		}
	}
}

func TestYAMLFormatter_Format(t *testing.T) {
	out := YAMLFormatter{}.Format(testSummary())

	for _, want := range []string{"number: 3", "path: /videos/garden.mp4", "sample_interval: 1s", "duration_ms: 19933"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected YAML to contain %q:\n%s", want, out)
		}
	}

	var decoded Summary
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if decoded.Frames.Accepted != 600 || decoded.Settings.Encoder != "h264_v4l2m2m" {
		t.Errorf("unexpected decoded summary %+v", decoded)
	}
}
