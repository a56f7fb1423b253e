package core

import "testing"

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SWITCHYARD_TEST_VAR", "value-1")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no variables", "plain text", "plain text"},
		{"braced", "key: ${SWITCHYARD_TEST_VAR}", "key: value-1"},
		{"simple", "key: $SWITCHYARD_TEST_VAR", "key: value-1"},
		{"default used", "${SWITCHYARD_TEST_UNSET:-fallback}", "fallback"},
		{"default ignored when set", "${SWITCHYARD_TEST_VAR:-fallback}", "value-1"},
		{"unset braced becomes empty", "x${SWITCHYARD_TEST_UNSET}y", "xy"},
		{"multiple", "${SWITCHYARD_TEST_VAR}/${SWITCHYARD_TEST_VAR}", "value-1/value-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnvVars(tt.input)
			if got != tt.expected {
				t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
