package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "v1.2.3", Normalize("1.2.3"))
	assert.Equal(t, "v1.2.3", Normalize(" v1.2.3 "))
}

func TestString(t *testing.T) {
	orig := Current
	t.Cleanup(func() { Current = orig })

	tests := []struct {
		current string
		want    string
	}{
		{"dev", "dev"},
		{"1.4.0", "v1.4.0"},
		{"v2.0", "v2.0.0"},
		{"1.0.0-rc.1", "v1.0.0-rc.1"},
	}

	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			Current = tt.current
			assert.Equal(t, tt.want, String())
		})
	}
}
