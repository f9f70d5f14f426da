package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Ann@Example.ORG ", "ann@example.org"},
		{"first.last@example.org", "first.last@example.org"},
		{"First.Last+locks@Gmail.com", "firstlast@gmail.com"},
		{"first.last@googlemail.com", "firstlast@gmail.com"},
		{"no-at-sign", "no-at-sign"},
		{"@example.org", "@example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.in))
		})
	}
}

func TestNormalizeEmail_DuplicateVariantsCollide(t *testing.T) {
	assert.Equal(t, NormalizeEmail("A.B@gmail.com"), NormalizeEmail("ab+x@googlemail.com"))
}
