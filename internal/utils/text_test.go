package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		wantCleaned bool
	}{
		{name: "clean", input: "Ada Lovelace", want: "Ada Lovelace"},
		{name: "surrounding space", input: "  Ada  ", want: "Ada"},
		{name: "nul byte", input: "Ada\x00Lovelace", want: "AdaLovelace", wantCleaned: true},
		{name: "invalid utf8", input: "Ada\xffLovelace", want: "AdaLovelace", wantCleaned: true},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cleaned := CleanText(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCleaned, cleaned)
		})
	}
}

func TestCleanClaim(t *testing.T) {
	long := strings.Repeat("é", MaxClaimLength+10)

	got := CleanClaim(long)
	assert.Equal(t, MaxClaimLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "Grace Hopper", CleanClaim(" Grace Hopper\x00 "))
}
