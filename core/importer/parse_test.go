package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "12", want: 12},
		{in: " 12 ", want: 12},
		{in: "12.0", want: 12},
		{in: "", want: 0},
		{in: "12.5", wantErr: true},
		{in: "twelve", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseInt(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
