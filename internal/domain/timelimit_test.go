package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeLimit_WireFormat(t *testing.T) {
	tests := []struct {
		in          string
		wantSeconds int
		wantTimed   bool
		wantOut     string
	}{
		{in: `30`, wantSeconds: 30, wantTimed: true, wantOut: `30`},
		{in: `99999`, wantOut: `99999`},
		{in: `0`, wantOut: `99999`},
		{in: `-5`, wantOut: `99999`},
		{in: `null`, wantOut: `99999`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var limit TimeLimit
			require.NoError(t, json.Unmarshal([]byte(tt.in), &limit))

			secs, timed := limit.Seconds()
			assert.Equal(t, tt.wantTimed, timed)
			assert.Equal(t, tt.wantSeconds, secs)

			out, err := json.Marshal(limit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, string(out))
		})
	}
}

func TestTimeLimit_Duration(t *testing.T) {
	assert.Equal(t, 5*time.Second, LimitSeconds(5).Duration())
	assert.Zero(t, Untimed().Duration())
	assert.True(t, TimeLimit{}.IsUntimed())
	assert.Equal(t, "untimed", Untimed().String())
}

func TestTimeLimit_RejectsNonNumeric(t *testing.T) {
	var limit TimeLimit
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &limit))
}
