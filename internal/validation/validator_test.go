package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name" validate:"required,max=8"`
	PH    *float64 `json:"ph,omitempty" validate:"omitempty,gte=0,lte=14"`
	Kind  string   `json:"kind" validate:"omitempty,oneof=a b"`
	Count int      `json:"count" validate:"gte=1"`
}

func TestValidateStructOK(t *testing.T) {
	ph := 6.5
	assert.NoError(t, ValidateStruct(sample{Name: "soil", PH: &ph, Count: 1}))
}

func TestValidateStructReportsJSONNames(t *testing.T) {
	ph := 15.0
	err := ValidateStruct(sample{Name: "much too long", PH: &ph, Kind: "c"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))

	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "name must be at most 8 characters", fields["name"])
	assert.Equal(t, "ph must be less than or equal to 14", fields["ph"])
	assert.Equal(t, "kind must be one of: a b", fields["kind"])
	assert.Equal(t, "count must be greater than or equal to 1", fields["count"])
	assert.Contains(t, err.Error(), "; ")
}

func TestValidatorIsShared(t *testing.T) {
	assert.Same(t, Validator(), Validator())
}
