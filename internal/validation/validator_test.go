package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

type sampleRequest struct {
	Format     string `json:"format" validate:"required,oneof=goodreads handylib hardcover csv tsv json"`
	SampleSize int    `json:"sample_size" validate:"gte=1,max=500"`
}

func TestValidate_OK(t *testing.T) {
	v := New()
	err := v.Validate(sampleRequest{Format: "goodreads", SampleSize: 20})
	assert.NoError(t, err)
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	v := New()
	err := v.Validate(sampleRequest{Format: "", SampleSize: 0})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)

	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "format")
	assert.Contains(t, details, "sample_size")
}

func TestValidate_UsesJSONTagNames(t *testing.T) {
	v := New()
	err := v.Validate(sampleRequest{Format: "not-a-format", SampleSize: 10})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	details := domainErr.Details.(map[string]string)
	assert.Contains(t, details, "format")
	assert.NotContains(t, details, "Format")
}
