package validations

import (
	"context"
	"errors"
	"testing"
	"time"

	domainPost "github.com/AzielCF/postpilot/domains/post"
	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createRequest(first time.Time) domainPost.CreatePostRequest {
	return domainPost.CreatePostRequest{
		AccountID:       "acc-1",
		Content:         "hello world",
		Platforms:       []string{"twitter"},
		FirstOccurrence: first,
	}
}

func TestValidateCreatePost_AcceptsOffsetTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	first := time.Date(2024, 6, 1, 8, 0, 0, 0, loc)

	err := ValidateCreatePost(context.Background(), createRequest(first))
	assert.NoError(t, err)
}

func TestValidateCreatePost_RejectsZeroTimestamp(t *testing.T) {
	err := ValidateCreatePost(context.Background(), createRequest(time.Time{}))
	require.Error(t, err)

	var validationErr pkgError.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestValidateCreatePost_RejectsUnknownPlatform(t *testing.T) {
	request := createRequest(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	request.Platforms = []string{"friendster"}

	err := ValidateCreatePost(context.Background(), request)
	require.Error(t, err)

	var validationErr pkgError.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}
