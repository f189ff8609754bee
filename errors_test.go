package cfb_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warlomak/compoundfiles"
)

func TestCodeWithMessage(t *testing.T) {
	newErr := cfb.ErrNotFound.WithMessage("asdfqwerty")
	assert.Equal(t, "NotFound: asdfqwerty", newErr.Error())
	assert.ErrorIs(t, newErr, cfb.ErrNotFound)
}

func TestCodeWrap(t *testing.T) {
	originalErr := errors.New("original error")
	newErr := cfb.ErrDirEntry.Wrap(originalErr)
	expectedMessage := "DirEntry: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error())
	assert.ErrorIs(t, newErr, originalErr, "original error not set as cause")
	assert.ErrorIs(t, newErr, cfb.ErrDirEntry, "Code not matched through Is")
}

func TestWithMessageChainStillMatchesCode(t *testing.T) {
	newErr := cfb.ErrNameCollision.WithMessage("a").WithMessage("b")
	assert.ErrorIs(t, newErr, cfb.ErrNameCollision)
}

func TestDistinctCodesDoNotMatch(t *testing.T) {
	newErr := cfb.ErrNotStream.WithMessage("x")
	assert.NotErrorIs(t, newErr, cfb.ErrNotStorage)
}
