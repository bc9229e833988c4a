package yaerrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/stretchr/testify/assert"
)

func TestFromString_CodeAndMessage(t *testing.T) {
	t.Parallel()

	err := yaerrors.FromString(http.StatusNotFound, "post not found")

	assert.Equal(t, http.StatusNotFound, err.Code())
	assert.Equal(t, "404 | post not found", err.Error())
}

func TestFromError_KeepsCause(t *testing.T) {
	t.Parallel()

	err := yaerrors.FromError(http.StatusBadGateway, yaerrors.ErrTeapot, "telegram rejected")

	assert.Equal(t, "502 | telegram rejected: backend developer is a teapot", err.Error())
	assert.ErrorIs(t, err, yaerrors.ErrTeapot)
}

func TestWrap_PrependsTraceback(t *testing.T) {
	t.Parallel()

	err := yaerrors.FromString(http.StatusBadRequest, "empty text").
		Wrap("validate post").
		Wrap("create post")

	assert.Equal(t, "400 | create post -> validate post -> empty text", err.Error())
	assert.Equal(t, "create post", err.UnwrapLastError())
}

func TestUnwrapLastError_NoWraps(t *testing.T) {
	t.Parallel()

	err := yaerrors.FromString(http.StatusConflict, "illegal transition")

	assert.Equal(t, "illegal transition", err.UnwrapLastError())
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusOK, yaerrors.CodeOf(nil))
	assert.Equal(t, http.StatusInternalServerError, yaerrors.CodeOf(errors.New("plain")))
	assert.Equal(
		t,
		http.StatusNotFound,
		yaerrors.CodeOf(fmt.Errorf("outer: %w", yaerrors.FromString(http.StatusNotFound, "gone"))),
	)
}
