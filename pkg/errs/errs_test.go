package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = Conflict("SAMPLE", "sample conflict")

func TestIsMatchesByCode(t *testing.T) {
	detailed := errSample.WithDetail("order %d conflicts", 7)
	wrapped := fmt.Errorf("outer: %w", detailed)

	assert.ErrorIs(t, detailed, errSample)
	assert.ErrorIs(t, wrapped, errSample)
	assert.Equal(t, "order 7 conflicts", detailed.Error())
	assert.NotErrorIs(t, detailed, Conflict("OTHER", "x"))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Dependency("LOOKUP_FAILED", "catalog lookup failed").Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindDependency, KindOf(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation: http.StatusBadRequest,
		KindNotFound:   http.StatusNotFound,
		KindConflict:   http.StatusConflict,
		KindDependency: http.StatusBadGateway,
		KindInternal:   http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind)
	}
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Nil(t, From(errors.New("boom")))
}
