package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"automl/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsDomainSentinel(t *testing.T) {
	err := Wrap(core.NewConfigurationError("trial budget must be >= 1"), "loading search config")
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.True(t, core.IsConfigurationError(err))
	assert.Equal(t, 2, ExitCode(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestWrapKeepsInnerCode(t *testing.T) {
	inner := DatabaseError("insert run", stderrors.New("disk full"))
	outer := Wrapf(inner, "logging run %s", "rf")
	assert.Equal(t, CodeDatabaseError, GetCode(outer))
	assert.Equal(t, "logging run rf: insert run: disk full", outer.Error())
}

func TestGetCodeFallbacks(t *testing.T) {
	assert.Equal(t, "", GetCode(nil))
	assert.Equal(t, CodeInternalError, GetCode(stderrors.New("plain")))
	assert.Equal(t, CodeModelUnavailable, GetCode(core.ErrArtifactUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(core.ErrArtifactUnavailable))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("run")))
	assert.Equal(t, 4, ExitCode(core.ErrNoCandidates))
	assert.Equal(t, 0, ExitCode(nil))
}

func TestWithCode(t *testing.T) {
	assert.Nil(t, WithCode(CodeInvalidInput, nil))
	err := WithCode(CodeInvalidInput, stderrors.New("bad record"))
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}
