package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mwendwa/event-manager-go/assets"
	"github.com/mwendwa/event-manager-go/integrity"
)

func respond(fn func(*gin.Context, error), err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c, err)
	return w
}

func TestReferenceErrorResponse(t *testing.T) {
	w := respond(referenceErrorResponse, &integrity.RefError{Field: "venue_ref", Err: integrity.ErrMalformedID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "venue_ref")

	w = respond(referenceErrorResponse, &integrity.RefError{Field: "event_ref", Err: integrity.ErrNotFound})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "event_ref")

	// Infrastructure failures never leak field-level detail.
	w = respond(referenceErrorResponse, errors.New("socket closed"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = respond(referenceErrorResponse, &integrity.RefError{Field: "venue_ref", Err: errors.New("socket closed")})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAssetErrorResponse(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{integrity.ErrMalformedID, http.StatusBadRequest},
		{assets.ErrInvalidOwner, http.StatusNotFound},
		{assets.ErrBadKind, http.StatusBadRequest},
		{assets.ErrNotFound, http.StatusNotFound},
		{assets.ErrNotReceiving, http.StatusConflict},
		{assets.ErrChunkSequence, http.StatusBadRequest},
		{assets.ErrChunkTooLarge, http.StatusBadRequest},
		{assets.ErrEmptyChunk, http.StatusBadRequest},
		{assets.ErrTruncated, http.StatusInternalServerError},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := respond(assetErrorResponse, tc.err)
		assert.Equal(t, tc.code, w.Code, "error %v", tc.err)
	}
}
