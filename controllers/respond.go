package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwendwa/event-manager-go/assets"
	"github.com/mwendwa/event-manager-go/integrity"
)

// referenceErrorResponse maps a failed reference validation onto the
// transport. The envelope names the failing request field.
func referenceErrorResponse(c *gin.Context, err error) {
	var refErr *integrity.RefError
	if !errors.As(err, &refErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not validate references"})
		return
	}
	switch {
	case errors.Is(err, integrity.ErrMalformedID):
		c.JSON(http.StatusBadRequest, gin.H{"error": refErr.Error(), "field": refErr.Field})
	case errors.Is(err, integrity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": refErr.Error(), "field": refErr.Field})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not validate references"})
	}
}

// assetErrorResponse maps asset store failures onto the transport.
// Truncation is an integrity fault and surfaces as a 500 with a distinct
// message.
func assetErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, integrity.ErrMalformedID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed owner id"})
	case errors.Is(err, assets.ErrInvalidOwner):
		c.JSON(http.StatusNotFound, gin.H{"error": "owner does not exist"})
	case errors.Is(err, assets.ErrBadKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be image or video"})
	case errors.Is(err, assets.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
	case errors.Is(err, assets.ErrNotReceiving):
		c.JSON(http.StatusConflict, gin.H{"error": "asset is not receiving chunks"})
	case errors.Is(err, assets.ErrChunkSequence), errors.Is(err, assets.ErrChunkTooLarge), errors.Is(err, assets.ErrEmptyChunk):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, assets.ErrTruncated):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "asset is truncated"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "asset operation failed"})
	}
}
