package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mwendwa/event-manager-go/assets"
	"github.com/mwendwa/event-manager-go/integrity"
	"github.com/mwendwa/event-manager-go/metrics"
	"github.com/mwendwa/event-manager-go/models"
	"github.com/mwendwa/event-manager-go/utils"
)

// ---------------- UPLOAD ----------------
// UploadAsset streams one multipart file into the chunk store for the
// owner named in the route. The form carries a "kind" field and a "file"
// part.
func UploadAsset(store *assets.Store, m *metrics.Metrics, ownerKind models.OwnerKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		kindValue := c.PostForm("kind")
		kind, err := assets.ParseKind(kindValue)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be image or video"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file part is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
			return
		}
		defer file.Close()

		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		asset, err := store.Upload(ctx, ownerKind, c.Param("id"), kind, fileHeader.Header.Get("Content-Type"), file)
		if err != nil {
			m.UploadsTotal.WithLabelValues(string(kind), "failed").Inc()
			assetErrorResponse(c, err)
			return
		}
		m.UploadsTotal.WithLabelValues(string(kind), "stored").Inc()

		c.JSON(http.StatusCreated, asset)
	}
}

// ---------------- LIST ----------------
func ListOwnerAssets(store *assets.Store, refs *integrity.Validator, ownerKind models.OwnerKind, refKind integrity.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ownerID, err := refs.Resolve(ctx, refKind, c.Param("id"), nil)
		if err != nil {
			switch {
			case errors.Is(err, integrity.ErrMalformedID):
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + string(refKind) + " id"})
			case errors.Is(err, integrity.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": string(refKind) + " not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch " + string(refKind)})
			}
			return
		}

		owned, err := store.ListOwned(ctx, ownerKind, ownerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch assets"})
			return
		}
		if owned == nil {
			owned = []models.Asset{}
		}

		c.JSON(http.StatusOK, owned)
	}
}

// ---------------- DOWNLOAD ----------------
// DownloadAsset streams the stored bytes chunk by chunk. Content-Length
// comes from the asset record, so a truncated sequence breaks the
// transfer instead of shortening it silently.
func DownloadAsset(store *assets.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		dl, err := store.OpenDownload(ctx, assetID)
		if err != nil {
			assetErrorResponse(c, err)
			return
		}
		defer dl.Close()

		// Stored assets are immutable, so the ETag never changes.
		etag := utils.GenerateETag(dl.Asset.ID, dl.Asset.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		contentType := dl.Asset.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.DataFromReader(http.StatusOK, dl.Asset.Length, contentType, dl, nil)
	}
}

// ---------------- DELETE ----------------
func DeleteAsset(store *assets.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := store.Delete(ctx, assetID); err != nil {
			assetErrorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "asset deleted successfully",
			"id":      assetID.Hex(),
		})
	}
}
