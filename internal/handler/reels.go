package handler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReelStore is the object store surface the reel endpoints need.
type ReelStore interface {
	Put(ctx context.Context, objectKey, localPath string) error
	Delete(ctx context.Context, objectKey string) error
}

// ReelsHandler handles reel video uploads.
type ReelsHandler struct {
	reels  ReelStore
	logger *zap.Logger
}

// NewReelsHandler creates a new reels handler
func NewReelsHandler(reels ReelStore, logger *zap.Logger) *ReelsHandler {
	return &ReelsHandler{
		reels:  reels,
		logger: logger,
	}
}

// UploadReel handles POST /api/v1/reels. The multipart "video" file is
// stored and the returned key is what plan requests reference.
func (h *ReelsHandler) UploadReel(c *fiber.Ctx) error {
	file, err := c.FormFile("video")
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Multipart field 'video' required")
	}

	dir, err := os.MkdirTemp("", "reeltrip-upload-")
	if err != nil {
		h.logger.Error("failed to create upload temp dir", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to store reel")
	}
	defer os.RemoveAll(dir)

	localPath := filepath.Join(dir, "reel.mp4")
	if err := c.SaveFile(file, localPath); err != nil {
		h.logger.Error("failed to save uploaded reel", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to store reel")
	}

	objectKey := "reels/" + uuid.New().String() + ".mp4"
	if err := h.reels.Put(c.Context(), objectKey, localPath); err != nil {
		h.logger.Error("failed to upload reel to object store", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to store reel")
	}

	h.logger.Info("reel uploaded",
		zap.String("object_key", objectKey),
		zap.Int64("size_bytes", file.Size),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"videoKey": objectKey,
	})
}

// DeleteReel handles DELETE /api/v1/reels/+ where the wildcard is the
// object key returned by the upload.
func (h *ReelsHandler) DeleteReel(c *fiber.Ctx) error {
	objectKey := c.Params("+")
	if objectKey == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Reel key required")
	}

	if err := h.reels.Delete(c.Context(), objectKey); err != nil {
		h.logger.Error("failed to delete reel",
			zap.String("object_key", objectKey), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to delete reel")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes registers reel routes
func (h *ReelsHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/api/v1")

	v1.Post("/reels", h.UploadReel)
	v1.Delete("/reels/+", h.DeleteReel)
}
