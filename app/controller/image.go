package controller

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	httpdto "github.com/vibast-solutions/ms-go-gallery/app/dto/http"
	"github.com/vibast-solutions/ms-go-gallery/app/service"
	"github.com/vibast-solutions/ms-go-gallery/app/storage"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type ImageController struct {
	imageService *service.ImageService
}

func NewImageController(imageService *service.ImageService) *ImageController {
	return &ImageController{imageService: imageService}
}

func (c *ImageController) List(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return unauthorized(ctx)
	}

	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	if page < 1 {
		page = 1
	}

	list, err := c.imageService.ListImages(ctx.Request().Context(), userID, page, limit)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list images")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, httpdto.ImageListResponse{
		Images:     httpdto.NewImageResponses(list.Images),
		Total:      list.Total,
		Page:       page,
		TotalPages: list.TotalPages,
		HasMore:    list.HasMore,
	})
}

func (c *ImageController) Stats(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return unauthorized(ctx)
	}

	stats, err := c.imageService.GetImageStats(ctx.Request().Context(), userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to aggregate image stats")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, httpdto.StatsResponse{
		TotalImages:   stats.TotalImages,
		TotalSize:     stats.TotalSize,
		TotalSizeMB:   stats.TotalSizeMB,
		RecentUploads: stats.RecentUploads,
	})
}

func (c *ImageController) Upload(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return unauthorized(ctx)
	}

	header, err := ctx.FormFile("image")
	if err != nil {
		logrus.WithField("user_id", userID).Debug("Upload request without image file")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "image file is required"})
	}

	upload, closeFn, err := openUpload(header)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to open uploaded file")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}
	defer closeFn()

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"filename": header.Filename,
		"bytes":    header.Size,
	}).Info("Upload request received")

	image, err := c.imageService.UploadImage(ctx.Request().Context(), userID, upload, ctx.FormValue("title"))
	if err != nil {
		return imageError(ctx, userID, err, "Upload failed")
	}

	return ctx.JSON(http.StatusOK, httpdto.UploadResponse{
		Message: "Image uploaded successfully",
		Image:   httpdto.NewImageResponse(image),
	})
}

func (c *ImageController) BulkUpload(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return unauthorized(ctx)
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		logrus.WithField("user_id", userID).Debug("Bulk upload request without multipart form")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "multipart form is required"})
	}

	headers := form.File["images"]
	if len(headers) == 0 {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "at least one image file is required"})
	}
	titles := form.Value["titles"]

	uploads := make([]*storage.Upload, 0, len(headers))
	for _, header := range headers {
		upload, closeFn, err := openUpload(header)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to open uploaded file")
			return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
		defer closeFn()
		uploads = append(uploads, upload)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(uploads),
	}).Info("Bulk upload request received")

	images, err := c.imageService.BulkUploadImages(ctx.Request().Context(), userID, uploads, titles)
	if err != nil && len(images) == 0 {
		return imageError(ctx, userID, err, "Bulk upload failed")
	}
	if err != nil {
		// Some files made it through before the failure; report what stuck.
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"uploaded": len(images),
		}).Warn("Bulk upload partially failed")
	}

	return ctx.JSON(http.StatusOK, httpdto.BulkUploadResponse{
		Message: "Uploaded " + strconv.Itoa(len(images)) + " of " + strconv.Itoa(len(uploads)) + " images",
		Images:  httpdto.NewImageResponses(images),
	})
}

func (c *ImageController) Update(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return unauthorized(ctx)
	}
	id := ctx.Param("id")

	var upload *storage.Upload
	if header, err := ctx.FormFile("image"); err == nil {
		var closeFn func()
		upload, closeFn, err = openUpload(header)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to open uploaded file")
			return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
		defer closeFn()
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"image_id": id,
	}).Info("Update image request received")

	image, err := c.imageService.UpdateImage(ctx.Request().Context(), id, userID, ctx.FormValue("title"), upload)
	if err != nil {
		return imageError(ctx, userID, err, "Update image failed")
	}

	return ctx.JSON(http.StatusOK, httpdto.UploadResponse{
		Message: "Image updated successfully",
		Image:   httpdto.NewImageResponse(image),
	})
}

func (c *ImageController) Delete(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return unauthorized(ctx)
	}
	id := ctx.Param("id")

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"image_id": id,
	}).Info("Delete image request received")

	if err := c.imageService.DeleteImage(ctx.Request().Context(), id, userID); err != nil {
		return imageError(ctx, userID, err, "Delete image failed")
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "Image deleted successfully"})
}

func (c *ImageController) BulkDelete(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return unauthorized(ctx)
	}

	var req httpdto.BulkDeleteRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind bulk delete request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(req.ImageIDs),
	}).Info("Bulk delete request received")

	deleted, err := c.imageService.BulkDeleteImages(ctx.Request().Context(), req.ImageIDs, userID)
	if err != nil {
		return imageError(ctx, userID, err, "Bulk delete failed")
	}

	return ctx.JSON(http.StatusOK, httpdto.BulkDeleteResponse{
		Message:      "Images deleted successfully",
		DeletedCount: deleted,
	})
}

func (c *ImageController) Rearrange(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return unauthorized(ctx)
	}

	var req httpdto.RearrangeRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind rearrange request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(req.ImageOrder),
	}).Info("Rearrange request received")

	if err := c.imageService.RearrangeImages(ctx.Request().Context(), userID, req.ImageOrder); err != nil {
		return imageError(ctx, userID, err, "Rearrange failed")
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "Image order updated successfully"})
}

// openUpload wraps a multipart file header into the value the lifecycle
// service consumes. The caller must invoke the returned closer.
func openUpload(header *multipart.FileHeader) (*storage.Upload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	upload := &storage.Upload{
		Reader:      file,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Filename:    header.Filename,
	}
	return upload, func() { _ = file.Close() }, nil
}

func unauthorized(ctx echo.Context) error {
	return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{
		Error: "unauthorized",
		Code:  httpdto.CodeAuthError,
	})
}

func imageError(ctx echo.Context, userID uint64, err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrImageNotFound):
		return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "image not found"})
	case errors.Is(err, service.ErrNoImagesFound):
		return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "no images found for the given ids"})
	case errors.Is(err, service.ErrForbiddenReorder):
		return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "image order must include exactly your images"})
	case errors.Is(err, service.ErrTitleRequired),
		errors.Is(err, service.ErrTitleTooLong),
		errors.Is(err, service.ErrTitleCountMismatch),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrUnsupportedFormat):
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrStorageUnavailable):
		logrus.WithError(err).WithField("user_id", userID).Error(msg)
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "storage unavailable"})
	default:
		logrus.WithError(err).WithField("user_id", userID).Error(msg)
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}
}
