package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"agencydesk/internal/middleware"
	"agencydesk/internal/services"
	"agencydesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// ==================== FILE HANDLERS ====================

// UploadFile stores a multipart upload. The declared Content-Length is
// checked against the ceiling before the body is read.
func (h *Handler) UploadFile(c *gin.Context) {
	if c.Request.ContentLength > h.cfg.Upload.MaxSizeBytes {
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
			utils.ErrCodeBadRequest, "file exceeds the maximum upload size")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.RespondWithValidationError(c, "file field is required", err.Error())
		return
	}

	file, err := h.files.SaveUpload(header, c.PostForm("project_id"), middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFileTooLarge):
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				utils.ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrEmptyFile):
			utils.RespondWithValidationError(c, err.Error(), nil)
		case errors.Is(err, services.ErrProjectNotFound):
			utils.RespondWithNotFound(c, "Project")
		default:
			h.log.WithError(err).Error("upload file")
			utils.RespondWithInternalError(c)
		}
		return
	}

	utils.RespondWithCreated(c, file)
}

// ListFiles returns file metadata, optionally scoped to a project
func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.files.ListFiles(c.Query("project_id"))
	if err != nil {
		h.log.WithError(err).Error("list files")
		utils.RespondWithInternalError(c)
		return
	}

	utils.RespondWithSuccess(c, files)
}

// DownloadFile streams the stored bytes
func (h *Handler) DownloadFile(c *gin.Context) {
	file, reader, err := h.files.Open(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			utils.RespondWithNotFound(c, "File")
			return
		}
		h.log.WithError(err).Error("download file")
		utils.RespondWithInternalError(c)
		return
	}
	defer reader.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.DataFromReader(http.StatusOK, file.Size, contentType, reader, nil)
}

// DeleteFile removes a file. Admin and PM only.
func (h *Handler) DeleteFile(c *gin.Context) {
	if err := h.files.DeleteFile(c.Param("id")); err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			utils.RespondWithNotFound(c, "File")
			return
		}
		h.log.WithError(err).Error("delete file")
		utils.RespondWithInternalError(c)
		return
	}

	utils.RespondWithSuccess(c, gin.H{"message": "file deleted"})
}
