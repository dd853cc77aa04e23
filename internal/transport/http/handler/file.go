package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Switch-is-case/ChatBots-for-Learning/internal/app"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/response"
)

type FileHandler struct {
	fileService *app.FileService
	logger      *zap.Logger
}

func NewFileHandler(fileService *app.FileService, logger *zap.Logger) *FileHandler {
	return &FileHandler{fileService: fileService, logger: logger}
}

func (h *FileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Err(c, http.StatusBadRequest, "No file uploaded.")
		return
	}

	src, err := header.Open()
	if err != nil {
		h.logger.Error("open upload failed", zap.Error(err))
		response.Err(c, http.StatusInternalServerError, "Failed to store file.")
		return
	}
	defer src.Close()

	stored, err := h.fileService.Save(header.Filename, header.Header.Get("Content-Type"), src)
	if err != nil {
		h.logger.Error("store upload failed", zap.Error(err))
		response.Err(c, http.StatusInternalServerError, "Failed to store file.")
		return
	}

	c.JSON(http.StatusOK, stored)
}

// Download streams a stored file to any authenticated caller; ownership
// is not checked.
func (h *FileHandler) Download(c *gin.Context) {
	path, err := h.fileService.Resolve(c.Param("id"))
	if err != nil {
		if errors.Is(err, app.ErrFileNotFound) {
			response.Err(c, http.StatusNotFound, "File not found.")
			return
		}
		h.logger.Error("resolve file failed", zap.Error(err))
		response.Err(c, http.StatusInternalServerError, "Failed to read file.")
		return
	}

	c.FileAttachment(path, c.Param("id"))
}
