package handler

import (
	"errors"

	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/service"
	"github.com/bardify/api/internal/store"
	"github.com/bardify/api/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

type MusicHandler struct {
	service   *service.TaskService
	validator *validator.Validate
}

func NewMusicHandler(svc *service.TaskService, v *validator.Validate) *MusicHandler {
	return &MusicHandler{
		service:   svc,
		validator: v,
	}
}

// Upload handles POST /api/music/upload
func (h *MusicHandler) Upload(c *fiber.Ctx) error {
	// Get file
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	// Validate file size
	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	req := &model.UploadRequest{
		OutputFormat:   c.FormValue("outputFormat"),
		TranslateStyle: c.FormValue("translateStyle") == "true",
		AnalyzeScore:   c.FormValue("analyzeScore") == "true",
	}

	if err := h.validator.Struct(req); err != nil {
		return response.ValidationError(c, "Invalid request parameters", err.Error())
	}

	// Open file
	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.Submit(c.Context(), file.Filename, f, req)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFormat) {
			return response.ValidationError(c, "Unsupported file format", map[string]interface{}{
				"filename": file.Filename,
			})
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Status handles GET /api/music/status/:taskId
func (h *MusicHandler) Status(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	status, err := h.service.Status(c.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return response.NotFound(c, "Task not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, status)
}

// Result handles GET /api/music/result/:taskId
func (h *MusicHandler) Result(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.service.Result(c.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return response.NotFound(c, "Result not available")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
