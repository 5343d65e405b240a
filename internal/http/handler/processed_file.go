package handler

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"xmlrelay/internal/model"
	"xmlrelay/internal/service"
)

func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func writeNotFound(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "processed file not found")
}

func writeInternal(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ReceiveProcessedFile stores a file forwarded by the ingest service.
// The ApiKey header is checked by middleware.APIKey before this handler runs.
//
//	@Summary	Receive a processed file
//	@Tags		processed-files
//	@Accept		json
//	@Produce	json
//	@Param		ApiKey	header		string				true	"Shared secret"
//	@Param		file	body		model.ForwardedFile	true	"Converted document"
//	@Success	200		{object}	service.ReceiveResult
//	@Failure	400		{object}	errorResponse
//	@Failure	401		{object}	errorResponse
//	@Failure	500		{object}	errorResponse
//	@Router		/api/ProcessedFiles/ReceiveProcessedFile [post]
func ReceiveProcessedFile(svc service.ProcessedFileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var file *model.ForwardedFile
		if err := json.Unmarshal(c.Body(), &file); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "Invalid file data")
		}

		res, err := svc.Receive(c.UserContext(), file)
		if err != nil {
			if errors.Is(err, service.ErrInvalidPayload) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "Invalid file data")
			}
			return writeInternal(c)
		}
		return c.JSON(res)
	}
}

// ListProcessedFiles returns every stored file ordered by id.
//
//	@Summary	List processed files
//	@Tags		processed-files
//	@Produce	json
//	@Success	200	{array}		model.ProcessedFile
//	@Failure	500	{object}	errorResponse
//	@Router		/api/ProcessedFiles [get]
func ListProcessedFiles(svc service.ProcessedFileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		files, err := svc.List(c.UserContext())
		if err != nil {
			return writeInternal(c)
		}
		return c.JSON(files)
	}
}

// GetProcessedFile returns a stored file by id.
//
//	@Summary	Get a processed file
//	@Tags		processed-files
//	@Produce	json
//	@Param		id	path		int	true	"File id"
//	@Success	200	{object}	model.ProcessedFile
//	@Failure	400	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/api/ProcessedFiles/{id} [get]
func GetProcessedFile(svc service.ProcessedFileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		f, err := svc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeNotFound(c)
			}
			return writeInternal(c)
		}
		return c.JSON(f)
	}
}

// DownloadProcessedFile streams the stored JSON as an attachment named <fileName>.json.
//
//	@Summary	Download a processed file
//	@Tags		processed-files
//	@Produce	json
//	@Param		id	path	int	true	"File id"
//	@Success	200	{file}	file
//	@Failure	400	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/api/ProcessedFiles/{id}/download [get]
func DownloadProcessedFile(svc service.ProcessedFileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		dl, err := svc.Download(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeNotFound(c)
			}
			return writeInternal(c)
		}
		c.Attachment(dl.FileName)
		c.Set(fiber.HeaderContentType, dl.ContentType)
		return c.SendStream(dl.Content, int(dl.Size))
	}
}

// DeleteProcessedFile removes a stored file.
//
//	@Summary	Delete a processed file
//	@Tags		processed-files
//	@Param		id	path	int	true	"File id"
//	@Success	204
//	@Failure	400	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/api/ProcessedFiles/{id} [delete]
func DeleteProcessedFile(svc service.ProcessedFileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeNotFound(c)
			}
			return writeInternal(c)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
