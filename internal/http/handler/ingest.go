package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"xmlrelay/internal/converter"
	"xmlrelay/internal/forwarder"
	"xmlrelay/internal/service"
)

// Upload accepts a multipart XML file, converts it and relays it to the storage service.
//
//	@Summary	Upload an XML file
//	@Tags		upload
//	@Accept		mpfd
//	@Produce	json
//	@Param		file		formData	file	true	"XML document"
//	@Param		fileName	formData	string	false	"Logical name, defaults to the upload name without extension"
//	@Success	200			{object}	service.IngestResult
//	@Failure	400			{object}	errorResponse
//	@Failure	500			{object}	errorResponse
//	@Failure	502			{object}	errorResponse
//	@Router		/api/FileUpload/upload [post]
func Upload(svc service.IngestService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil || fh.Size == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "File not uploaded")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		res, err := svc.Ingest(c.UserContext(), service.Upload{
			Body:     f,
			Filename: fh.Filename,
			Name:     c.FormValue("fileName"),
		})
		if err != nil {
			return writeIngestError(c, err)
		}
		return c.JSON(res)
	}
}

// writeIngestError maps pipeline failures to statuses. Messages carry the parser
// error or the storage service reply, both of which describe the caller's upload.
func writeIngestError(c *fiber.Ctx, err error) error {
	var fe *forwarder.ForwardingError
	switch {
	case errors.Is(err, service.ErrFileRequired):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "File not uploaded")
	case errors.Is(err, converter.ErrMalformedInput):
		return writeError(c, fiber.StatusInternalServerError, "INVALID_XML", "Error processing XML file: "+causeOf(err))
	case errors.As(err, &fe) && fe.Kind == forwarder.KindTransport:
		return writeError(c, fiber.StatusBadGateway, "STORAGE_UNREACHABLE", "Error communicating with the storage service: "+fe.Error())
	case errors.As(err, &fe):
		return writeError(c, fiber.StatusInternalServerError, "STORAGE_REJECTED", "Error communicating with the storage service: "+fe.Error())
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// causeOf strips the pipeline state prefix from err.
func causeOf(err error) string {
	var pe *service.PipelineError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	return err.Error()
}
