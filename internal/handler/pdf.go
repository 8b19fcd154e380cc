package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"flashcards/internal/apperr"
	"flashcards/internal/middleware"
	"flashcards/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the file limit for form boundaries and headers.
const multipartOverhead = 1 << 20

type PDFHandler struct {
	ingest        service.IngestService
	maxUploadSize int64
	logger        *zap.Logger
}

func NewPDFHandler(ingest service.IngestService, maxUploadSize int64, logger *zap.Logger) *PDFHandler {
	return &PDFHandler{ingest: ingest, maxUploadSize: maxUploadSize, logger: logger}
}

func (h *PDFHandler) tooLarge() error {
	return apperr.NewValidationError("file", fmt.Sprintf("File size exceeds %dMB limit", h.maxUploadSize/1024/1024))
}

// Upload accepts a multipart "file" field and an optional num_cards query parameter.
func (h *PDFHandler) Upload(c *gin.Context) {
	numCards := 0
	if raw, ok := c.GetQuery("num_cards"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, h.logger, apperr.NewValidationError("num_cards", fmt.Sprintf("must be between 1 and %d", service.MaxNumCards)))
			return
		}
		numCards = n
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, h.logger, h.tooLarge())
			return
		}
		respondError(c, h.logger, apperr.NewValidationError("file", "is required"))
		return
	}
	if fh.Size > h.maxUploadSize {
		respondError(c, h.logger, h.tooLarge())
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadSize+1))
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("read upload: %w", err))
		return
	}

	user := middleware.CurrentUser(c)
	result, err := h.ingest.Ingest(c.Request.Context(), user.ID, service.Upload{
		Filename: fh.Filename,
		Data:     data,
		NumCards: numCards,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
