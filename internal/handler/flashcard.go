package handler

import (
	"net/http"
	"strconv"

	"flashcards/internal/apperr"
	"flashcards/internal/middleware"
	"flashcards/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type FlashcardHandler struct {
	flashcards service.FlashcardService
	logger     *zap.Logger
}

func NewFlashcardHandler(flashcards service.FlashcardService, logger *zap.Logger) *FlashcardHandler {
	return &FlashcardHandler{flashcards: flashcards, logger: logger}
}

type FlashcardRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

type ListQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func (h *FlashcardHandler) Create(c *gin.Context) {
	var req FlashcardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindingError(err))
		return
	}

	user := middleware.CurrentUser(c)
	card, err := h.flashcards.Create(c.Request.Context(), user.ID, req.Question, req.Answer)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *FlashcardHandler) List(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, h.logger, queryBindingError(c, &query, err))
		return
	}

	user := middleware.CurrentUser(c)
	page, err := h.flashcards.List(c.Request.Context(), user.ID, query.Limit, query.Offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *FlashcardHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user := middleware.CurrentUser(c)
	card, err := h.flashcards.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *FlashcardHandler) Update(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req FlashcardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindingError(err))
		return
	}

	user := middleware.CurrentUser(c)
	card, err := h.flashcards.Update(c.Request.Context(), user.ID, id, req.Question, req.Answer)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

func (h *FlashcardHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.flashcards.Delete(c.Request.Context(), user.ID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
