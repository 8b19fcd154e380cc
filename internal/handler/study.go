package handler

import (
	"net/http"

	"flashcards/internal/middleware"
	"flashcards/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StudyHandler struct {
	study  service.StudyService
	logger *zap.Logger
}

func NewStudyHandler(study service.StudyService, logger *zap.Logger) *StudyHandler {
	return &StudyHandler{study: study, logger: logger}
}

func (h *StudyHandler) Start(c *gin.Context) {
	user := middleware.CurrentUser(c)
	session, err := h.study.Start(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *StudyHandler) End(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user := middleware.CurrentUser(c)
	session, err := h.study.End(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *StudyHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user := middleware.CurrentUser(c)
	session, err := h.study.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *StudyHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	sessions, err := h.study.List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
