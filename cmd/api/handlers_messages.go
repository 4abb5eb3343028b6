package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulBabatuyi/connectChat/internal/apperr"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleListConversations(c *gin.Context) {
	convs, err := s.messaging.ListConversations(c.Request.Context(), callerID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (s *Server) handleOpenConversation(c *gin.Context) {
	conv, err := s.messaging.OpenConversation(c.Request.Context(), callerID(c), c.Param("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleGetMessages(c *gin.Context) {
	msgs, err := s.messaging.GetMessages(c.Request.Context(), c.Param("conversationId"), callerID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Validation("invalid request body"))
		return
	}

	msg, err := s.messaging.SendMessage(c.Request.Context(), callerID(c), c.Param("userId"), req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
