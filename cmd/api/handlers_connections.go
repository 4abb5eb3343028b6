package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleDiscover(c *gin.Context) {
	users, err := s.connections.Discover(c.Request.Context(), callerID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) handleConnect(c *gin.Context) {
	conn, err := s.connections.SendRequest(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "connection request sent", "connection": conn})
}

func (s *Server) handleAccept(c *gin.Context) {
	convID, err := s.connections.AcceptRequest(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "connection accepted", "conversationId": convID.Hex()})
}

func (s *Server) handleReject(c *gin.Context) {
	if err := s.connections.RejectRequest(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "connection request rejected"})
}

func (s *Server) handleListConnections(c *gin.Context) {
	contacts, err := s.connections.ListConnections(c.Request.Context(), callerID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (s *Server) handleListRequests(c *gin.Context) {
	requests, err := s.connections.ListRequests(c.Request.Context(), callerID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, requests)
}
