package main

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/PaulBabatuyi/connectChat/internal/apperr"
	"github.com/PaulBabatuyi/connectChat/internal/auth"
	"github.com/PaulBabatuyi/connectChat/internal/data"
	"github.com/PaulBabatuyi/connectChat/internal/normalize"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	// Email holds an email address or a username.
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *data.User `json:"user"`
}

// handleRegister hashes the password, stores the user and returns a token.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Validation("invalid request body"))
		return
	}

	username := normalize.Username(req.Username)
	email := normalize.Email(req.Email)
	password := strings.TrimSpace(req.Password)
	if username == "" || email == "" || password == "" {
		_ = c.Error(apperr.ErrMissingFields)
		return
	}
	if !strings.Contains(email, "@") {
		_ = c.Error(apperr.Validation("invalid email address"))
		return
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			_ = c.Error(apperr.Validation("password is too long"))
			return
		}
		_ = c.Error(apperr.Internal("failed to register", err))
		return
	}

	user, err := s.users.CreateUser(c.Request.Context(), username, email, hashed)
	if err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			_ = c.Error(apperr.ErrEmailTaken)
			return
		}
		_ = c.Error(apperr.Internal("failed to register", err))
		return
	}

	s.respondWithToken(c, http.StatusCreated, user)
}

// handleLogin authenticates by email or username and returns a token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Validation("invalid request body"))
		return
	}

	identifier := strings.TrimSpace(req.Email)
	password := strings.TrimSpace(req.Password)
	if identifier == "" || password == "" {
		_ = c.Error(apperr.ErrMissingFields)
		return
	}

	user, err := s.users.GetUserByLogin(c.Request.Context(), identifier)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			_ = c.Error(apperr.ErrInvalidCredentials)
			return
		}
		_ = c.Error(apperr.Internal("failed to log in", err))
		return
	}

	if err := auth.CheckPassword(user.Password, password); err != nil {
		_ = c.Error(apperr.ErrInvalidCredentials)
		return
	}

	s.respondWithToken(c, http.StatusOK, user)
}

func (s *Server) respondWithToken(c *gin.Context, status int, user *data.User) {
	token, expiresAt, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		_ = c.Error(apperr.Internal("failed to generate token", err))
		return
	}
	c.JSON(status, authResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	user, err := s.users.GetUserByID(c.Request.Context(), callerID(c))
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			_ = c.Error(apperr.ErrUserNotFound)
			return
		}
		_ = c.Error(apperr.Internal("failed to load profile", err))
		return
	}
	c.JSON(http.StatusOK, user)
}

type profileRequest struct {
	Username     *string `json:"username"`
	Name         *string `json:"name"`
	Institution  *string `json:"institution"`
	ProfileImage *string `json:"profileImage"`
}

// handleUpdateProfile edits username, institution and profile image URL.
// "name" is accepted as an alias of "username".
func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperr.Validation("invalid request body"))
		return
	}

	upd := data.ProfileUpdate{Institution: req.Institution}
	if req.Username == nil {
		req.Username = req.Name
	}
	if req.Username != nil {
		name := normalize.Username(*req.Username)
		if name == "" {
			_ = c.Error(apperr.Validation("username cannot be empty"))
			return
		}
		upd.Username = &name
	}
	if req.ProfileImage != nil {
		img := strings.TrimSpace(*req.ProfileImage)
		if img != "" && !isHTTPURL(img) {
			_ = c.Error(apperr.Validation("profileImage must be an http(s) URL"))
			return
		}
		upd.ProfileImage = &img
	}

	user, err := s.users.UpdateProfile(c.Request.Context(), callerID(c), upd)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			_ = c.Error(apperr.ErrUserNotFound)
			return
		}
		_ = c.Error(apperr.Internal("failed to update profile", err))
		return
	}
	c.JSON(http.StatusOK, user)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
