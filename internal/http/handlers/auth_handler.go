package handlers

import (
	"strings"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/auth"
	"github.com/bookcircle/backend/internal/config"
	"github.com/bookcircle/backend/internal/http/dto"
	"github.com/bookcircle/backend/internal/models"
	"github.com/bookcircle/backend/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	users repositories.UserDirectory
	cfg   *config.Config
	log   *zap.Logger
}

func NewAuthHandler(users repositories.UserDirectory, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, cfg: cfg, log: log}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "valid email is required"})
	}
	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "password must be at least 8 characters"})
	}
	if req.DisplayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "display_name is required"})
	}

	if _, err := h.users.GetByEmail(c.Context(), req.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "email already registered"})
	} else if !apperr.IsCode(err, apperr.CodeNotFound) {
		return respondError(c, h.log, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, h.log, err)
	}

	user := &models.User{
		Email:         req.Email,
		PasswordHash:  string(hash),
		DisplayName:   req.DisplayName,
		AvatarURL:     req.AvatarURL,
		District:      req.District,
		CreditBalance: h.cfg.StartingCredits,
	}
	if err := h.users.Create(c.Context(), user); err != nil {
		return respondError(c, h.log, err)
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Email, h.cfg.JWTExpiration)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := h.users.GetByEmail(c.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid email or password"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid email or password"})
	}

	if err := h.users.Touch(c.Context(), user.ID); err != nil {
		h.log.Warn("failed to update last_active", zap.Error(err))
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Email, h.cfg.JWTExpiration)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.AuthResponse{Token: token, User: user})
}
