package handlers

import (
	"github.com/bookcircle/backend/internal/http/dto"
	"github.com/bookcircle/backend/internal/middleware"
	"github.com/bookcircle/backend/internal/models"
	"github.com/bookcircle/backend/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OfferHandler struct {
	offerRepo *repositories.BookOfferRepo
	log       *zap.Logger
}

func NewOfferHandler(offerRepo *repositories.BookOfferRepo, log *zap.Logger) *OfferHandler {
	return &OfferHandler{offerRepo: offerRepo, log: log}
}

func (h *OfferHandler) CreateOffer(c *fiber.Ctx) error {
	var req dto.CreateOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "title is required"})
	}
	if req.Condition != nil && !models.IsValidOfferCondition(*req.Condition) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "condition must be one of: new, very_good, good, acceptable"})
	}

	offer := &models.BookOffer{
		OwnerID:       middleware.GetUserID(c),
		Title:         req.Title,
		Author:        req.Author,
		OpenLibraryID: req.OpenLibraryID,
		Condition:     req.Condition,
		District:      req.District,
	}
	if err := h.offerRepo.Create(c.Context(), offer); err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *OfferHandler) GetOffer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	offer, err := h.offerRepo.Get(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *OfferHandler) MyOffers(c *fiber.Ctx) error {
	offers, err := h.offerRepo.ListByOwner(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offers})
}
