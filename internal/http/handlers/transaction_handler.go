package handlers

import (
	"strconv"

	"github.com/bookcircle/backend/internal/http/dto"
	"github.com/bookcircle/backend/internal/middleware"
	"github.com/bookcircle/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	txService *services.TransactionService
	log       *zap.Logger
}

func NewTransactionHandler(txService *services.TransactionService, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{txService: txService, log: log}
}

func (h *TransactionHandler) CreateTransaction(c *fiber.Ctx) error {
	var req dto.CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid provider_id"})
	}
	offerID, err := uuid.Parse(req.OfferID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer_id"})
	}
	conversationID := uuid.Nil
	if req.ConversationID != "" {
		conversationID, err = uuid.Parse(req.ConversationID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid conversation_id"})
		}
	}

	requesterID := middleware.GetUserID(c)
	detail, err := h.txService.Create(c.Context(), requesterID, services.CreateTransactionInput{
		ProviderID:      providerID,
		ConversationID:  conversationID,
		TransactionType: req.TransactionType,
		OfferType:       req.OfferType,
		OfferID:         offerID,
		InitialMessage:  req.InitialMessage,
		ProposedTimes:   req.ProposedTimes,
		CreditAmount:    req.CreditAmount,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: detail})
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	detail, err := h.txService.Get(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}

func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var status *string
	if v := c.Query("status"); v != "" {
		status = &v
	}

	summaries, err := h.txService.List(c.Context(), middleware.GetUserID(c), status, limit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: summaries})
}

func (h *TransactionHandler) AcceptTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	detail, err := h.txService.Accept(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}

func (h *TransactionHandler) RejectTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.RejectTransactionRequest
	_ = c.BodyParser(&req)

	detail, err := h.txService.Reject(c.Context(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}

func (h *TransactionHandler) ProposeTime(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.ProposeTimeRequest
	if err := c.BodyParser(&req); err != nil || req.ProposedTime.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "proposed_time is required"})
	}

	detail, err := h.txService.ProposeTime(c.Context(), id, middleware.GetUserID(c), req.ProposedTime)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}

func (h *TransactionHandler) ConfirmTime(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.ConfirmTimeRequest
	if err := c.BodyParser(&req); err != nil || req.ConfirmedTime.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "confirmed_time is required"})
	}

	detail, err := h.txService.ConfirmTime(c.Context(), id, middleware.GetUserID(c), req.ConfirmedTime, req.ExactAddress)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}

func (h *TransactionHandler) ConfirmHandover(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.ConfirmHandoverRequest
	_ = c.BodyParser(&req)

	detail, err := h.txService.ConfirmHandover(c.Context(), id, middleware.GetUserID(c), req.Note)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}

func (h *TransactionHandler) CancelTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.CancelTransactionRequest
	_ = c.BodyParser(&req)

	detail, err := h.txService.Cancel(c.Context(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}

func (h *TransactionHandler) GetTransactionEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	events, err := h.txService.Events(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: events})
}
