// Package api - HTTP-интерфейс постановки, отмены запусков и просмотра кредитов.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"campaign-server/internal/credits"
	"campaign-server/internal/domain"
	"campaign-server/shared/messaging"
	"campaign-server/shared/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTransactionsLimit = 20
	maxTransactionsLimit     = 100
	publishTimeout           = 5 * time.Second
)

// APIError - тело ответа с ошибкой.
type APIError struct {
	Message string `json:"message"`
}

type createCampaignRequest struct {
	SubjectRef  string `json:"subjectRef" validate:"required,max=2048"`
	Channel     string `json:"channel" validate:"required,oneof=instagram tiktok youtube facebook linkedin x"`
	AspectRatio string `json:"aspectRatio" validate:"required,oneof=9:16 16:9 1:1 4:5"`
}

type createCampaignResponse struct {
	TaskID string `json:"taskId"`
}

type depositRequest struct {
	AccountID string `json:"accountId" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

// CampaignHandler обрабатывает запросы к кампаниям.
type CampaignHandler struct {
	tasks    messaging.Publisher
	cancels  messaging.Publisher
	ledger   credits.Ledger
	validate *validator.Validate
	newID    func() string
	logger   *zap.Logger
}

func NewCampaignHandler(tasks, cancels messaging.Publisher, ledger credits.Ledger, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		tasks:    tasks,
		cancels:  cancels,
		ledger:   ledger,
		validate: validator.New(),
		newID:    uuid.NewString,
		logger:   logger.Named("CampaignHandler"),
	}
}

// createCampaign ставит задачу в очередь. Кредиты резервирует воркер при старте запуска.
func (h *CampaignHandler) createCampaign(c *gin.Context) {
	accountID := c.GetString(middleware.ContextKeyAccountID)

	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
		return
	}

	taskID := h.newID()
	payload := messaging.CampaignTaskPayload{
		TaskID:      taskID,
		AccountID:   accountID,
		SubjectRef:  req.SubjectRef,
		Channel:     req.Channel,
		AspectRatio: req.AspectRatio,
		RequestedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), publishTimeout)
	defer cancel()
	if err := h.tasks.Publish(ctx, payload, taskID); err != nil {
		h.logger.Error("Failed to enqueue campaign task", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, APIError{Message: "failed to enqueue campaign"})
		return
	}

	h.logger.Info("Campaign task enqueued", zap.String("task_id", taskID), zap.String("account_id", accountID))
	c.JSON(http.StatusAccepted, createCampaignResponse{TaskID: taskID})
}

func (h *CampaignHandler) cancelCampaign(c *gin.Context) {
	taskID := c.Param("taskId")
	if _, err := uuid.Parse(taskID); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid task id"})
		return
	}

	payload := messaging.CampaignCancelPayload{TaskID: taskID, AccountID: c.GetString(middleware.ContextKeyAccountID)}
	ctx, cancel := context.WithTimeout(c.Request.Context(), publishTimeout)
	defer cancel()
	if err := h.cancels.Publish(ctx, payload, taskID); err != nil {
		h.logger.Error("Failed to publish cancel request", zap.String("task_id", taskID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, APIError{Message: "failed to cancel campaign"})
		return
	}
	c.Status(http.StatusAccepted)
}

type creditsResponse struct {
	AccountID    string                     `json:"accountId"`
	Balance      int64                      `json:"balance"`
	Transactions []domain.CreditTransaction `json:"transactions"`
}

func (h *CampaignHandler) getCredits(c *gin.Context) {
	accountID := c.GetString(middleware.ContextKeyAccountID)

	limit := defaultTransactionsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, APIError{Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxTransactionsLimit)
	}

	balance, err := h.ledger.Balance(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("Failed to read balance", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "failed to read balance"})
		return
	}
	txs, err := h.ledger.Transactions(c.Request.Context(), accountID, limit)
	if err != nil {
		h.logger.Error("Failed to read transactions", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "failed to read transactions"})
		return
	}

	if txs == nil {
		txs = []domain.CreditTransaction{}
	}
	c.JSON(http.StatusOK, creditsResponse{AccountID: accountID, Balance: balance, Transactions: txs})
}

// deposit - операторское пополнение баланса.
func (h *CampaignHandler) deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
		return
	}

	if err := h.ledger.Deposit(c.Request.Context(), req.AccountID, req.Amount); err != nil {
		if errors.Is(err, credits.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
			return
		}
		h.logger.Error("Deposit failed", zap.String("account_id", req.AccountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "deposit failed"})
		return
	}
	h.logger.Info("Credits deposited",
		zap.String("account_id", req.AccountID),
		zap.Int64("amount", req.Amount),
		zap.String("operator", c.GetString(middleware.ContextKeyAccountID)))

	balance, err := h.ledger.Balance(c.Request.Context(), req.AccountID)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accountId": req.AccountID, "balance": balance})
}
