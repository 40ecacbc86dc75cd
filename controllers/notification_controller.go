package controllers

import (
	"net/http"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/middleware"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/Faraz011/Hindustan-Bills-sub001/repository"
	"github.com/Faraz011/Hindustan-Bills-sub001/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationController struct {
	notificationService services.NotificationService
	configs             repository.ChannelConfigStore
	writer              repository.ChannelConfigWriter
	logger              *zap.Logger
}

// NewNotificationController takes a nil writer when channel configs are
// static; updates then answer 501.
func NewNotificationController(
	svc services.NotificationService,
	configs repository.ChannelConfigStore,
	writer repository.ChannelConfigWriter,
	logger *zap.Logger,
) *NotificationController {
	return &NotificationController{notificationService: svc, configs: configs, writer: writer, logger: logger}
}

// OrderCompleted is the synchronous intake used by the fulfillment
// subsystem when no queue sits in between.
func (cc *NotificationController) OrderCompleted(ctx *gin.Context) {
	var event models.OrderCompletedEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		_ = ctx.Error(apperrors.New(apperrors.KindInvalidInput, "invalid order_completed event", err))
		return
	}
	if event.ShopID == "" && event.Order.ShopID == "" {
		_ = ctx.Error(apperrors.New(apperrors.KindInvalidInput, "invalid order_completed event: shop_id is required", nil))
		return
	}
	if event.EventType == "" {
		event.EventType = models.TypeOrderCompleted
	}

	summary, err := cc.notificationService.HandleOrderCompleted(ctx.Request.Context(), &event)
	if err != nil {
		cc.logger.Error("failed to handle order_completed",
			zap.String("shop_id", event.ShopID),
			zap.String("order_number", event.Order.OrderNumber),
			zap.Error(err),
		)
		_ = ctx.Error(err)
		return
	}

	status := http.StatusOK
	if summary.Duplicate {
		status = http.StatusAccepted
	}
	ctx.JSON(status, summary)
}

func (cc *NotificationController) GetShopChannels(ctx *gin.Context) {
	cfg, err := cc.configs.Get(ctx.Request.Context(), ctx.Param("shop_id"))
	if err != nil {
		cc.logger.Error("failed to load channel config", zap.String("shop_id", ctx.Param("shop_id")), zap.Error(err))
		_ = ctx.Error(apperrors.Wrap(apperrors.ErrInternal, err))
		return
	}
	ctx.JSON(http.StatusOK, cfg)
}

func (cc *NotificationController) PutShopChannels(ctx *gin.Context) {
	if cc.writer == nil {
		ctx.JSON(http.StatusNotImplemented, gin.H{"error": "channel configs are read-only"})
		return
	}

	var cfg models.ChannelConfig
	if err := ctx.ShouldBindJSON(&cfg); err != nil {
		_ = ctx.Error(apperrors.New(apperrors.KindInvalidInput, "invalid channel config", err))
		return
	}
	cfg.ShopID = ctx.Param("shop_id")

	if err := cc.writer.Upsert(ctx.Request.Context(), cfg); err != nil {
		cc.logger.Error("failed to save channel config", zap.String("shop_id", cfg.ShopID), zap.Error(err))
		_ = ctx.Error(apperrors.Wrap(apperrors.ErrInternal, err))
		return
	}

	cc.logger.Info("channel config updated",
		zap.String("shop_id", cfg.ShopID),
		zap.String("updated_by", middleware.GetUserID(ctx)),
	)
	ctx.JSON(http.StatusOK, cfg)
}
