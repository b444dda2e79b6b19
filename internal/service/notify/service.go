// Package notify pushes farm digests to the manager over WhatsApp.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/config"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/service/reporting"
	client "github.com/mamadbah2/milkmatrix/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// ErrNoRecipient is returned when no manager number is configured.
var ErrNoRecipient = errors.New("no notification recipient configured")

// Notifier describes the notifications the scheduler and HTTP layer send.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
	SendDailyReport(ctx context.Context, report models.DailyReport) error
	SendAlertDigest(ctx context.Context, alerts []models.HealthRecord) error
}

// WhatsAppNotifier is the production implementation backed by WhatsApp Cloud API.
type WhatsAppNotifier struct {
	cfg    config.WhatsAppConfig
	client client.Client
	logger *zap.Logger
}

// NewWhatsAppNotifier wires a new notifier instance.
func NewWhatsAppNotifier(cfg config.WhatsAppConfig, client client.Client, logger *zap.Logger) *WhatsAppNotifier {
	n := &WhatsAppNotifier{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	return n
}

// SendOutbound pushes a single text message.
func (n *WhatsAppNotifier) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	if req.To == "" {
		return ErrNoRecipient
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := n.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	if err != nil {
		return err
	}

	n.logger.Debug("message sent", zap.String("to", req.To), zap.String("message_id", resp.MessageID()))
	return nil
}

// SendDailyReport sends the production digest to the farm manager.
func (n *WhatsAppNotifier) SendDailyReport(ctx context.Context, report models.DailyReport) error {
	return n.SendOutbound(ctx, models.OutboundMessageRequest{
		To:      n.cfg.ManagerID,
		Message: reporting.FormatDailyReport(report),
	})
}

// SendAlertDigest sends the open health alerts to the farm manager. Nothing is
// sent when there are no alerts.
func (n *WhatsAppNotifier) SendAlertDigest(ctx context.Context, alerts []models.HealthRecord) error {
	if len(alerts) == 0 {
		n.logger.Debug("no open health alerts, digest skipped")
		return nil
	}
	return n.SendOutbound(ctx, models.OutboundMessageRequest{
		To:      n.cfg.ManagerID,
		Message: reporting.FormatAlertDigest(alerts),
	})
}

// Discard is a Notifier that drops every message. It is used when WhatsApp is
// not configured.
type Discard struct {
	Logger *zap.Logger
}

func (d Discard) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	d.log("outbound message dropped", zap.String("to", req.To))
	return nil
}

func (d Discard) SendDailyReport(_ context.Context, report models.DailyReport) error {
	d.log("daily report not sent", zap.String("message", reporting.FormatDailyReport(report)))
	return nil
}

func (d Discard) SendAlertDigest(_ context.Context, alerts []models.HealthRecord) error {
	d.log("alert digest not sent", zap.Int("alerts", len(alerts)))
	return nil
}

func (d Discard) log(msg string, fields ...zap.Field) {
	if d.Logger != nil {
		d.Logger.Info(msg, fields...)
	}
}
