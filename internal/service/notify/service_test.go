package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/config"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	client "github.com/mamadbah2/milkmatrix/pkg/clients/whatsapp"
)

type fakeClient struct {
	sent        []client.SendTextMessageRequest
	err         error
	hasDeadline bool
}

func (f *fakeClient) SendTextMessage(ctx context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	_, f.hasDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &client.SendTextMessageResponse{}, nil
}

func newNotifier(c client.Client) *WhatsAppNotifier {
	return NewWhatsAppNotifier(config.WhatsAppConfig{ManagerID: "221770000000"}, c, nil)
}

func TestSendDailyReport(t *testing.T) {
	fc := &fakeClient{}
	n := newNotifier(fc)

	report := models.DailyReport{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), TotalLiters: 40, RecordCount: 4}
	require.NoError(t, n.SendDailyReport(context.Background(), report))

	require.Len(t, fc.sent, 1)
	assert.Equal(t, "221770000000", fc.sent[0].To)
	assert.Equal(t, "Milk report 2024-05-01: 40.0 L across 4 records.", fc.sent[0].Body)
	assert.True(t, fc.hasDeadline)
}

func TestSendAlertDigestSkipsEmpty(t *testing.T) {
	fc := &fakeClient{}
	n := newNotifier(fc)

	require.NoError(t, n.SendAlertDigest(context.Background(), nil))
	assert.Empty(t, fc.sent)

	require.NoError(t, n.SendAlertDigest(context.Background(), []models.HealthRecord{{CowID: "c1", Status: models.StatusUrgent}}))
	require.Len(t, fc.sent, 1)
	assert.Contains(t, fc.sent[0].Body, "[URGENT]")
}

func TestSendOutboundErrors(t *testing.T) {
	n := NewWhatsAppNotifier(config.WhatsAppConfig{}, &fakeClient{}, nil)
	assert.ErrorIs(t, n.SendDailyReport(context.Background(), models.DailyReport{}), ErrNoRecipient)

	failure := errors.New("whatsapp api error")
	n = newNotifier(&fakeClient{err: failure})
	assert.ErrorIs(t, n.SendOutbound(context.Background(), models.OutboundMessageRequest{To: "1", Message: "hi"}), failure)
}

func TestDiscard(t *testing.T) {
	var n Notifier = Discard{}
	assert.NoError(t, n.SendOutbound(context.Background(), models.OutboundMessageRequest{To: "1"}))
	assert.NoError(t, n.SendDailyReport(context.Background(), models.DailyReport{}))
	assert.NoError(t, n.SendAlertDigest(context.Background(), nil))
}
