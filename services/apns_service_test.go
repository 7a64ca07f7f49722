package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"foodshare-notify/models"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPNSPusher struct {
	notifications []*apns2.Notification
	response      *apns2.Response
	err           error
}

func (f *fakeAPNSPusher) PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	f.notifications = append(f.notifications, n)
	return f.response, f.err
}

func TestClassifyAPNSResponse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		response     *apns2.Response
		status       models.OutcomeStatus
		invalidToken bool
	}{
		{"sent", &apns2.Response{StatusCode: http.StatusOK, ApnsID: "id-1"}, models.OutcomeSuccess, false},
		{"bad token", &apns2.Response{StatusCode: http.StatusBadRequest, Reason: apns2.ReasonBadDeviceToken}, models.OutcomePermanent, true},
		{"unregistered", &apns2.Response{StatusCode: http.StatusGone, Reason: apns2.ReasonUnregistered}, models.OutcomePermanent, true},
		{"wrong topic", &apns2.Response{StatusCode: http.StatusBadRequest, Reason: apns2.ReasonDeviceTokenNotForTopic}, models.OutcomePermanent, true},
		{"throttled", &apns2.Response{StatusCode: http.StatusTooManyRequests, Reason: apns2.ReasonTooManyRequests}, models.OutcomeRetryable, false},
		{"server error", &apns2.Response{StatusCode: http.StatusServiceUnavailable, Reason: apns2.ReasonServiceUnavailable}, models.OutcomeRetryable, false},
		{"payload too large", &apns2.Response{StatusCode: http.StatusRequestEntityTooLarge, Reason: apns2.ReasonPayloadTooLarge}, models.OutcomePermanent, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			outcome := classifyAPNSResponse(tc.response)
			assert.Equal(t, tc.status, outcome.Status)
			assert.Equal(t, tc.invalidToken, outcome.InvalidToken)
		})
	}
}

func TestAPNSGatewayDeliver(t *testing.T) {
	t.Parallel()

	pusher := &fakeAPNSPusher{response: &apns2.Response{StatusCode: http.StatusOK, ApnsID: "apns-1"}}
	gateway := newAPNSGateway(pusher, "org.foodshare.app")

	built, err := BuildPayload(dispatchIntent("u1"), models.PlatformIOS)
	require.NoError(t, err)

	outcome := gateway.Deliver(context.Background(), models.DeviceToken{Token: "ios-token"}, built)
	assert.Equal(t, models.OutcomeSuccess, outcome.Status)
	assert.Equal(t, "apns-1", outcome.MessageID)

	require.Len(t, pusher.notifications, 1)
	sent := pusher.notifications[0]
	assert.Equal(t, "ios-token", sent.DeviceToken)
	assert.Equal(t, "org.foodshare.app", sent.Topic)
	assert.Equal(t, apns2.PriorityHigh, sent.Priority)
	assert.Equal(t, "new_message:conversation/9", sent.CollapseID)
	assert.Equal(t, apns2.PushTypeAlert, sent.PushType)
}

func TestAPNSGatewayTransportErrorIsRetryable(t *testing.T) {
	t.Parallel()

	gateway := newAPNSGateway(&fakeAPNSPusher{err: errors.New("connection reset")}, "org.foodshare.app")

	built, err := BuildPayload(dispatchIntent("u1"), models.PlatformIOS)
	require.NoError(t, err)

	outcome := gateway.Deliver(context.Background(), models.DeviceToken{Token: "ios-token"}, built)
	assert.Equal(t, models.OutcomeRetryable, outcome.Status)
	assert.Equal(t, "transport", outcome.Reason)
}

func TestAPNSGatewayRejectsAndroidPayload(t *testing.T) {
	t.Parallel()

	pusher := &fakeAPNSPusher{}
	gateway := newAPNSGateway(pusher, "org.foodshare.app")

	built, err := BuildPayload(dispatchIntent("u1"), models.PlatformAndroid)
	require.NoError(t, err)

	outcome := gateway.Deliver(context.Background(), models.DeviceToken{Token: "android-token"}, built)
	assert.Equal(t, models.OutcomePermanent, outcome.Status)
	assert.Empty(t, pusher.notifications)
}
