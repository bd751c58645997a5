package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/attendance-api/pkg/config"
)

func newSMSServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	captured := &http.Request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*captured = *r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func smsConfig(url string) config.SMSConfig {
	return config.SMSConfig{APIURL: url, AccountSID: "AC1", AuthToken: "secret", SenderNumber: "+15550000000"}
}

func TestSMSGatewaySent(t *testing.T) {
	srv, req := newSMSServer(t, http.StatusCreated, `{"sid":"SM123"}`)
	gw := NewSMSGateway(smsConfig(srv.URL), srv.Client(), nil)

	res := gw.Send(context.Background(), "+15551234567", AbsenceMessage("Alice"))
	assert.Equal(t, OutcomeSent, res.Outcome)
	assert.Equal(t, "SM123", res.AckID)

	assert.Equal(t, "+15551234567", req.PostForm.Get("To"))
	assert.Equal(t, "+15550000000", req.PostForm.Get("From"))
	assert.Equal(t, "Your child Alice was marked absent today.", req.PostForm.Get("Body"))
	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "AC1", user)
	assert.Equal(t, "secret", pass)
}

func TestSMSGatewayPermissionDenied(t *testing.T) {
	srv, _ := newSMSServer(t, http.StatusForbidden, `{"message":"account suspended"}`)
	gw := NewSMSGateway(smsConfig(srv.URL), srv.Client(), nil)

	res := gw.Send(context.Background(), "+15551234567", "hi")
	assert.Equal(t, OutcomePermissionDenied, res.Outcome)
	assert.Contains(t, res.Reason, "account suspended")
}

func TestSMSGatewayFailed(t *testing.T) {
	srv, _ := newSMSServer(t, http.StatusInternalServerError, `oops`)
	gw := NewSMSGateway(smsConfig(srv.URL), srv.Client(), nil)

	res := gw.Send(context.Background(), "+15551234567", "hi")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, res.Sent())
}

func TestSMSGatewayUnconfigured(t *testing.T) {
	gw := NewSMSGateway(config.SMSConfig{}, nil, nil)
	res := gw.Send(context.Background(), "+15551234567", "hi")
	assert.Equal(t, OutcomePermissionDenied, res.Outcome)
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "15551234567", DigitsOnly("+1 (555) 123-4567"))
}
