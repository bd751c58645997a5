package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogGateway writes notifications to the log instead of delivering them.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway constructs a LogGateway.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogGateway{logger: logger}
}

// Send logs the message and reports it as sent.
func (g *LogGateway) Send(_ context.Context, phone, message string) Result {
	ack := uuid.NewString()
	g.logger.Info("notification logged", zap.String("phone", phone), zap.String("message", message), zap.String("ack_id", ack))
	return Result{Outcome: OutcomeSent, AckID: ack}
}
