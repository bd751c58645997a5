package notify

import (
	"context"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/rollcall/attendance-api/pkg/config"
)

// WhatsAppGateway sends notifications from a linked WhatsApp account. The
// device session lives in a sqlite store under the configured data dir.
type WhatsAppGateway struct {
	client *whatsmeow.Client
	logger *zap.Logger

	mu        sync.RWMutex
	loggedOut bool
}

// NewWhatsAppGateway opens the device store and prepares a client. Call
// Connect before sending.
func NewWhatsAppGateway(ctx context.Context, cfg config.WhatsAppConfig, logger *zap.Logger) (*WhatsAppGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create whatsapp data dir: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s/whatsmeow.db?_foreign_keys=on", cfg.DataDir), nil)
	if err != nil {
		return nil, fmt.Errorf("open whatsapp store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load whatsapp device: %w", err)
	}

	g := &WhatsAppGateway{client: whatsmeow.NewClient(device, nil), logger: logger}
	g.client.AddEventHandler(g.handleEvent)
	return g, nil
}

// Connect links the client. An unpaired device prints a pairing QR code to
// stdout and blocks until pairing finishes or ctx ends.
func (g *WhatsAppGateway) Connect(ctx context.Context) error {
	if g.client.Store.ID != nil {
		if err := g.client.Connect(); err != nil {
			return fmt.Errorf("connect whatsapp: %w", err)
		}
		return nil
	}

	qrChan, err := g.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp qr channel: %w", err)
	}
	if err := g.client.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			g.logger.Info("whatsapp pairing event", zap.String("event", evt.Event))
			continue
		}
		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			g.logger.Info("whatsapp pairing code", zap.String("code", evt.Code))
			continue
		}
		fmt.Println(q.ToSmallString(false))
		g.logger.Info("scan the QR code above from WhatsApp > Linked Devices")
	}
	return nil
}

// Disconnect closes the connection.
func (g *WhatsAppGateway) Disconnect() {
	g.client.Disconnect()
}

// Send verifies that phone is on WhatsApp and sends message to it. An
// unpaired or logged out device means permission is not granted.
func (g *WhatsAppGateway) Send(ctx context.Context, phone, message string) Result {
	g.mu.RLock()
	loggedOut := g.loggedOut
	g.mu.RUnlock()
	if g.client.Store.ID == nil || loggedOut {
		return Result{Outcome: OutcomePermissionDenied, Reason: "whatsapp device is not linked"}
	}

	number := DigitsOnly(phone)
	resp, err := g.client.IsOnWhatsApp(ctx, []string{number})
	if err != nil {
		return failed("verify whatsapp number: %v", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return failed("number %s is not registered on whatsapp", number)
	}

	sent, err := g.client.SendMessage(ctx, resp[0].JID, &waE2E.Message{Conversation: &message})
	if err != nil {
		g.logger.Warn("whatsapp send failed", zap.String("jid", resp[0].JID.String()), zap.Error(err))
		return failed("send whatsapp message: %v", err)
	}
	return Result{Outcome: OutcomeSent, AckID: sent.ID}
}

func (g *WhatsAppGateway) handleEvent(evt interface{}) {
	switch evt.(type) {
	case *events.Connected:
		g.setLoggedOut(false)
		g.logger.Info("whatsapp connected")
	case *events.Disconnected:
		g.logger.Warn("whatsapp disconnected")
	case *events.LoggedOut:
		g.setLoggedOut(true)
		g.logger.Warn("whatsapp logged out")
	}
}

func (g *WhatsAppGateway) setLoggedOut(v bool) {
	g.mu.Lock()
	g.loggedOut = v
	g.mu.Unlock()
}
