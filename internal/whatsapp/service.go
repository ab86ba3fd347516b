// Package whatsapp implements the delivery channels of the notifier: a
// whatsmeow client paired through a QR code, and an HTTP gateway.
package whatsapp

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/talkincode/toughmeeting/internal/notify"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

var ErrNotLoggedIn = errors.New("whatsapp device is not paired")

// StateListener is told whenever the connection state changes.
type StateListener func(connected bool)

// client is the subset of *whatsmeow.Client the service uses.
type client interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	IsLoggedIn() bool
	SendMessage(ctx context.Context, to waTypes.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
}

// Service wraps a single whatsmeow device and implements notify.DeliveryChannel.
type Service struct {
	cli client

	listenerMux sync.RWMutex
	listener    StateListener

	// QR code captured from whatsmeow QR events; the raw code is rendered
	// as an image by the frontend.
	qr     string
	qrLock sync.RWMutex
}

var _ notify.DeliveryChannel = (*Service)(nil)

// StoreDriver maps the database type to the whatsmeow sqlstore dialect.
func StoreDriver(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "sqlite3"
	}
}

// New creates the service on the application database so the device
// session survives restarts.
func New(ctx context.Context, sqlDB *sql.DB, dbType string) (*Service, error) {
	driver := StoreDriver(dbType)
	if driver == "sqlite3" {
		// sqlstore migrations need foreign keys
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			zap.L().Warn("whatsapp: unable to enable sqlite foreign_keys pragma", zap.Error(err))
		}
	}
	container := sqlstore.NewWithDB(sqlDB, driver, NewLogger("store"))
	if err := container.Upgrade(ctx); err != nil {
		return nil, errors.Wrapf(err, "whatsapp sqlstore upgrade (%s)", driver)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "whatsapp sqlstore device")
	}
	cli := whatsmeow.NewClient(device, NewLogger("client"))
	svc := newService(cli)
	cli.AddEventHandler(svc.handleEvent)
	zap.L().Info("whatsapp: service initialized",
		zap.String("driver", driver), zap.Bool("paired", device.ID != nil))
	return svc, nil
}

func newService(cli client) *Service {
	return &Service{cli: cli}
}

// OnStateChange registers the connection state listener.
func (s *Service) OnStateChange(l StateListener) {
	s.listenerMux.Lock()
	s.listener = l
	s.listenerMux.Unlock()
}

func (s *Service) notifyState(connected bool) {
	s.listenerMux.RLock()
	l := s.listener
	s.listenerMux.RUnlock()
	if l != nil {
		l(connected)
	}
}

// Start connects the client and blocks until ctx is cancelled. The client
// stays connected until Stop so in-flight sends can finish.
func (s *Service) Start(ctx context.Context) error {
	zap.L().Info("whatsapp: starting client")
	s.ConnectAsync()
	<-ctx.Done()
	return nil
}

// Stop disconnects the client.
func (s *Service) Stop() {
	zap.L().Info("whatsapp: shutting down client")
	s.cli.Disconnect()
	s.notifyState(false)
}

// ConnectAsync triggers a non-blocking connect; errors are logged.
func (s *Service) ConnectAsync() {
	go func() {
		if s.cli.IsConnected() {
			return
		}
		if err := s.cli.Connect(); err != nil {
			zap.L().Warn("whatsapp: client connect failed", zap.Error(err))
		}
	}()
}

func (s *Service) IsConnected() bool {
	return s.cli.IsConnected() && s.cli.IsLoggedIn()
}

// GetQRCode returns the pending pairing code, empty once paired.
func (s *Service) GetQRCode() string {
	s.qrLock.RLock()
	defer s.qrLock.RUnlock()
	return s.qr
}

func (s *Service) setQR(code string) {
	s.qrLock.Lock()
	s.qr = code
	s.qrLock.Unlock()
}

func (s *Service) SendToIndividual(ctx context.Context, address, message string) (*notify.DeliveryResult, error) {
	jid, err := IndividualJID(address)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, jid, message)
}

func (s *Service) SendToGroup(ctx context.Context, groupID, message string) (*notify.DeliveryResult, error) {
	jid, err := GroupJID(groupID)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, jid, message)
}

func (s *Service) send(ctx context.Context, jid waTypes.JID, text string) (*notify.DeliveryResult, error) {
	if !s.cli.IsLoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.cli.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return nil, errors.Wrapf(err, "send to %s", jid)
	}
	zap.L().Debug("whatsapp: message sent", zap.String("jid", jid.String()), zap.String("id", string(resp.ID)))
	return &notify.DeliveryResult{ProviderMessageID: string(resp.ID)}, nil
}

func (s *Service) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.QR:
		if len(e.Codes) > 0 {
			s.setQR(e.Codes[0])
			zap.L().Info("whatsapp: qr code received, waiting for pairing")
		}
	case *events.PairSuccess:
		s.setQR("")
		zap.L().Info("whatsapp: device paired", zap.String("jid", e.ID.String()))
	case *events.Connected:
		s.setQR("")
		zap.L().Info("whatsapp: connected")
		s.notifyState(true)
	case *events.Disconnected:
		zap.L().Warn("whatsapp: disconnected")
		s.notifyState(false)
	case *events.LoggedOut:
		zap.L().Warn("whatsapp: logged out", zap.String("reason", e.Reason.String()))
		s.notifyState(false)
	case *events.StreamReplaced:
		zap.L().Warn("whatsapp: stream replaced by another session")
		s.notifyState(false)
	default:
		zap.L().Debug("whatsapp event", zap.String("type", typeName(evt)))
	}
}
