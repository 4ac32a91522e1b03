// Package whatsapp implements the event group chat on WhatsApp groups.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// ErrNotConnected is returned while the client is not connected.
var ErrNotConnected = errors.New("whatsapp client is not connected")

type Config struct {
	DataDir string
	// DefaultCountryCode replaces the trunk prefix of local numbers.
	DefaultCountryCode string
}

type Service struct {
	client *whatsmeow.Client
	cfg    Config
	log    zerolog.Logger
	qrOut  io.Writer
}

// NewService opens the device store and creates a client for the first
// paired device, or an unpaired one.
func NewService(ctx context.Context, cfg Config, log zerolog.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.DataDir, "whatsmeow.db"))

	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	service := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    log,
		qrOut:  os.Stdout,
	}
	service.client.AddEventHandler(service.eventHandler)
	return service, nil
}

// NormalizePhoneNumber reduces a phone number to the digits WhatsApp expects:
// country code followed by the subscriber number, with no punctuation.
// Local numbers with a leading trunk 0 get countryCode prepended.
func NormalizePhoneNumber(phoneNumber, countryCode string) string {
	var b strings.Builder
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0") && countryCode != "":
		digits = countryCode + digits[1:]
	}

	// Country code followed by a stray trunk 0, e.g. 60012… -> 6012…
	if countryCode != "" && strings.HasPrefix(digits, countryCode+"0") {
		digits = countryCode + digits[len(countryCode)+1:]
	}
	return digits
}

// Connect connects to WhatsApp. An unpaired device prints a QR code and
// blocks until pairing finishes.
func (s *Service) Connect(ctx context.Context) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			s.log.Info().Str("event", evt.Event).Msg("pairing event")
			continue
		}
		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			s.log.Warn().Err(err).Str("code", evt.Code).Msg("render pairing QR code")
			continue
		}
		fmt.Fprintln(s.qrOut, "\n"+q.ToSmallString(false))
		s.log.Info().Msg("scan the QR code with WhatsApp: Settings > Linked Devices > Link a Device")
	}
	return nil
}

// Disconnect disconnects from WhatsApp.
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// AddParticipants adds the phone numbers to the group.
func (s *Service) AddParticipants(ctx context.Context, groupID string, phones []string) error {
	return s.updateParticipants(ctx, groupID, phones, whatsmeow.ParticipantChangeAdd)
}

// RemoveParticipants removes the phone numbers from the group.
func (s *Service) RemoveParticipants(ctx context.Context, groupID string, phones []string) error {
	return s.updateParticipants(ctx, groupID, phones, whatsmeow.ParticipantChangeRemove)
}

// Freeze switches the group to announcement mode so only admins can post.
func (s *Service) Freeze(ctx context.Context, groupID string) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}
	jid, err := types.ParseJID(groupID)
	if err != nil {
		return fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	if err := s.client.SetGroupAnnounce(ctx, jid, true); err != nil {
		return fmt.Errorf("failed to freeze group: %w", err)
	}
	return nil
}

func (s *Service) updateParticipants(ctx context.Context, groupID string, phones []string, action whatsmeow.ParticipantChange) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}
	group, err := types.ParseJID(groupID)
	if err != nil {
		return fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	jids, err := s.resolve(ctx, phones)
	if err != nil {
		return err
	}

	results, err := s.client.UpdateGroupParticipants(ctx, group, jids, action)
	if err != nil {
		return fmt.Errorf("failed to %s participants: %w", action, err)
	}
	for _, p := range results {
		if p.Error != 0 {
			s.log.Warn().
				Str("group", groupID).
				Str("jid", p.JID.String()).
				Int("code", p.Error).
				Str("action", string(action)).
				Msg("participant change rejected")
		}
	}
	return nil
}

// resolve verifies the numbers are on WhatsApp and returns their JIDs.
func (s *Service) resolve(ctx context.Context, phones []string) ([]types.JID, error) {
	normalized := make([]string, 0, len(phones))
	for _, p := range phones {
		normalized = append(normalized, "+"+NormalizePhoneNumber(p, s.cfg.DefaultCountryCode))
	}

	resp, err := s.client.IsOnWhatsApp(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to verify numbers on WhatsApp: %w", err)
	}
	jids := make([]types.JID, 0, len(resp))
	for _, r := range resp {
		if !r.IsIn {
			s.log.Warn().Str("phone", r.Query).Msg("number is not registered on WhatsApp")
			continue
		}
		jids = append(jids, r.JID)
	}
	if len(jids) == 0 {
		return nil, fmt.Errorf("none of %v is registered on WhatsApp", normalized)
	}
	return jids, nil
}

func (s *Service) eventHandler(evt any) {
	switch evt.(type) {
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Warn().Msg("Logged out from WhatsApp")
	}
}
