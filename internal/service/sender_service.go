package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"parkingapi/internal/entities"
	"parkingapi/internal/events"
)

const sendTimeout = 15 * time.Second

type EmailSender interface {
	Send(ctx context.Context, toEmail, toName, subject, plainText, html string) error
}

type TextSender interface {
	Send(ctx context.Context, toNumber, body string) error
}

var bookingEmailTmpl = template.Must(template.New("booking_email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Booking #{{.BookingID}} {{.Status}}</h2>
  <p>Hello {{.UserName}},</p>
  <p>Your parking booking is <strong>{{.Status}}</strong>.</p>
  <table cellpadding="4">
    <tr><td>Space</td><td>{{.SpaceNumber}}{{if .SpaceLocation}} ({{.SpaceLocation}}){{end}}</td></tr>
    <tr><td>Vehicle</td><td>{{.VehicleModel}} {{.VehiclePlate}}</td></tr>
    <tr><td>From</td><td>{{.StartTimeFormatted}}</td></tr>
    <tr><td>Until</td><td>{{.EndTimeFormatted}}</td></tr>
  </table>
  <p style="font-size: 12px; color: #888;">&copy; {{.CurrentYear}} ParkSpace</p>
</body>
</html>`))

var notifiedStatus = map[string]string{
	events.BookingCreated:   "confirmed",
	events.BookingCancelled: "cancelled",
	events.BookingCompleted: "completed",
}

// SenderService emails and texts users about their bookings. Messages are
// delivered in the background; Wait blocks until queued deliveries finish.
type SenderService struct {
	mailer EmailSender
	sms    TextSender
	loc    *time.Location
	wg     sync.WaitGroup
}

// NewSenderService accepts nil senders for channels that are not configured.
func NewSenderService(mailer EmailSender, sms TextSender, timezone string) *SenderService {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", timezone).Msg("notify_timezone_fallback_utc")
		loc = time.UTC
	}
	return &SenderService{mailer: mailer, sms: sms, loc: loc}
}

func (s *SenderService) BookingChanged(ctx context.Context, change events.BookingChange) error {
	status, ok := notifiedStatus[change.Type]
	if !ok || change.Booking == nil {
		return nil
	}
	data := s.emailData(change, status)
	ctx = context.WithoutCancel(ctx)

	if s.mailer != nil && change.Booking.UserEmail != "" {
		subject := fmt.Sprintf("Your parking booking #%d is %s", data.BookingID, status)
		html, err := renderBookingEmail(data)
		if err != nil {
			return err
		}
		s.deliver(func() error {
			ctx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()
			return s.mailer.Send(ctx, change.Booking.UserEmail, data.UserName, subject, plainBookingEmail(data), html)
		}, "email", data.BookingID)
	}
	if s.sms != nil && change.Booking.UserPhone != "" {
		body := fmt.Sprintf("ParkSpace: booking #%d for space %s is %s. From %s.",
			data.BookingID, data.SpaceNumber, status, change.Booking.StartTime.In(s.loc).Format("02/01 15:04"))
		s.deliver(func() error {
			ctx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()
			return s.sms.Send(ctx, change.Booking.UserPhone, body)
		}, "sms", data.BookingID)
	}
	return nil
}

// Wait blocks until every queued delivery has finished.
func (s *SenderService) Wait() {
	s.wg.Wait()
}

func (s *SenderService) deliver(send func() error, channel string, bookingID int64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := send(); err != nil {
			log.Warn().Err(err).Str("channel", channel).Int64("booking_id", bookingID).Msg("notification_failed")
		}
	}()
}

func (s *SenderService) emailData(change events.BookingChange, status string) entities.BookingEmailData {
	b := change.Booking
	end := "open"
	if b.EndTime != nil {
		end = b.EndTime.In(s.loc).Format("02 Jan 2006 15:04 MST")
	}
	return entities.BookingEmailData{
		UserName:           b.UserName,
		BookingID:          b.ID,
		SpaceNumber:        b.SpaceNumber,
		SpaceLocation:      b.SpaceLocation,
		VehicleModel:       b.VehicleModel,
		VehiclePlate:       b.LicensePlate,
		StartTimeFormatted: b.StartTime.In(s.loc).Format("02 Jan 2006 15:04 MST"),
		EndTimeFormatted:   end,
		Status:             status,
		CurrentYear:        change.OccurredAt.In(s.loc).Year(),
	}
}

func renderBookingEmail(data entities.BookingEmailData) (string, error) {
	var buf bytes.Buffer
	if err := bookingEmailTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render booking email: %w", err)
	}
	return buf.String(), nil
}

func plainBookingEmail(d entities.BookingEmailData) string {
	return fmt.Sprintf("Hello %s,\n\nYour parking booking #%d is %s.\n\n"+
		"Space: %s %s\nVehicle: %s %s\nFrom: %s\nUntil: %s\n\nParkSpace",
		d.UserName, d.BookingID, d.Status, d.SpaceNumber, d.SpaceLocation,
		d.VehicleModel, d.VehiclePlate, d.StartTimeFormatted, d.EndTimeFormatted)
}
