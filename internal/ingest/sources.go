package ingest

import (
	"context"

	"github.com/matchwell/growth-plane/internal/domain"
)

// The source wrappers pre-tag the channel and delegate to IngestEvent.

func (s *Service) TrackWebEvent(ctx context.Context, in TrackInput) (*domain.Event, error) {
	in.Source = domain.SourceWeb
	return s.IngestEvent(ctx, in)
}

func (s *Service) TrackAppEvent(ctx context.Context, in TrackInput) (*domain.Event, error) {
	in.Source = domain.SourceApp
	return s.IngestEvent(ctx, in)
}

func (s *Service) TrackEmailEvent(ctx context.Context, in TrackInput) (*domain.Event, error) {
	in.Source = domain.SourceEmail
	return s.IngestEvent(ctx, in)
}

func (s *Service) TrackPaymentEvent(ctx context.Context, in TrackInput) (*domain.Event, error) {
	in.Source = domain.SourcePayment
	return s.IngestEvent(ctx, in)
}

func (s *Service) TrackBookingEvent(ctx context.Context, in TrackInput) (*domain.Event, error) {
	in.Source = domain.SourceBooking
	return s.IngestEvent(ctx, in)
}
