package stripe

//go:generate go run go.uber.org/mock/mockgen -source=./stripe.go -destination=./mocks/stripe_mock.go -package=mocks

import (
	"context"
	"eventasap/config"
	"eventasap/infras/otel"
	"eventasap/shared/constant"
	"fmt"

	stripeGo "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/rs/zerolog/log"
)

const (
	otelAttrAmount   = "amount"
	otelAttrCurrency = "currency"
	otelAttrIntentID = "intent_id"
)

// Intent is the provider-side handle for an authorized-but-unsettled charge.
// ClientSecret is handed to the frontend to complete the charge.
type Intent struct {
	ID           string
	ClientSecret string
}

// PaymentProvider wraps the Stripe PaymentIntent API. It is injected into the
// payment service so tests can substitute a fake.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

type providerImpl struct {
	api  *client.API
	otel otel.Otel
}

func New(cfg *config.Config, otl otel.Otel) PaymentProvider {
	api := &client.API{}
	api.Init(cfg.Payment.Stripe.SecretKey, nil)

	log.Info().Msg("Stripe client initialized")

	return &providerImpl{
		api:  api,
		otel: otl,
	}
}

func (p *providerImpl) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (res Intent, err error) {
	ctx, scope := p.otel.NewScope(ctx, constant.OtelStripeScopeName, constant.OtelStripeScopeName+".CreateIntent")
	defer scope.End()
	defer scope.TraceIfError(err)

	scope.SetAttributes(map[string]any{
		otelAttrAmount:   int(amountCents),
		otelAttrCurrency: currency,
	})

	params := &stripeGo.PaymentIntentParams{
		Amount:   stripeGo.Int64(amountCents),
		Currency: stripeGo.String(currency),
	}
	params.Context = ctx

	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		log.Error().Err(err).Int64("amount", amountCents).Msg("failed to create payment intent")

		return Intent{}, fmt.Errorf("failed to create payment intent: %w", err)
	}

	scope.SetAttribute(otelAttrIntentID, intent.ID)

	return Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (p *providerImpl) CancelIntent(ctx context.Context, intentID string) (err error) {
	ctx, scope := p.otel.NewScope(ctx, constant.OtelStripeScopeName, constant.OtelStripeScopeName+".CancelIntent")
	defer scope.End()
	defer scope.TraceIfError(err)

	scope.SetAttribute(otelAttrIntentID, intentID)

	params := &stripeGo.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err = p.api.PaymentIntents.Cancel(intentID, params); err != nil {
		log.Error().Err(err).Str("intentID", intentID).Msg("failed to cancel payment intent")

		return fmt.Errorf("failed to cancel payment intent: %w", err)
	}

	return nil
}
