package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPGateway charges through a remote payment service:
//
//	POST {baseURL}/charges  {"orderId","method","amount"}
//	200 {"status":"approved","reference":"..."} | {"status":"declined","reason":"..."}
type HTTPGateway struct {
	client *resty.Client
	logger *zap.Logger
}

type chargeRequest struct {
	OrderID string `json:"orderId"`
	Method  Method `json:"method"`
	Amount  int64  `json:"amount"`
}

type chargeResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

func NewHTTPGateway(baseURL, apiKey string, logger *zap.Logger) *HTTPGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPGateway{client: client, logger: logger}
}

// NewHTTPGatewayWithClient wraps an existing resty client (for testing).
func NewHTTPGatewayWithClient(client *resty.Client, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{client: client, logger: logger}
}

func (g *HTTPGateway) Charge(ctx context.Context, c Charge) (Result, error) {
	var body chargeResponse
	started := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", c.IdempotencyKey()).
		SetBody(chargeRequest{OrderID: c.OrderID, Method: c.Method, Amount: c.Amount}).
		SetResult(&body).
		Post("/charges")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	g.logger.Debug("charge response",
		zap.String("orderId", c.OrderID),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode() != http.StatusOK {
		return Result{}, fmt.Errorf("%w: HTTP %d", ErrGatewayUnavailable, resp.StatusCode())
	}

	switch body.Status {
	case "approved":
		return Result{Approved: true, Reference: body.Reference}, nil
	case "declined":
		return Result{Approved: false, Reason: body.Reason}, nil
	default:
		return Result{}, fmt.Errorf("%w: unexpected status %q", ErrGatewayUnavailable, body.Status)
	}
}
