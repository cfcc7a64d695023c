package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/buildtall-systems/gifticon/internal/auth"
	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/payment"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/buildtall-systems/gifticon/internal/workflow"
	"go.uber.org/zap"
)

type productView struct {
	catalog.Product
	DisplayPrice string             `json:"displayPrice"`
	Bucket       catalog.PriceBucket `json:"priceBucket"`
}

type catalogView struct {
	Filter    catalog.FilterState `json:"filter"`
	Products  []productView       `json:"products"`
	Merchants []string            `json:"merchants"`
	Occasions []string            `json:"occasions"`
}

type snapshotView struct {
	Version   uint64          `json:"version"`
	Status    string          `json:"status"`
	Fulfilled bool            `json:"fulfilled"`
	Order     *workflow.Order `json:"order"`
	LastError string          `json:"lastError,omitempty"`
	Warning   string          `json:"warning,omitempty"`
}

func newSnapshotView(s workflow.Snapshot) snapshotView {
	v := snapshotView{
		Version:   s.Version,
		Status:    s.Status,
		Fulfilled: s.Fulfilled(),
		Order:     s.Order,
	}
	if s.LastError != nil {
		v.LastError = s.LastError.Error()
	}
	if s.Warning != nil {
		v.Warning = s.Warning.Error()
	}
	return v
}

type shareView struct {
	share.ComposedMessage
	Warning string `json:"warning,omitempty"`
}

type errorView struct {
	Error string `json:"error"`
}

type loginInput struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type startInput struct {
	ProductID string `json:"productId"`
}

type methodInput struct {
	Method string `json:"method"`
}

type sendInput struct {
	Query     string `json:"query"`
	ContactID string `json:"contactId"`
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&out)
	return out, err
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	res, err := json.Marshal(v)
	if err != nil {
		logger.Error("encoding response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(res); err != nil {
		logger.Debug("writing response", zap.Error(err))
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrDuplicateInFlightOrder),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrOrderNotFulfilled):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrNoPaymentMethodSelected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrInvalidPaymentMethod),
		errors.Is(err, payment.ErrUnknownMethod),
		errors.Is(err, share.ErrUnknownChannel),
		errors.Is(err, auth.ErrInvalidPhone),
		errors.Is(err, auth.ErrInvalidOTP):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, workflow.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrPaymentTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, share.ErrNoContactSender):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
