// Package registration talks to the remote QR registration service that
// issues one durable sale code per physical unit before anything is printed.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/infrastructure/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 8 << 20
)

// Config contains configuration for the registration client
type Config struct {
	// Endpoint is the full URL of the registration POST endpoint
	Endpoint string
	// LocationEndpoint receives printed codes with their location (optional)
	LocationEndpoint string
	// APIKey is sent as a bearer token
	APIKey string
	// Timeout bounds one HTTP exchange (default: 15s)
	Timeout time.Duration
	// Logger for request logging
	Logger *zap.Logger
}

// Client is the HTTP registration client. It performs exactly one exchange
// per call; retries belong to the caller.
type Client struct {
	config   *Config
	http     *http.Client
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClock replaces the time source used for sold_at and printed_at defaults
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new registration client
func NewClient(config *Config, opts ...Option) *Client {
	if config == nil {
		config = &Config{}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		config:   config,
		http:     &http.Client{Timeout: config.Timeout},
		validate: validator.New(),
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register exchanges the request for confirmed label payloads. The output
// holds one payload per requested unit in request expansion order, or an
// error of type *printing.RegistrationError.
func (c *Client) Register(ctx context.Context, req *printing.RegistrationRequest) (*printing.ConfirmedBatch, error) {
	if req == nil || req.UnitCount() == 0 {
		return nil, printing.NewRegistrationError(printing.FailureNoItems, "no units requested", nil)
	}
	if err := c.checkConfigured(c.config.Endpoint); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(req); err != nil {
		return nil, printing.NewRegistrationError(printing.FailureInvalidRequest, "request validation failed", err)
	}

	body, err := json.Marshal(toRequestJSON(req, c.now()))
	if err != nil {
		return nil, printing.NewRegistrationError(printing.FailureInvalidRequest, "encode request", err)
	}

	start := time.Now()
	status, data, err := c.post(ctx, c.config.Endpoint, body)
	if err != nil {
		logger.Ctx(ctx, c.logger).Warn("label registration request failed",
			zap.String("store_id", req.StoreID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, printing.NewRegistrationError(printing.FailureNetworkError, "registration request failed", err)
	}

	var resp registerResponse
	decodeErr := json.Unmarshal(data, &resp)

	if status != http.StatusOK {
		regErr := &printing.RegistrationError{
			Kind:       printing.FailureBackendError,
			StatusCode: status,
			Detail:     http.StatusText(status),
		}
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			regErr.Kind = printing.FailureNotConfigured
		}
		if decodeErr == nil && resp.Error != "" {
			regErr.Detail = resp.Error
		}
		return nil, regErr
	}
	if decodeErr != nil {
		return nil, printing.NewRegistrationError(printing.FailureBackendError, "malformed registration response", decodeErr)
	}
	if !resp.Success {
		detail := resp.Error
		if detail == "" {
			detail = "registration rejected"
		}
		return nil, printing.NewRegistrationError(printing.FailureBackendError, detail, nil)
	}

	batch, err := c.toBatch(req, &resp)
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx, c.logger).Info("label codes registered",
		zap.String("store_id", req.StoreID),
		zap.Int("units", req.UnitCount()),
		zap.Int("qr_codes_registered", batch.QRCodesRegistered),
		zap.Int("skipped", len(batch.Skipped)),
		zap.Duration("duration", time.Since(start)))

	return batch, nil
}

// matchUnits returns the request units the returned codes belong to. Units
// of skipped products are dropped when the backend issued no codes for them;
// any other count mismatch fails closed.
func matchUnits(units []printing.RegistrationItem, skipped []printing.SkippedProduct, got int) ([]printing.RegistrationItem, error) {
	if got == len(units) {
		return units, nil
	}
	dropped := make(map[string]struct{}, len(skipped))
	for _, sp := range skipped {
		dropped[sp.ProductID] = struct{}{}
	}
	kept := make([]printing.RegistrationItem, 0, len(units))
	for _, u := range units {
		if _, ok := dropped[u.ProductID]; !ok {
			kept = append(kept, u)
		}
	}
	switch {
	case got == len(kept) && got == 0:
		return nil, printing.NewRegistrationError(printing.FailureNoItems, "every requested product was skipped", nil)
	case got == len(kept):
		return kept, nil
	default:
		return nil, printing.NewRegistrationError(printing.FailureBackendError,
			fmt.Sprintf("expected %d sale codes, got %d", len(kept), got), nil)
	}
}

// toBatch validates the payload and zips it with the expanded request units
func (c *Client) toBatch(req *printing.RegistrationRequest, resp *registerResponse) (*printing.ConfirmedBatch, error) {
	if resp.Payload == nil {
		return nil, printing.NewRegistrationError(printing.FailureBackendError, "registration response has no payload", nil)
	}
	skipped := parseSkipped(resp.SkippedProducts)
	units, err := matchUnits(req.ExpandedUnits(), skipped, len(resp.Payload.Items))
	if err != nil {
		return nil, err
	}

	labels := make([]printing.LabelPayload, len(units))
	seen := make(map[printing.SaleCode]struct{}, len(units))
	for i, item := range resp.Payload.Items {
		code, err := printing.ParseSaleCode(item.SaleCode)
		if err != nil {
			return nil, printing.NewRegistrationError(printing.FailureBackendError, "invalid sale code in response", err)
		}
		if _, dup := seen[code]; dup {
			return nil, printing.NewRegistrationError(printing.FailureBackendError, "duplicate sale code in response: "+item.SaleCode, nil)
		}
		seen[code] = struct{}{}

		tier := item.TierLabel
		if tier == "" {
			tier = units[i].TierLabel
		}
		labels[i] = printing.LabelPayload{
			SaleCode:  code,
			Item:      item.Product.snapshot(units[i].Snapshot),
			TierLabel: tier,
		}
	}

	registered := resp.QRCodesRegistered
	if registered == 0 {
		registered = len(labels)
	}
	batch := &printing.ConfirmedBatch{
		Labels: labels,
		Config: printing.BatchConfig{
			StoreID:            resp.Payload.Config.StoreID,
			LocationName:       resp.Payload.Config.LocationName,
			StoreLogoURL:       resp.Payload.Config.StoreLogoURL,
			DistributorLicense: resp.Payload.Config.DistributorLicense,
		},
		SaleContext:       resp.Payload.SaleContext.toDomain(),
		QRCodesRegistered: registered,
		Skipped:           skipped,
	}
	if batch.Config.StoreID == "" {
		batch.Config.StoreID = req.StoreID
	}
	if batch.SaleContext == nil {
		batch.SaleContext = req.SaleContext
	}
	if t := parseDate(resp.Payload.SealedDate); t != nil {
		batch.SealedDate = *t
	} else {
		batch.SealedDate = c.now()
	}
	return batch, nil
}

// RecordLocations reports where already printed codes ended up. It is a
// side channel; a disabled endpoint is not an error.
func (c *Client) RecordLocations(ctx context.Context, codes []printing.SaleCode, locationID, locationName string) error {
	if c.config.LocationEndpoint == "" || len(codes) == 0 {
		return nil
	}
	if err := c.checkConfigured(c.config.LocationEndpoint); err != nil {
		return err
	}
	payload := locationRequest{
		SaleCodes:    make([]string, len(codes)),
		LocationID:   locationID,
		LocationName: locationName,
		PrintedAt:    c.now().UTC().Format(time.RFC3339),
	}
	for i, code := range codes {
		payload.SaleCodes[i] = code.String()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode location request: %w", err)
	}
	status, _, err := c.post(ctx, c.config.LocationEndpoint, body)
	if err != nil {
		return printing.NewRegistrationError(printing.FailureNetworkError, "location request failed", err)
	}
	if status < 200 || status >= 300 {
		return &printing.RegistrationError{Kind: printing.FailureBackendError, StatusCode: status, Detail: "location update rejected"}
	}
	return nil
}

func (c *Client) checkConfigured(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return printing.NewRegistrationError(printing.FailureNotConfigured, "registration endpoint is not set", nil)
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return printing.NewRegistrationError(printing.FailureNotConfigured, "registration endpoint is invalid: "+endpoint, err)
	}
	if c.config.APIKey == "" {
		return printing.NewRegistrationError(printing.FailureNotConfigured, "registration API key is not set", nil)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}
