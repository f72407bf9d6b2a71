package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/viylo-storefront/internal/orders"
	"github.com/angelmondragon/viylo-storefront/pkg/config"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
)

const emailJSBodyLimit = 4 << 10

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// EmailJSNotifier sends the order through an EmailJS template.
type EmailJSNotifier struct {
	endpoint   string
	serviceID  string
	templateID string
	publicKey  string
	privateKey string
	client     httpDoer
	logg       *logger.Logger
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func NewEmailJSNotifier(cfg config.EmailJSConfig, client httpDoer, logg *logger.Logger) (*EmailJSNotifier, error) {
	if strings.TrimSpace(cfg.ServiceID) == "" || strings.TrimSpace(cfg.TemplateID) == "" || strings.TrimSpace(cfg.PublicKey) == "" {
		return nil, fmt.Errorf("emailjs service, template and public key are required")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("emailjs endpoint required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &EmailJSNotifier{
		endpoint:   cfg.Endpoint,
		serviceID:  cfg.ServiceID,
		templateID: cfg.TemplateID,
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		client:     client,
		logg:       logg,
	}, nil
}

func (n *EmailJSNotifier) Name() string { return "emailjs" }

func (n *EmailJSNotifier) Send(ctx context.Context, payload orders.Payload) error {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:      n.serviceID,
		TemplateID:     n.templateID,
		UserID:         n.publicKey,
		AccessToken:    n.privateKey,
		TemplateParams: payload.TemplateParams(),
	})
	if err != nil {
		return fmt.Errorf("encode emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build emailjs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, emailJSBodyLimit))
		return fmt.Errorf("emailjs send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, emailJSBodyLimit))

	n.logg.Info(n.logg.WithOrderID(ctx, payload.OrderID), "order email sent")
	return nil
}
