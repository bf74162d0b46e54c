package authsdk

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/aussiebroadwan/supportchat/pkg/slogx"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 30 * time.Second

// ClientInfo identifies the calling app to the backend. It is used for
// analytics headers and the User-Agent, never for authorization.
type ClientInfo struct {
	AppName      string // e.g. "SupportChat"
	AppVersion   string // e.g. "1.4.0"
	AppType      string // X-App-Type, e.g. "support-assistant"
	ClientSource string // X-Client-Source, e.g. "mobile-app"
	Platform     string // X-Platform, defaults to runtime.GOOS
	DeviceName   string // human readable device name
	DeviceModel  string // hardware model
}

// UserAgent renders "AppName/Version (platform; model; device)".
func (ci ClientInfo) UserAgent() string {
	name := firstNonEmpty(ci.AppName, "SupportChat")
	version := firstNonEmpty(ci.AppVersion, "0.0.0")

	parts := []string{firstNonEmpty(ci.Platform, runtime.GOOS)}
	if ci.DeviceModel != "" {
		parts = append(parts, ci.DeviceModel)
	}
	if ci.DeviceName != "" {
		parts = append(parts, ci.DeviceName)
	}

	return fmt.Sprintf("%s/%s (%s)", name, version, strings.Join(parts, "; "))
}

// SDKClient is a stateless client for the support assistant auth backend.
// Each method issues one logical request (retried per RetryPolicies) bounded by
// Timeout, and every failure is returned as an *Error.
type SDKClient struct {
	BaseURL    string
	TenantID   string
	HTTPClient *http.Client
	Info       ClientInfo

	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// RetryPolicies maps operations to their retry behaviour.
	RetryPolicies map[Operation]RetryPolicy

	// Logger receives request and retry logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewSDKClient creates a client with default timeout, retry table and a
// logging transport.
func NewSDKClient(baseURL, tenantID string, info ClientInfo) *SDKClient {
	return &SDKClient{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		TenantID: tenantID,
		HTTPClient: &http.Client{
			Transport: slogx.NewTransport(nil, nil),
		},
		Info:          info,
		Timeout:       DefaultTimeout,
		RetryPolicies: DefaultRetryPolicies(),
	}
}

func (c *SDKClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *SDKClient) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
