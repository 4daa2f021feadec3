package partnerclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/secrets"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/prometheus"
	"go.uber.org/zap"
)

// Auth headers recognised by partner deployments
const (
	HeaderAPIKey     = "X-Federation-Api-Key"
	HeaderPlatformID = "X-Federation-Platform-ID"
	HeaderTimestamp  = "X-Federation-Timestamp"
	HeaderSignature  = "X-Federation-Signature"
)

// Result is the uniform outcome of a partner call. Success is false for
// transport errors and non-2xx responses alike; Error carries the detail.
type Result struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func failure(status int, format string, args ...interface{}) Result {
	return Result{StatusCode: status, Error: fmt.Sprintf(format, args...)}
}

// Client calls external partner deployments over their federation API. One
// client serves all partners; per-partner credentials are decrypted per
// call and never cached in plaintext.
type Client struct {
	http       *resty.Client
	box        *secrets.Box
	platformID string
	logger     *zap.Logger

	mu     sync.Mutex
	tokens map[uint]cachedToken
}

type cachedToken struct {
	value   string
	expires time.Time
}

// New creates a partner client. platformID identifies this deployment in
// signed requests.
func New(platformID string, timeout time.Duration, box *secrets.Box, logger *zap.Logger) *Client {
	http := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "nexus-federation/1.0")
	return &Client{
		http:       http,
		box:        box,
		platformID: platformID,
		logger:     logger,
		tokens:     map[uint]cachedToken{},
	}
}

// do performs one authenticated call against a partner. body may be nil.
func (c *Client) do(ctx context.Context, partner *model.ExternalPartner, method, path string, body interface{}) (result Result) {
	start := time.Now()
	defer func() {
		prometheus.RecordPartnerCall(method+" "+trimQuery(path), result.Success, time.Since(start))
	}()

	if !partner.IsUsable() {
		return failure(0, "partner %s is not usable", partner.PlatformID)
	}

	fullPath := strings.TrimSuffix(partner.APIPath, "/") + path
	url := strings.TrimSuffix(partner.BaseURL, "/") + fullPath

	var rawBody []byte
	if body != nil {
		var err error
		rawBody, err = json.Marshal(body)
		if err != nil {
			return failure(0, "encode request: %v", err)
		}
	}

	req := c.http.R().SetContext(ctx)
	if rawBody != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(rawBody)
	}

	if err := c.authenticate(ctx, req, partner, method, fullPath, rawBody); err != nil {
		return failure(0, "authenticate: %v", err)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		c.logger.Warn("partner call failed",
			zap.String("partner", partner.PlatformID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return failure(0, "partner unreachable: %v", err)
	}

	if resp.IsError() {
		return failure(resp.StatusCode(), "partner returned %s", resp.Status())
	}
	return Result{Success: true, StatusCode: resp.StatusCode(), Data: resp.Body()}
}

// authenticate attaches credentials per the partner's auth method. HMAC
// signs METHOD, PATH, TIMESTAMP and BODY so a captured request cannot be
// replayed against another endpoint.
func (c *Client) authenticate(ctx context.Context, req *resty.Request, partner *model.ExternalPartner, method, path string, body []byte) error {
	switch partner.AuthMethod {
	case model.AuthAPIKey:
		key, err := c.box.Decrypt(partner.APIKeyEncrypted)
		if err != nil {
			return fmt.Errorf("decrypt api key: %w", err)
		}
		req.SetHeader(HeaderAPIKey, key)

	case model.AuthHMAC:
		secret, err := c.box.Decrypt(partner.SigningSecretEncrypted)
		if err != nil {
			return fmt.Errorf("decrypt signing secret: %w", err)
		}
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req.SetHeader(HeaderPlatformID, c.platformID)
		req.SetHeader(HeaderTimestamp, ts)
		req.SetHeader(HeaderSignature, Sign(secret, method, path, ts, body))

	case model.AuthOAuth2:
		token, err := c.oauthToken(ctx, partner)
		if err != nil {
			return err
		}
		req.SetHeader("Authorization", "Bearer "+token)

	default:
		return fmt.Errorf("unknown auth method %q", partner.AuthMethod)
	}
	return nil
}

// trimQuery strips the query string so metric labels stay low-cardinality
func trimQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// Sign computes the hex HMAC-SHA256 over the canonical request string
func Sign(secret, method, path, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s\n%s\n%s\n", strings.ToUpper(method), path, timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// oauthToken returns a cached client-credentials token for the partner,
// fetching a fresh one when the cache is empty or near expiry
func (c *Client) oauthToken(ctx context.Context, partner *model.ExternalPartner) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[partner.ID]
	c.mu.Unlock()
	if ok && time.Until(cached.expires) > 30*time.Second {
		return cached.value, nil
	}

	secret, err := c.box.Decrypt(partner.OAuthClientSecretEncrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt client secret: %w", err)
	}

	tokenURL := strings.TrimSuffix(partner.BaseURL, "/") +
		strings.TrimSuffix(partner.APIPath, "/") + "/token"

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	resp, err := c.http.R().SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.platformID,
			"client_secret": secret,
		}).
		SetResult(&out).
		Post(tokenURL)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	if resp.IsError() || out.AccessToken == "" {
		return "", fmt.Errorf("token request rejected: %s", resp.Status())
	}

	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	c.mu.Lock()
	c.tokens[partner.ID] = cachedToken{value: out.AccessToken, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
	return out.AccessToken, nil
}
