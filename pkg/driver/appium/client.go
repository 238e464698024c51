// Package appium is a W3C WebDriver client for an Appium server and the
// session and element handles the locator machinery searches through.
package appium

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/logger"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	platform  string // ios, android, windows...
	log       *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithClientLogger sets the request logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a new Appium client.
func NewClient(serverURL string, opts ...ClientOption) *Client {
	c := &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Minute, // session creation can install apps
		},
		log: logger.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	if caps, ok := value["capabilities"].(map[string]interface{}); ok {
		if platform, ok := caps["platformName"].(string); ok {
			c.platform = strings.ToLower(platform)
		}
	}
	c.log.Info("appium session created", zap.String("session", c.sessionID), zap.String("platform", c.platform))
	return nil
}

// Attach reuses an existing session.
func (c *Client) Attach(sessionID string) {
	c.sessionID = sessionID
}

// SessionID returns the current session, or "".
func (c *Client) SessionID() string { return c.sessionID }

// Platform returns the platform reported at Connect.
func (c *Client) Platform() string { return c.platform }

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	c.sessionID = ""
	return err
}

// SetImplicitWait sets the server-side implicit wait.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// Element Operations

// FindElements finds elements from the session root. No match is an
// empty slice.
func (c *Client) FindElements(ctx context.Context, using, value string) ([]string, error) {
	return c.findElements(ctx, c.sessionPath()+"/elements", using, value)
}

// FindElementsFrom finds elements below elementID.
func (c *Client) FindElementsFrom(ctx context.Context, elementID, using, value string) ([]string, error) {
	return c.findElements(ctx, c.elementPath(elementID)+"/elements", using, value)
}

func (c *Client) findElements(ctx context.Context, path, using, value string) ([]string, error) {
	resp, err := c.post(ctx, path, map[string]interface{}{
		"using": using,
		"value": value,
	})
	if err != nil {
		if IsNoSuchElement(err) {
			return []string{}, nil
		}
		return nil, err
	}
	return elementIDs(resp["value"]), nil
}

// ElementAttribute returns an element's attribute. ok is false when the
// server reports null.
func (c *Client) ElementAttribute(ctx context.Context, elementID, name string) (string, bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/attribute/"+url.PathEscape(name))
	if err != nil {
		return "", false, err
	}
	switch v := resp["value"].(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

// ElementTagName returns an element's tag or class name.
func (c *Client) ElementTagName(ctx context.Context, elementID string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/name")
	if err != nil {
		return "", err
	}
	name, _ := resp["value"].(string)
	return name, nil
}

// ElementDisplayed checks if element is visible.
func (c *Client) ElementDisplayed(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// ElementRect returns an element's position and size.
func (c *Client) ElementRect(ctx context.Context, elementID string) (core.Bounds, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/rect")
	if err != nil {
		return core.Bounds{}, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return core.Bounds{}, fmt.Errorf("invalid rect response")
	}

	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return core.Bounds{X: int(xf), Y: int(yf), Width: int(wf), Height: int(hf)}, nil
}

// ExecuteScript runs a synchronous script and returns its raw result.
func (c *Client) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	resp, err := c.post(ctx, c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": script,
		"args":   args,
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	if path != "/session" && c.sessionID == "" {
		return nil, core.ErrSessionNotConnected.WithMessage("no appium session; connect or attach first")
	}
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	c.log.Debug("appium request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return nil, classify(&WebDriverError{Status: resp.StatusCode, Code: codeUnknownError, Message: strings.TrimSpace(string(respBody))})
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			wd := &WebDriverError{Status: resp.StatusCode, Code: errType}
			wd.Message, _ = errValue["message"].(string)
			wd.Stacktrace, _ = errValue["stacktrace"].(string)
			return result, classify(wd)
		}
	}
	if resp.StatusCode >= 400 {
		return result, classify(&WebDriverError{Status: resp.StatusCode, Code: codeUnknownError, Message: http.StatusText(resp.StatusCode)})
	}

	return result, nil
}

// elementIDs extracts element references from a find or script result.
func elementIDs(value interface{}) []string {
	ids := []string{}
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if elem, ok := item.(map[string]interface{}); ok {
				if id := extractElementID(elem); id != "" {
					ids = append(ids, id)
				}
			}
		}
	case map[string]interface{}:
		if id := extractElementID(v); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
