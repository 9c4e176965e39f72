// Package extension 提供 Lambda Extensions API 的 Go 客户端封装。
// 覆盖注册、拉取下一个事件以及上报退出错误三个接口。
package extension

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/telemetry"
)

// Extensions API 使用的请求/响应头
const (
	headerExtensionName       = "Lambda-Extension-Name"
	headerExtensionIdentifier = "Lambda-Extension-Identifier"
	headerFunctionErrorType   = "Lambda-Extension-Function-Error-Type"
)

// Client 是 Extensions API 客户端。注册成功后 Client 记住扩展标识，供后续请求使用。
type Client struct {
	baseURL    string
	name       string
	httpClient *http.Client
	id         string
}

// New 创建客户端。runtimeAPI 是 AWS_LAMBDA_RUNTIME_API 的值（host:port）。
// event/next 是长轮询，HTTP 客户端不设置超时，由 ctx 控制。
func New(runtimeAPI, name string) *Client {
	base := runtimeAPI
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/") + "/2020-01-01/extension",
		name:    name,
		httpClient: &http.Client{
			Transport: telemetry.HTTPClientTransport(nil),
		},
	}
}

// registerRequest 是注册请求体。
type registerRequest struct {
	Events []domain.EventType `json:"events"`
}

// ID 返回注册得到的扩展标识，未注册时为空。
func (c *Client) ID() string { return c.id }

// Register 以 c.name 注册扩展并订阅 events，返回扩展标识。
func (c *Client) Register(ctx context.Context, events ...domain.EventType) (string, error) {
	headers := http.Header{}
	headers.Set(headerExtensionName, c.name)

	resp, err := c.do(ctx, http.MethodPost, "/register", headers, registerRequest{Events: events}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrRegistrationFailed, err)
	}
	id := resp.Get(headerExtensionIdentifier)
	if id == "" {
		return "", fmt.Errorf("%w: response has no %s header", domain.ErrRegistrationFailed, headerExtensionIdentifier)
	}
	c.id = id
	return id, nil
}

// Next 阻塞直到 Lambda 下发下一个事件。
func (c *Client) Next(ctx context.Context) (*domain.NextEvent, error) {
	headers := http.Header{}
	headers.Set(headerExtensionIdentifier, c.id)

	var ev domain.NextEvent
	if _, err := c.do(ctx, http.MethodGet, "/event/next", headers, nil, &ev); err != nil {
		return nil, fmt.Errorf("next event: %w", err)
	}
	return &ev, nil
}

// ExitError 在扩展因不可恢复错误退出前通知 Lambda，errorType 形如 "Extension.UnknownEvent"。
func (c *Client) ExitError(ctx context.Context, errorType string, cause error) error {
	headers := http.Header{}
	headers.Set(headerExtensionIdentifier, c.id)
	headers.Set(headerFunctionErrorType, errorType)

	body := map[string]any{
		"errorMessage": cause.Error(),
		"errorType":    errorType,
	}
	if _, err := c.do(ctx, http.MethodPost, "/exit/error", headers, body, nil); err != nil {
		return fmt.Errorf("exit error: %w", err)
	}
	return nil
}

// do 发送请求，非 200 响应转换为错误；result 非 nil 时解析 JSON 响应体。
func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body any, result any) (http.Header, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("got %d response: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}
