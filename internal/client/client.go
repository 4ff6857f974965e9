// Package client provides an XML-RPC client for the ERP external API.
//
// Protocol: execute_kw over HTTP POST, text/xml body
//
//	Request:  execute_kw(database, uid, api_key, model, method, [args...], {kwargs})
//	Response: methodResponse value | fault
//
// Credentials are sent with every call; no session is kept between calls.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dongwonkwak/erpquote/internal/config"
	"github.com/dongwonkwak/erpquote/internal/transport"
	"github.com/dongwonkwak/erpquote/internal/xmlrpc"
)

const (
	objectPath = "/xmlrpc/2/object"
	commonPath = "/xmlrpc/2/common"
)

// Sender carries one encoded request to url and returns the raw response body.
type Sender interface {
	Send(ctx context.Context, url string, timeout time.Duration, body []byte) ([]byte, error)
}

// Client is an XML-RPC client bound to one ERP database and one API user.
type Client struct {
	baseURL  string
	database string
	uid      int
	apiKey   string
	timeout  time.Duration

	sender Sender
	logger *log.Logger
}

// NewClient returns a Client for cfg. If sender is nil an HTTP transport is
// built from cfg. Calls are logged only when cfg.Debug is set, to logger or,
// when logger is nil, to stderr.
func NewClient(cfg config.Config, sender Sender, logger *log.Logger) *Client {
	if sender == nil {
		sender = transport.NewHTTP(cfg.InsecureSkipVerify)
	}
	switch {
	case !cfg.Debug:
		logger = log.New(io.Discard, "", 0)
	case logger == nil:
		logger = log.New(os.Stderr, "erpquote ", log.LstdFlags)
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		database: cfg.Database,
		uid:      cfg.UserID,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		sender:   sender,
		logger:   logger,
	}
}

// Database returns the database name the client is bound to.
func (c *Client) Database() string { return c.database }

// Call runs method on model with the given positional arguments.
// opts may be nil; when it carries anything it is sent as the trailing
// keyword-arguments struct.
func (c *Client) Call(ctx context.Context, model, method string, args []any, opts *CallOptions) (any, error) {
	if args == nil {
		args = []any{}
	}
	params := []any{c.database, c.uid, c.apiKey, model, method, args}
	if kw := opts.kwargs(); len(kw) > 0 {
		params = append(params, kw)
	}

	result, err := c.invoke(ctx, objectPath, "execute_kw", params...)
	if err != nil {
		c.logger.Printf("[erp] %s.%s failed: %v", model, method, err)
		return nil, fmt.Errorf("%s.%s: %w", model, method, err)
	}
	c.logger.Printf("[erp] %s.%s ok", model, method)
	return result, nil
}

// Version asks the common endpoint for the server version. It needs no credentials.
func (c *Client) Version(ctx context.Context) (*ServerVersion, error) {
	result, err := c.invoke(ctx, commonPath, "version")
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("version: unexpected result %T", result)
	}
	return &ServerVersion{
		ServerVersion:   String(m["server_version"]),
		ProtocolVersion: Int(m["protocol_version"]),
	}, nil
}

func (c *Client) invoke(ctx context.Context, path, method string, params ...any) (any, error) {
	body, err := xmlrpc.EncodeCall(method, params...)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.sender.Send(ctx, c.baseURL+path, c.timeout, body)
	if err != nil {
		return nil, err
	}

	result, err := xmlrpc.DecodeResponse(resp)
	if err != nil {
		var fault *xmlrpc.Fault
		if errors.As(err, &fault) {
			c.logger.Printf("[erp] fault %d: %s", fault.Code, fault.String)
			return nil, err
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// SearchRead returns the records of model matching domain.
func (c *Client) SearchRead(ctx context.Context, model string, domain Domain, opts *CallOptions) ([]map[string]any, error) {
	result, err := c.Call(ctx, model, "search_read", []any{domain.args()}, opts)
	if err != nil {
		return nil, err
	}
	list, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("%s.search_read: unexpected result %T", model, result)
	}
	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Search returns the ids of model matching domain.
func (c *Client) Search(ctx context.Context, model string, domain Domain, opts *CallOptions) ([]int, error) {
	result, err := c.Call(ctx, model, "search", []any{domain.args()}, opts)
	if err != nil {
		return nil, err
	}
	list, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("%s.search: unexpected result %T", model, result)
	}
	ids := make([]int, 0, len(list))
	for _, item := range list {
		if id := Int(item); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SearchCount returns the number of model records matching domain.
func (c *Client) SearchCount(ctx context.Context, model string, domain Domain) (int, error) {
	result, err := c.Call(ctx, model, "search_count", []any{domain.args()}, nil)
	if err != nil {
		return 0, err
	}
	n, ok := result.(int)
	if !ok {
		return 0, fmt.Errorf("%s.search_count: unexpected result %T", model, result)
	}
	return n, nil
}

// Create creates one model record and returns its id.
func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int, error) {
	result, err := c.Call(ctx, model, "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}
	id := Int(result)
	if id <= 0 {
		return 0, fmt.Errorf("%s.create: unexpected result %v", model, result)
	}
	return id, nil
}

// Write updates the given model records.
func (c *Client) Write(ctx context.Context, model string, ids []int, values map[string]any) error {
	result, err := c.Call(ctx, model, "write", []any{ids, values}, nil)
	if err != nil {
		return err
	}
	if ok, _ := result.(bool); !ok {
		return fmt.Errorf("%s.write: remote returned %v", model, result)
	}
	return nil
}

// Unlink deletes the given model records.
func (c *Client) Unlink(ctx context.Context, model string, ids []int) error {
	result, err := c.Call(ctx, model, "unlink", []any{ids}, nil)
	if err != nil {
		return err
	}
	if ok, _ := result.(bool); !ok {
		return fmt.Errorf("%s.unlink: remote returned %v", model, result)
	}
	return nil
}

// IsTransportFailure reports whether err came from the network or an HTTP status.
func IsTransportFailure(err error) bool {
	var te *transport.Error
	var se *transport.StatusError
	return errors.As(err, &te) || errors.As(err, &se)
}

// IsFault reports whether err is a fault raised by the remote side.
func IsFault(err error) bool {
	var f *xmlrpc.Fault
	return errors.As(err, &f)
}
