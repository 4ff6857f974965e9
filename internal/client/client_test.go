package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dongwonkwak/erpquote/internal/config"
	"github.com/dongwonkwak/erpquote/internal/erptest"
	"github.com/dongwonkwak/erpquote/internal/transport"
	"github.com/dongwonkwak/erpquote/internal/xmlrpc"
)

func newTestClient(t *testing.T) (*Client, *erptest.Server) {
	t.Helper()
	srv := erptest.NewServer(t)
	return NewClient(srv.Config(), nil, nil), srv
}

// TestCall_InjectsCredentials verifies the fixed leading params of execute_kw
// and that keyword arguments are sent only when present.
func TestCall_InjectsCredentials(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Reply("res.partner", "search_read", []any{})

	_, err := c.Call(context.Background(), "res.partner", "search_read", []any{[]any{}}, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	_, err = c.Call(context.Background(), "res.partner", "search_read", []any{[]any{}}, &CallOptions{
		Fields: []string{"id", "name"},
		Limit:  5,
		Order:  "name",
	})
	if err != nil {
		t.Fatalf("Call with options: %v", err)
	}

	calls := srv.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	first := calls[0]
	if first.Database != erptest.Database || first.UserID != erptest.UserID || first.APIKey != erptest.APIKey {
		t.Errorf("credentials not injected: %+v", first)
	}
	if first.Kwargs != nil {
		t.Errorf("expected no kwargs, got %v", first.Kwargs)
	}

	kw := calls[1].Kwargs
	if got := kw["fields"]; len(got.([]any)) != 2 {
		t.Errorf("fields: got %v", got)
	}
	if kw["limit"] != 5 {
		t.Errorf("limit: got %v", kw["limit"])
	}
	if kw["order"] != "name" {
		t.Errorf("order: got %v", kw["order"])
	}
	if _, ok := kw["offset"]; ok {
		t.Errorf("zero offset should be omitted")
	}
}

// TestSearchRead_Records verifies decoding of a search_read result and the
// domain encoding.
func TestSearchRead_Records(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Reply("sale.order", "search_read", []any{
		map[string]any{"id": 1, "name": "S00001"},
		"garbage",
		map[string]any{"id": 2, "name": "S00002"},
	})

	domain := Domain{}.Where("state", "=", "draft").Where("partner_id.name", "ilike", "acme")
	recs, err := c.SearchRead(context.Background(), "sale.order", domain, nil)
	if err != nil {
		t.Fatalf("SearchRead: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	args := srv.CallsTo("sale.order", "search_read")[0].Args
	conds := args[0].([]any)
	if len(conds) != 2 {
		t.Fatalf("expected 2 conditions, got %v", conds)
	}
	if got := conds[1].([]any); got[0] != "partner_id.name" || got[1] != "ilike" || got[2] != "acme" {
		t.Errorf("unexpected condition %v", got)
	}
}

func TestCreateWriteUnlink(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Reply("sale.order", "create", 41)
	srv.Reply("sale.order", "write", true)
	srv.Reply("sale.order.line", "unlink", false)

	id, err := c.Create(context.Background(), "sale.order", map[string]any{"partner_id": 5})
	if err != nil || id != 41 {
		t.Fatalf("Create: id=%d err=%v", id, err)
	}
	if err := c.Write(context.Background(), "sale.order", []int{41}, map[string]any{"note": "x"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Unlink(context.Background(), "sale.order.line", []int{3}); err == nil {
		t.Fatal("expected Unlink to fail when remote returns false")
	}

	w := srv.CallsTo("sale.order", "write")[0]
	ids := w.Args[0].([]any)
	if len(ids) != 1 || ids[0] != 41 {
		t.Errorf("write ids: got %v", ids)
	}
}

func TestSearchCount(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Reply("res.partner", "search_count", 12)

	n, err := c.SearchCount(context.Background(), "res.partner", nil)
	if err != nil {
		t.Fatalf("SearchCount: %v", err)
	}
	if n != 12 {
		t.Errorf("expected 12, got %d", n)
	}
	if args := srv.Calls()[0].Args; len(args[0].([]any)) != 0 {
		t.Errorf("expected empty domain, got %v", args)
	}
}

// TestCall_Fault verifies that a fault envelope surfaces as a fault error.
func TestCall_Fault(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Handle("sale.order", "create", func(erptest.Call) (any, error) {
		return nil, &xmlrpc.Fault{Code: 2, String: "ValidationError"}
	})

	_, err := c.Create(context.Background(), "sale.order", map[string]any{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsFault(err) {
		t.Errorf("expected fault, got %v", err)
	}
	if IsTransportFailure(err) {
		t.Errorf("fault must not be reported as transport failure")
	}
}

// TestCall_AccessDenied verifies that wrong credentials are a fault, not a crash.
func TestCall_AccessDenied(t *testing.T) {
	srv := erptest.NewServer(t)
	cfg := srv.Config()
	cfg.APIKey = "wrong"
	c := NewClient(cfg, nil, nil)

	_, err := c.SearchCount(context.Background(), "res.partner", nil)
	var fault *xmlrpc.Fault
	if !errors.As(err, &fault) || fault.Code != 3 {
		t.Fatalf("expected access denied fault, got %v", err)
	}
}

// TestCall_TransportFailures verifies that network and HTTP status failures
// are both reported as transport failures.
func TestCall_TransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{URL: srv.URL, Database: "db", UserID: 1, APIKey: "k", Timeout: time.Second}
	_, err := NewClient(cfg, nil, nil).Call(context.Background(), "res.partner", "search", nil, nil)
	var se *transport.StatusError
	if !errors.As(err, &se) || !IsTransportFailure(err) {
		t.Errorf("expected status error, got %v", err)
	}

	cfg.URL = "http://127.0.0.1:1"
	_, err = NewClient(cfg, nil, nil).Call(context.Background(), "res.partner", "search", nil, nil)
	var te *transport.Error
	if !errors.As(err, &te) || !IsTransportFailure(err) {
		t.Errorf("expected transport error, got %v", err)
	}
	if IsFault(err) {
		t.Errorf("transport failure must not be reported as fault")
	}
}

// TestCall_MalformedBody verifies that a non XML-RPC body is a decode error.
func TestCall_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{URL: srv.URL, Database: "db", UserID: 1, APIKey: "k", Timeout: time.Second}
	_, err := NewClient(cfg, nil, nil).Call(context.Background(), "res.partner", "search", nil, nil)
	if !errors.Is(err, xmlrpc.ErrMalformedResponse) {
		t.Errorf("expected malformed response, got %v", err)
	}
}

// TestCall_DebugLogging verifies that calls are logged only in debug mode.
func TestCall_DebugLogging(t *testing.T) {
	srv := erptest.NewServer(t)
	srv.Reply("res.partner", "search_count", 1)

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	cfg := srv.Config()
	_, _ = NewClient(cfg, nil, logger).SearchCount(context.Background(), "res.partner", nil)
	if buf.Len() != 0 {
		t.Errorf("expected no log output without debug, got %q", buf.String())
	}

	cfg.Debug = true
	_, _ = NewClient(cfg, nil, logger).SearchCount(context.Background(), "res.partner", nil)
	if !strings.Contains(buf.String(), "res.partner.search_count ok") {
		t.Errorf("expected debug log line, got %q", buf.String())
	}
	if strings.Contains(buf.String(), erptest.APIKey) {
		t.Errorf("api key leaked into log output")
	}
}

// TestNewClient_DebugWithoutLogger verifies that debug mode logs to stderr
// when no logger is supplied.
func TestNewClient_DebugWithoutLogger(t *testing.T) {
	cfg := config.Config{URL: "http://erp.test", Debug: true}
	if w := NewClient(cfg, nil, nil).logger.Writer(); w != os.Stderr {
		t.Errorf("expected stderr logger in debug mode, got %T", w)
	}

	cfg.Debug = false
	if w := NewClient(cfg, nil, nil).logger.Writer(); w != io.Discard {
		t.Errorf("expected discarded output without debug, got %T", w)
	}
}

func TestVersion(t *testing.T) {
	c, _ := newTestClient(t)
	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.ServerVersion != "17.0" || v.ProtocolVersion != 1 {
		t.Errorf("unexpected version %+v", v)
	}
}
