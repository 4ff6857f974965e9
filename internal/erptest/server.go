// Package erptest provides an in-process fake of the ERP XML-RPC endpoints
// for tests.
package erptest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dongwonkwak/erpquote/internal/config"
	"github.com/dongwonkwak/erpquote/internal/xmlrpc"
)

// Credentials the fake accepts; Server.Config uses them.
const (
	Database = "testdb"
	UserID   = 2
	APIKey   = "test-api-key-0001"
)

// Call is one execute_kw request as received by the fake.
type Call struct {
	Database string
	UserID   int
	APIKey   string
	Model    string
	Method   string
	Args     []any
	Kwargs   map[string]any
}

// Handler answers a call. Returning a *xmlrpc.Fault produces a fault
// envelope; any other error produces an HTTP 500.
type Handler func(call Call) (any, error)

// Server is a fake ERP. Unregistered model/method pairs answer with a fault.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
	version  map[string]any
}

// NewServer starts a fake ERP that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		handlers: map[string]Handler{},
		version:  map[string]any{"server_version": "17.0", "protocol_version": 1},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Config returns a configuration pointing at the fake.
func (s *Server) Config() config.Config {
	return config.Config{
		URL:          s.URL,
		Database:     Database,
		UserID:       UserID,
		APIKey:       APIKey,
		Timeout:      3 * time.Second,
		ProbeTimeout: time.Second,
		ItemsPerPage: config.DefaultItemsPerPage,
		AgentField:   config.DefaultAgentField,
	}
}

// Handle registers h for model.method.
func (s *Server) Handle(model, method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[model+"."+method] = h
}

// Reply registers a fixed answer for model.method.
func (s *Server) Reply(model, method string, v any) {
	s.Handle(model, method, func(Call) (any, error) { return v, nil })
}

// Calls returns every execute_kw call received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the calls received for model.method.
func (s *Server) CallsTo(model, method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Model == model && c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	method, params, err := xmlrpc.DecodeCall(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case r.URL.Path == "/xmlrpc/2/common" && method == "version":
		s.write(w, s.version, nil)
	case r.URL.Path == "/xmlrpc/2/object" && method == "execute_kw":
		s.executeKw(w, params)
	default:
		s.write(w, nil, &xmlrpc.Fault{Code: 1, String: fmt.Sprintf("unknown method %s %s", r.URL.Path, method)})
	}
}

func (s *Server) executeKw(w http.ResponseWriter, params []any) {
	if len(params) < 6 {
		s.write(w, nil, &xmlrpc.Fault{Code: 1, String: "execute_kw needs at least 6 params"})
		return
	}
	call := Call{}
	call.Database, _ = params[0].(string)
	call.UserID, _ = params[1].(int)
	call.APIKey, _ = params[2].(string)
	call.Model, _ = params[3].(string)
	call.Method, _ = params[4].(string)
	call.Args, _ = params[5].([]any)
	if len(params) > 6 {
		call.Kwargs, _ = params[6].(map[string]any)
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	h := s.handlers[call.Model+"."+call.Method]
	s.mu.Unlock()

	if call.Database != Database || call.UserID != UserID || call.APIKey != APIKey {
		s.write(w, nil, &xmlrpc.Fault{Code: 3, String: "Access Denied"})
		return
	}
	if h == nil {
		s.write(w, nil, &xmlrpc.Fault{Code: 2, String: fmt.Sprintf("%s.%s not mocked", call.Model, call.Method)})
		return
	}
	v, err := h(call)
	s.write(w, v, err)
}

func (s *Server) write(w http.ResponseWriter, v any, err error) {
	var body []byte
	var encErr error
	switch f := err.(type) {
	case nil:
		body, encErr = xmlrpc.EncodeResponse(v)
	case *xmlrpc.Fault:
		body, encErr = xmlrpc.EncodeFault(f.Code, f.String)
	default:
		http.Error(w, f.Error(), http.StatusInternalServerError)
		return
	}
	if encErr != nil {
		http.Error(w, encErr.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(body)
}
