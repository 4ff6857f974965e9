// Package diagnostics checks the ERP connection step by step for operators.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dongwonkwak/erpquote/internal/client"
	"github.com/dongwonkwak/erpquote/internal/config"
	"github.com/dongwonkwak/erpquote/internal/transport"
)

// Probe names, in the order they run.
const (
	ProbeTransport      = "transport"
	ProbeReachability   = "reachability"
	ProbeAuthentication = "authentication"
	ProbeQuoteSearch    = "quote_search"
)

const (
	referenceModel = "res.partner"
	quoteModel     = "sale.order"
)

// Result is the outcome of one probe.
type Result struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Sample   string        `json:"sample,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of a full diagnostics run. It is built fresh every time.
type Report struct {
	ID         uuid.UUID      `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Config     config.Summary `json:"config"`
	Tests      []Result       `json:"tests"`
	Errors     []string       `json:"errors"`
	Success    bool           `json:"success"`
}

// Test returns the result of the named probe, if it ran.
func (r *Report) Test(name string) (Result, bool) {
	for _, t := range r.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return Result{}, false
}

// Status is the short connection state shown on the settings page.
type Status struct {
	Connected     bool      `json:"connected"`
	Message       string    `json:"message"`
	ServerVersion string    `json:"server_version,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// ERP is the part of the ERP client the probes need.
type ERP interface {
	SearchCount(ctx context.Context, model string, domain client.Domain) (int, error)
	Version(ctx context.Context) (*client.ServerVersion, error)
}

// Header issues a lightweight reachability request.
type Header interface {
	Head(ctx context.Context, url string, timeout time.Duration) (int, error)
}

// Runner runs the probes against one configuration.
type Runner struct {
	cfg    config.Config
	erp    ERP
	header Header
	now    func() time.Time
}

// NewRunner returns a Runner. A nil header uses an HTTP transport built from cfg.
func NewRunner(cfg config.Config, erp ERP, header Header) *Runner {
	if header == nil {
		header = transport.NewHTTP(cfg.InsecureSkipVerify)
	}
	return &Runner{cfg: cfg, erp: erp, header: header, now: time.Now}
}

// Diagnose runs the probes in order. A missing transport stops the run;
// reachability failures are recorded and the run continues; the quote
// search only runs after a successful authenticated call. The report
// succeeds when the authenticated call does.
func (r *Runner) Diagnose(ctx context.Context) *Report {
	rep := &Report{
		ID:        uuid.New(),
		StartedAt: r.now(),
		Config:    r.cfg.Summary(),
		Tests:     []Result{},
		Errors:    []string{},
	}
	defer func() { rep.FinishedAt = r.now() }()

	if res := r.probe(ProbeTransport, func() (string, error) {
		if err := transport.CheckURL(r.cfg.URL); err != nil {
			return "", err
		}
		return "net/http", nil
	}); !r.record(rep, res) {
		return rep
	}

	r.record(rep, r.probe(ProbeReachability, func() (string, error) {
		code, err := r.header.Head(ctx, r.cfg.URL, r.cfg.ProbeTimeout)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("HTTP %d", code), nil
	}))

	auth := r.probe(ProbeAuthentication, func() (string, error) {
		n, err := r.erp.SearchCount(ctx, referenceModel, nil)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d partners", n), nil
	})
	rep.Success = r.record(rep, auth)
	if !rep.Success {
		return rep
	}

	r.record(rep, r.probe(ProbeQuoteSearch, func() (string, error) {
		n, err := r.erp.SearchCount(ctx, quoteModel, nil)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d quotes", n), nil
	}))
	return rep
}

func (r *Runner) probe(name string, fn func() (string, error)) Result {
	start := r.now()
	sample, err := fn()
	res := Result{Name: name, Success: err == nil, Sample: sample, Duration: r.now().Sub(start)}
	if err != nil {
		res.Error = describe(err)
	}
	return res
}

func (r *Runner) record(rep *Report, res Result) bool {
	rep.Tests = append(rep.Tests, res)
	if !res.Success {
		rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %s", res.Name, res.Error))
	}
	return res.Success
}

// TestConnection makes one authenticated call and reports whether it worked.
func (r *Runner) TestConnection(ctx context.Context) error {
	if err := transport.CheckURL(r.cfg.URL); err != nil {
		return err
	}
	if _, err := r.erp.SearchCount(ctx, referenceModel, nil); err != nil {
		return fmt.Errorf("test connection: %w", err)
	}
	return nil
}

// Status returns the current connection state.
func (r *Runner) Status(ctx context.Context) Status {
	st := Status{CheckedAt: r.now()}
	if err := r.TestConnection(ctx); err != nil {
		st.Message = describe(err)
		return st
	}
	st.Connected = true
	st.Message = "connected"
	if v, err := r.erp.Version(ctx); err == nil {
		st.ServerVersion = v.ServerVersion
	}
	return st
}

// describe turns an error into an operator-facing message that says which
// layer failed.
func describe(err error) string {
	var te *transport.Error
	var se *transport.StatusError
	switch {
	case errors.As(err, &te) && te.Timeout:
		return "timeout: " + err.Error()
	case errors.As(err, &te):
		return "network error: " + err.Error()
	case errors.As(err, &se):
		return "http error: " + err.Error()
	case client.IsFault(err):
		return "remote fault: " + err.Error()
	default:
		return err.Error()
	}
}
