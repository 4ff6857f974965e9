// Package quotes implements the sales-quote operations agents run against the ERP.
//
// Quotes are never stored locally: every read goes to the remote. Remote
// failures are returned as errors next to an empty, non-nil result so that
// callers can still render a page.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dongwonkwak/erpquote/internal/client"
	"github.com/dongwonkwak/erpquote/internal/config"
)

const (
	modelOrder     = "sale.order"
	modelOrderLine = "sale.order.line"
	modelPartner   = "res.partner"
	modelProduct   = "product.product"

	customerLimit = 50
)

var (
	// ErrQuoteNotFound means the remote answered but has no such quote.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrInvalidQuoteID is returned for ids that are not positive integers.
	ErrInvalidQuoteID = errors.New("invalid quote id")
	// ErrMissingAgent is returned when a listing has no sales agent to filter by.
	ErrMissingAgent = errors.New("sales agent is required")
	// ErrInvalidLine is returned for quote line input the remote would reject.
	ErrInvalidLine = errors.New("invalid quote line")
)

var (
	quoteFields    = []string{"id", "name", "partner_id", "date_order", "amount_total", "state", "note"}
	lineFields     = []string{"id", "order_id", "product_id", "name", "product_uom_qty", "price_unit", "price_subtotal"}
	customerFields = []string{"id", "name", "email", "phone", "vat"}
)

// ERP is the part of the ERP client the service needs.
type ERP interface {
	Database() string
	SearchRead(ctx context.Context, model string, domain client.Domain, opts *client.CallOptions) ([]map[string]any, error)
	Search(ctx context.Context, model string, domain client.Domain, opts *client.CallOptions) ([]int, error)
	Create(ctx context.Context, model string, values map[string]any) (int, error)
	Write(ctx context.Context, model string, ids []int, values map[string]any) error
	Unlink(ctx context.Context, model string, ids []int) error
}

// Service runs quote operations for one request.
type Service struct {
	erp        ERP
	agentField string
	pageSize   int
}

// NewService returns a Service over erp using the page size and agent field of cfg.
func NewService(erp ERP, cfg config.Config) *Service {
	s := &Service{erp: erp, agentField: cfg.AgentField, pageSize: cfg.ItemsPerPage}
	if s.agentField == "" {
		s.agentField = config.DefaultAgentField
	}
	if s.pageSize <= 0 {
		s.pageSize = config.DefaultItemsPerPage
	}
	return s
}

// ListQuotes returns one page of the agent's quotes, ordered by quote number,
// newest first. Quotes without a real number are left out.
func (s *Service) ListQuotes(ctx context.Context, p ListParams) ([]Quote, error) {
	agent := strings.TrimSpace(p.Agent)
	if agent == "" {
		return []Quote{}, ErrMissingAgent
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	domain := client.Domain{}.Where(s.agentField, "=", agent)
	if search := strings.TrimSpace(p.Search); search != "" {
		domain = domain.Where("partner_id.name", "ilike", search)
	}
	if p.Status != "" {
		domain = domain.Where("state", "=", string(p.Status))
	}

	recs, err := s.erp.SearchRead(ctx, modelOrder, domain, &client.CallOptions{
		Fields: quoteFields,
		Limit:  limit,
		Offset: (page - 1) * limit,
		Order:  "date_order desc",
	})
	if err != nil {
		return []Quote{}, fmt.Errorf("list quotes: %w", err)
	}

	quotes := make([]Quote, 0, len(recs))
	for _, rec := range recs {
		if !IsValidQuoteNumber(client.String(rec["name"])) {
			continue
		}
		quotes = append(quotes, quoteFromRecord(rec))
	}
	SortByNumber(quotes)
	return quotes, nil
}

// SortByNumber orders quotes by descending quote number sequence.
func SortByNumber(quotes []Quote) {
	seq := make(map[string]int, len(quotes))
	for _, q := range quotes {
		seq[q.Name] = QuoteNumberSequence(q.Name)
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		return seq[quotes[i].Name] > seq[quotes[j].Name]
	})
}

// GetQuote fetches one quote. It returns ErrQuoteNotFound when the remote
// answers but has no such quote.
func (s *Service) GetQuote(ctx context.Context, id int) (*Quote, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuoteID, id)
	}
	recs, err := s.erp.SearchRead(ctx, modelOrder, client.Domain{}.Where("id", "=", id), &client.CallOptions{
		Fields: quoteFields,
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("get quote %d: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrQuoteNotFound, id)
	}
	q := quoteFromRecord(recs[0])
	return &q, nil
}

// CreateQuote creates a quote and returns its id.
func (s *Service) CreateQuote(ctx context.Context, in NewQuote) (int, error) {
	if in.PartnerID <= 0 {
		return 0, errors.New("create quote: customer is required")
	}
	values := map[string]any{"partner_id": in.PartnerID}
	if in.DateOrder != "" {
		values["date_order"] = in.DateOrder
	}
	if in.Note != "" {
		values["note"] = in.Note
	}
	if agent := strings.TrimSpace(in.Agent); agent != "" {
		values[s.agentField] = agent
	}

	id, err := s.erp.Create(ctx, modelOrder, values)
	if err != nil {
		return 0, fmt.Errorf("create quote: %w", err)
	}
	return id, nil
}

// UpdateQuote writes the fields set in changes. An empty change set succeeds
// without contacting the remote.
func (s *Service) UpdateQuote(ctx context.Context, id int, changes QuoteChanges) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuoteID, id)
	}
	values := map[string]any{}
	if changes.PartnerID != nil {
		values["partner_id"] = *changes.PartnerID
	}
	if changes.DateOrder != nil {
		values["date_order"] = *changes.DateOrder
	}
	if changes.Note != nil {
		values["note"] = *changes.Note
	}
	if len(values) == 0 {
		return nil
	}

	if err := s.erp.Write(ctx, modelOrder, []int{id}, values); err != nil {
		return fmt.Errorf("update quote %d: %w", id, err)
	}
	return nil
}

// ListCustomers returns up to 50 company partners, optionally filtered by name.
func (s *Service) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	domain := client.Domain{}.Where("is_company", "=", true)
	if search = strings.TrimSpace(search); search != "" {
		domain = domain.Where("name", "ilike", search)
	}

	recs, err := s.erp.SearchRead(ctx, modelPartner, domain, &client.CallOptions{
		Fields: customerFields,
		Limit:  customerLimit,
		Order:  "name",
	})
	if err != nil {
		return []Customer{}, fmt.Errorf("list customers: %w", err)
	}

	customers := make([]Customer, 0, len(recs))
	for _, rec := range recs {
		customers = append(customers, Customer{
			ID:    client.Int(rec["id"]),
			Name:  client.String(rec["name"]),
			Email: client.String(rec["email"]),
			Phone: client.String(rec["phone"]),
			VAT:   client.String(rec["vat"]),
		})
	}
	return customers, nil
}

// ListQuoteLines returns the lines of a quote in display order.
func (s *Service) ListQuoteLines(ctx context.Context, quoteID int) ([]Line, error) {
	if quoteID <= 0 {
		return []Line{}, fmt.Errorf("%w: %d", ErrInvalidQuoteID, quoteID)
	}
	recs, err := s.erp.SearchRead(ctx, modelOrderLine, client.Domain{}.Where("order_id", "=", quoteID), &client.CallOptions{
		Fields: lineFields,
		Order:  "sequence, id",
	})
	if err != nil {
		return []Line{}, fmt.Errorf("list lines of quote %d: %w", quoteID, err)
	}

	lines := make([]Line, 0, len(recs))
	for _, rec := range recs {
		productID, productName, _ := client.Many2One(rec["product_id"])
		lines = append(lines, Line{
			ID:          client.Int(rec["id"]),
			QuoteID:     quoteID,
			ProductID:   productID,
			ProductName: productName,
			Description: client.String(rec["name"]),
			Quantity:    client.Float(rec["product_uom_qty"]),
			PriceUnit:   client.Float(rec["price_unit"]),
			Subtotal:    client.Float(rec["price_subtotal"]),
		})
	}
	return lines, nil
}

// AddQuoteLine adds a line to a quote, creating the product first when no
// product with that exact name exists. It returns the new line id.
func (s *Service) AddQuoteLine(ctx context.Context, in LineInput) (int, error) {
	name := strings.TrimSpace(in.ProductName)
	switch {
	case in.QuoteID <= 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuoteID, in.QuoteID)
	case name == "":
		return 0, fmt.Errorf("%w: product name is required", ErrInvalidLine)
	case in.Quantity <= 0:
		return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidLine)
	case in.PriceUnit < 0:
		return 0, fmt.Errorf("%w: price must not be negative", ErrInvalidLine)
	}

	productID, err := s.ensureProduct(ctx, name, in.Description, in.PriceUnit)
	if err != nil {
		return 0, fmt.Errorf("add line to quote %d: %w", in.QuoteID, err)
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = name
	}
	id, err := s.erp.Create(ctx, modelOrderLine, map[string]any{
		"order_id":        in.QuoteID,
		"product_id":      productID,
		"name":            description,
		"product_uom_qty": in.Quantity,
		"price_unit":      in.PriceUnit,
	})
	if err != nil {
		return 0, fmt.Errorf("add line to quote %d: %w", in.QuoteID, err)
	}
	return id, nil
}

// RemoveQuoteLine deletes one quote line.
func (s *Service) RemoveQuoteLine(ctx context.Context, lineID int) error {
	if lineID <= 0 {
		return fmt.Errorf("%w: line id %d", ErrInvalidLine, lineID)
	}
	if err := s.erp.Unlink(ctx, modelOrderLine, []int{lineID}); err != nil {
		return fmt.Errorf("remove quote line %d: %w", lineID, err)
	}
	return nil
}

// productCalls collapses concurrent find-or-create calls for the same product
// within this process. Two processes can still both create the product; the
// remote has no way to make the lookup and the create atomic.
var productCalls singleflight.Group

// provisionTimeout bounds a shared find-or-create, which outlives the
// caller that started it.
const provisionTimeout = 2 * config.DefaultTimeout

// ensureProduct runs the shared lookup detached from any one caller's
// cancellation; each caller stops waiting when its own ctx is done.
func (s *Service) ensureProduct(ctx context.Context, name, description string, price float64) (int, error) {
	key := s.erp.Database() + "\x00" + name
	ch := productCalls.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), provisionTimeout)
		defer cancel()
		return s.findOrCreateProduct(shared, name, description, price)
	})
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("provision product %q: %w", name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

func (s *Service) findOrCreateProduct(ctx context.Context, name, description string, price float64) (int, error) {
	ids, err := s.erp.Search(ctx, modelProduct, client.Domain{}.Where("name", "=", name), &client.CallOptions{Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("find product %q: %w", name, err)
	}
	if len(ids) > 0 {
		return ids[0], nil
	}

	id, err := s.erp.Create(ctx, modelProduct, map[string]any{
		"name":             name,
		"description_sale": description,
		"list_price":       price,
		"type":             "service",
		"sale_ok":          true,
	})
	if err != nil {
		return 0, fmt.Errorf("create product %q: %w", name, err)
	}
	return id, nil
}

func quoteFromRecord(rec map[string]any) Quote {
	partnerID, partnerName := NormalizePartner(rec["partner_id"])
	state := Status(client.String(rec["state"]))
	if state == "" {
		state = StatusDraft
	}
	return Quote{
		ID:          client.Int(rec["id"]),
		Name:        strings.TrimSpace(client.String(rec["name"])),
		PartnerID:   partnerID,
		PartnerName: partnerName,
		DateOrder:   client.String(rec["date_order"]),
		AmountTotal: client.Float(rec["amount_total"]),
		State:       state,
		Note:        client.String(rec["note"]),
	}
}
