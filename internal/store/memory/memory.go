package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/store"
)

var errReadOnly = errors.New("write attempted in read-only unit of work")

type lineRecord struct {
	docType domain.DocumentType
	line    domain.Line
}

type data struct {
	financialYears map[int]domain.FinancialYear
	locations      map[int]domain.Location
	ledgers        map[int]domain.Ledger
	settings       map[string]string
	recipes        map[int]domain.Recipe
	recipeLines    []domain.RecipeLine
	documents      map[int]domain.Document
	lines          []lineRecord
	stock          []domain.StockEntry
	vouchers       map[int]domain.Voucher

	documentSeq    int
	lineSeq        int
	stockSeq       int
	voucherSeq     int
	voucherLineSeq int
}

func newData() *data {
	return &data{
		financialYears: make(map[int]domain.FinancialYear),
		locations:      make(map[int]domain.Location),
		ledgers:        make(map[int]domain.Ledger),
		settings:       make(map[string]string),
		recipes:        make(map[int]domain.Recipe),
		documents:      make(map[int]domain.Document),
		vouchers:       make(map[int]domain.Voucher),
	}
}

// clone copies everything a unit of work can write. Reference tables are
// shared because no repository method mutates them.
func (d *data) clone() *data {
	c := *d
	c.documents = make(map[int]domain.Document, len(d.documents))
	for id, doc := range d.documents {
		c.documents[id] = cloneDocument(doc)
	}
	c.lines = append([]lineRecord(nil), d.lines...)
	c.stock = append([]domain.StockEntry(nil), d.stock...)
	c.vouchers = make(map[int]domain.Voucher, len(d.vouchers))
	for id, v := range d.vouchers {
		c.vouchers[id] = cloneVoucher(v)
	}
	return &c
}

type Store struct {
	mu   sync.RWMutex
	data *data
}

func New() *Store {
	return &Store{data: newData()}
}

func (s *Store) WithinTx(_ context.Context, fn func(repo store.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&repo{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) View(_ context.Context, fn func(repo store.Repository) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&repo{d: s.data, readOnly: true})
}

func (s *Store) PutFinancialYear(fy domain.FinancialYear) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.financialYears[fy.ID] = fy
}

func (s *Store) PutLocation(loc domain.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.locations[loc.ID] = loc
}

func (s *Store) PutLedger(ledger domain.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ledgers[ledger.ID] = ledger
}

func (s *Store) PutSetting(key string, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.settings[key] = value
}

func (s *Store) PutRecipe(recipe domain.Recipe, lines ...domain.RecipeLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.recipes[recipe.ID] = recipe
	for _, line := range lines {
		line.RecipeID = recipe.ID
		s.data.recipeLines = append(s.data.recipeLines, line)
	}
}

type repo struct {
	d        *data
	readOnly bool
}

func (r *repo) GetFinancialYear(_ context.Context, id int) (*domain.FinancialYear, error) {
	fy, ok := r.d.financialYears[id]
	if !ok {
		return nil, fmt.Errorf("financial year %d: %w", id, store.ErrNotFound)
	}
	return &fy, nil
}

func (r *repo) FinancialYearByDate(_ context.Context, at time.Time) (*domain.FinancialYear, error) {
	for _, fy := range r.d.financialYears {
		if !at.Before(fy.StartDate) && at.Before(fy.EndDate) {
			found := fy
			return &found, nil
		}
	}
	return nil, fmt.Errorf("financial year covering %s: %w", at.Format(time.DateOnly), store.ErrNotFound)
}

func (r *repo) GetLocation(_ context.Context, id int) (*domain.Location, error) {
	loc, ok := r.d.locations[id]
	if !ok {
		return nil, fmt.Errorf("location %d: %w", id, store.ErrNotFound)
	}
	loc.LedgerID = cloneInt(loc.LedgerID)
	return &loc, nil
}

func (r *repo) GetLedger(_ context.Context, id int) (*domain.Ledger, error) {
	ledger, ok := r.d.ledgers[id]
	if !ok {
		return nil, fmt.Errorf("ledger %d: %w", id, store.ErrNotFound)
	}
	ledger.LocationID = cloneInt(ledger.LocationID)
	return &ledger, nil
}

func (r *repo) GetSetting(_ context.Context, key string) (string, error) {
	val, ok := r.d.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %s: %w", key, store.ErrNotFound)
	}
	return val, nil
}

func (r *repo) ListSettings(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(r.d.settings))
	for k, v := range r.d.settings {
		out[k] = v
	}
	return out, nil
}

func (r *repo) RecipeByProduct(_ context.Context, productID int) (*domain.Recipe, error) {
	for _, recipe := range r.d.recipes {
		if recipe.ProductID == productID && recipe.Active {
			found := recipe
			return &found, nil
		}
	}
	return nil, fmt.Errorf("recipe for product %d: %w", productID, store.ErrNotFound)
}

func (r *repo) RecipeLines(_ context.Context, recipeID int) ([]domain.RecipeLine, error) {
	out := make([]domain.RecipeLine, 0, 4)
	for _, line := range r.d.recipeLines {
		if line.RecipeID == recipeID && line.Active {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *repo) GetDocument(_ context.Context, docType domain.DocumentType, id int) (*domain.Document, error) {
	doc, ok := r.d.documents[id]
	if !ok || doc.Type != docType {
		return nil, fmt.Errorf("%s %d: %w", docType, id, store.ErrNotFound)
	}
	doc = cloneDocument(doc)
	return &doc, nil
}

func (r *repo) LastDocument(_ context.Context, docType domain.DocumentType, prefix string) (*domain.Document, error) {
	var last *domain.Document
	lastSeq := ""
	for _, doc := range r.d.documents {
		if doc.Type != docType {
			continue
		}
		seq, ok := sequenceOf(doc.TransactionNo, prefix)
		if !ok {
			continue
		}
		if last == nil || higherSequence(seq, doc.ID, lastSeq, last.ID) {
			found := cloneDocument(doc)
			last = &found
			lastSeq = seq
		}
	}
	if last == nil {
		return nil, store.ErrNotFound
	}
	return last, nil
}

func (r *repo) DocumentByTransactionNo(_ context.Context, docType domain.DocumentType, transactionNo string) (*domain.Document, error) {
	for _, doc := range r.d.documents {
		if doc.Type == docType && doc.TransactionNo == transactionNo {
			found := cloneDocument(doc)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *repo) SaveDocument(_ context.Context, doc *domain.Document) error {
	if r.readOnly {
		return errReadOnly
	}
	if doc == nil || doc.TransactionNo == "" {
		return domain.Invalid("transaction number is required")
	}
	for id, other := range r.d.documents {
		if id == doc.ID || other.Type != doc.Type {
			continue
		}
		if other.LocationID == doc.LocationID && other.FinancialYearID == doc.FinancialYearID && other.TransactionNo == doc.TransactionNo {
			return store.ErrDuplicateTransactionNo
		}
	}

	if doc.ID == 0 {
		r.d.documentSeq++
		doc.ID = r.d.documentSeq
	} else if existing, ok := r.d.documents[doc.ID]; !ok || existing.Type != doc.Type {
		return fmt.Errorf("%s %d: %w", doc.Type, doc.ID, store.ErrNotFound)
	}
	r.d.documents[doc.ID] = cloneDocument(*doc)
	return nil
}

func (r *repo) DeactivateLines(_ context.Context, docType domain.DocumentType, masterID int) error {
	if r.readOnly {
		return errReadOnly
	}
	for i := range r.d.lines {
		if r.d.lines[i].docType == docType && r.d.lines[i].line.MasterID == masterID {
			r.d.lines[i].line.Active = false
		}
	}
	return nil
}

func (r *repo) InsertLine(_ context.Context, docType domain.DocumentType, line *domain.Line) error {
	if r.readOnly {
		return errReadOnly
	}
	r.d.lineSeq++
	line.ID = r.d.lineSeq
	r.d.lines = append(r.d.lines, lineRecord{docType: docType, line: *line})
	return nil
}

func (r *repo) Lines(_ context.Context, docType domain.DocumentType, masterID int) ([]domain.Line, error) {
	out := make([]domain.Line, 0, 8)
	for _, rec := range r.d.lines {
		if rec.docType == docType && rec.line.MasterID == masterID && rec.line.Active {
			out = append(out, rec.line)
		}
	}
	return out, nil
}

func (r *repo) SetOrderSale(_ context.Context, orderID int, saleID *int) error {
	if r.readOnly {
		return errReadOnly
	}
	order, ok := r.d.documents[orderID]
	if !ok || order.Type != domain.DocOrder {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	order.SaleID = cloneInt(saleID)
	r.d.documents[orderID] = order
	return nil
}

func (r *repo) InsertStockEntry(_ context.Context, entry *domain.StockEntry) error {
	if r.readOnly {
		return errReadOnly
	}
	r.d.stockSeq++
	entry.ID = r.d.stockSeq
	r.d.stock = append(r.d.stock, *entry)
	return nil
}

func (r *repo) DeleteStockEntries(_ context.Context, ledger domain.StockLedger, docType domain.DocumentType, transactionID int, locationID int) error {
	if r.readOnly {
		return errReadOnly
	}
	kept := r.d.stock[:0]
	for _, entry := range r.d.stock {
		if entry.Ledger == ledger && entry.Type == docType && entry.TransactionID == transactionID && entry.LocationID == locationID {
			continue
		}
		kept = append(kept, entry)
	}
	r.d.stock = kept
	return nil
}

func (r *repo) StockEntries(_ context.Context, ledger domain.StockLedger, docType domain.DocumentType, transactionID int) ([]domain.StockEntry, error) {
	out := make([]domain.StockEntry, 0, 8)
	for _, entry := range r.d.stock {
		if entry.Ledger == ledger && entry.Type == docType && entry.TransactionID == transactionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *repo) StockMovements(_ context.Context, ledger domain.StockLedger, locationID int, until time.Time) ([]domain.StockEntry, error) {
	out := make([]domain.StockEntry, 0, 32)
	for _, entry := range r.d.stock {
		if entry.Ledger == ledger && entry.LocationID == locationID && entry.TransactionDate.Before(until) {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate.Before(out[j].TransactionDate)
	})
	return out, nil
}

func (r *repo) ActiveVoucher(_ context.Context, voucherTypeID int, referenceID int, referenceNo string) (*domain.Voucher, error) {
	for _, v := range r.d.vouchers {
		if v.Status == domain.StateActive && v.VoucherTypeID == voucherTypeID && v.ReferenceID == referenceID && v.ReferenceNo == referenceNo {
			found := cloneVoucher(v)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *repo) LastVoucher(_ context.Context, prefix string) (*domain.Voucher, error) {
	var last *domain.Voucher
	lastSeq := ""
	for _, v := range r.d.vouchers {
		seq, ok := sequenceOf(v.TransactionNo, prefix)
		if !ok {
			continue
		}
		if last == nil || higherSequence(seq, v.ID, lastSeq, last.ID) {
			found := cloneVoucher(v)
			last = &found
			lastSeq = seq
		}
	}
	if last == nil {
		return nil, store.ErrNotFound
	}
	return last, nil
}

// sequenceOf returns the numeric tail of transactionNo without leading
// zeros. ok is false unless the tail after prefix is all digits.
func sequenceOf(transactionNo string, prefix string) (string, bool) {
	if !strings.HasPrefix(transactionNo, prefix) {
		return "", false
	}
	tail := transactionNo[len(prefix):]
	if tail == "" {
		return "", false
	}
	for _, c := range tail {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return strings.TrimLeft(tail, "0"), true
}

func higherSequence(seq string, id int, than string, thanID int) bool {
	if len(seq) != len(than) {
		return len(seq) > len(than)
	}
	if seq != than {
		return seq > than
	}
	return id > thanID
}

func (r *repo) VoucherByTransactionNo(_ context.Context, transactionNo string) (*domain.Voucher, error) {
	for _, v := range r.d.vouchers {
		if v.TransactionNo == transactionNo {
			found := cloneVoucher(v)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *repo) InsertVoucher(_ context.Context, voucher *domain.Voucher) error {
	if r.readOnly {
		return errReadOnly
	}
	r.d.voucherSeq++
	voucher.ID = r.d.voucherSeq
	for i := range voucher.Lines {
		r.d.voucherLineSeq++
		voucher.Lines[i].ID = r.d.voucherLineSeq
		voucher.Lines[i].VoucherID = voucher.ID
	}
	r.d.vouchers[voucher.ID] = cloneVoucher(*voucher)
	return nil
}

func (r *repo) DeactivateVoucher(_ context.Context, id int) error {
	if r.readOnly {
		return errReadOnly
	}
	v, ok := r.d.vouchers[id]
	if !ok {
		return fmt.Errorf("voucher %d: %w", id, store.ErrNotFound)
	}
	v.Status = domain.StateReversed
	r.d.vouchers[id] = v
	return nil
}

func (r *repo) Vouchers(_ context.Context, referenceType domain.DocumentType, referenceID int) ([]domain.Voucher, error) {
	out := make([]domain.Voucher, 0, 2)
	for _, v := range r.d.vouchers {
		if v.ReferenceType == referenceType && v.ReferenceID == referenceID {
			out = append(out, cloneVoucher(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneDocument(doc domain.Document) domain.Document {
	doc.PartyID = cloneInt(doc.PartyID)
	doc.ToLocationID = cloneInt(doc.ToLocationID)
	doc.OrderID = cloneInt(doc.OrderID)
	doc.SaleID = cloneInt(doc.SaleID)
	if doc.LastModifiedAt != nil {
		at := *doc.LastModifiedAt
		doc.LastModifiedAt = &at
	}
	return doc
}

func cloneVoucher(v domain.Voucher) domain.Voucher {
	v.Lines = append([]domain.AccountingLine(nil), v.Lines...)
	return v
}
