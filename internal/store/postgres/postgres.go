package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&repo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateTransactionNo
		}
		return err
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&repo{q: tx})
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type repo struct {
	q queryer
}

func (r *repo) GetFinancialYear(ctx context.Context, id int) (*domain.FinancialYear, error) {
	fy, err := scanFinancialYear(r.q.QueryRowContext(ctx, `
		SELECT id, year_no, start_date, end_date, locked, active
		FROM financial_years
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("financial year %d", id))
	}
	return fy, nil
}

func (r *repo) FinancialYearByDate(ctx context.Context, at time.Time) (*domain.FinancialYear, error) {
	fy, err := scanFinancialYear(r.q.QueryRowContext(ctx, `
		SELECT id, year_no, start_date, end_date, locked, active
		FROM financial_years
		WHERE start_date <= $1 AND $1 < end_date
		ORDER BY start_date DESC
		LIMIT 1
	`, at))
	if err != nil {
		return nil, notFound(err, "financial year covering "+at.Format(time.DateOnly))
	}
	return fy, nil
}

func scanFinancialYear(row rowScanner) (*domain.FinancialYear, error) {
	var fy domain.FinancialYear
	if err := row.Scan(&fy.ID, &fy.YearNo, &fy.StartDate, &fy.EndDate, &fy.Locked, &fy.Active); err != nil {
		return nil, err
	}
	return &fy, nil
}

func (r *repo) GetLocation(ctx context.Context, id int) (*domain.Location, error) {
	var (
		loc      domain.Location
		ledgerID sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, prefix_code, ledger_id, active
		FROM locations
		WHERE id = $1
	`, id).Scan(&loc.ID, &loc.Name, &loc.PrefixCode, &ledgerID, &loc.Active)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("location %d", id))
	}
	loc.LedgerID = intPtr(ledgerID)
	return &loc, nil
}

func (r *repo) GetLedger(ctx context.Context, id int) (*domain.Ledger, error) {
	var (
		ledger     domain.Ledger
		locationID sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, location_id, active
		FROM ledgers
		WHERE id = $1
	`, id).Scan(&ledger.ID, &ledger.Name, &locationID, &ledger.Active)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("ledger %d", id))
	}
	ledger.LocationID = intPtr(locationID)
	return &ledger, nil
}

func (r *repo) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return "", notFound(err, "setting "+key)
	}
	return value, nil
}

func (r *repo) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string, 32)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (r *repo) RecipeByProduct(ctx context.Context, productID int) (*domain.Recipe, error) {
	var recipe domain.Recipe
	err := r.q.QueryRowContext(ctx, `
		SELECT id, product_id, active
		FROM recipes
		WHERE product_id = $1 AND active = true
	`, productID).Scan(&recipe.ID, &recipe.ProductID, &recipe.Active)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("recipe for product %d", productID))
	}
	return &recipe, nil
}

func (r *repo) RecipeLines(ctx context.Context, recipeID int) ([]domain.RecipeLine, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, recipe_id, raw_material_id, quantity, active
		FROM recipe_lines
		WHERE recipe_id = $1 AND active = true
		ORDER BY id
	`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RecipeLine, 0, 4)
	for rows.Next() {
		var line domain.RecipeLine
		if err := rows.Scan(&line.ID, &line.RecipeID, &line.RawMaterialID, &line.Quantity, &line.Active); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

const documentColumns = `
	id, doc_type, transaction_no, location_id, party_id, to_location_id, order_id, sale_id,
	financial_year_id, transaction_date_time, remarks,
	base_total, item_discount_amount, discount_percent, discount_amount, total_tax_amount,
	round_off_amount, total_amount, cash, card, upi, credit, status,
	created_by, created_at, created_platform, last_modified_by, last_modified_at, last_modified_platform`

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc                                     domain.Document
		partyID, toLocationID, orderID, saleID sql.NullInt64
		lastModifiedAt                          sql.NullTime
	)
	err := row.Scan(
		&doc.ID, &doc.Type, &doc.TransactionNo, &doc.LocationID, &partyID, &toLocationID, &orderID, &saleID,
		&doc.FinancialYearID, &doc.TransactionDateTime, &doc.Remarks,
		&doc.BaseTotal, &doc.ItemDiscountAmount, &doc.DiscountPercent, &doc.DiscountAmount, &doc.TotalTaxAmount,
		&doc.RoundOffAmount, &doc.TotalAmount, &doc.Cash, &doc.Card, &doc.UPI, &doc.Credit, &doc.Status,
		&doc.CreatedBy, &doc.CreatedAt, &doc.CreatedPlatform, &doc.LastModifiedBy, &lastModifiedAt, &doc.LastModifiedPlatform,
	)
	if err != nil {
		return nil, err
	}
	doc.PartyID = intPtr(partyID)
	doc.ToLocationID = intPtr(toLocationID)
	doc.OrderID = intPtr(orderID)
	doc.SaleID = intPtr(saleID)
	if lastModifiedAt.Valid {
		at := lastModifiedAt.Time
		doc.LastModifiedAt = &at
	}
	return &doc, nil
}

func (r *repo) GetDocument(ctx context.Context, docType domain.DocumentType, id int) (*domain.Document, error) {
	doc, err := scanDocument(r.q.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM documents
		WHERE doc_type = $1 AND id = $2
	`, docType, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("%s %d", docType, id))
	}
	return doc, nil
}

// seriesFilter matches numbers that are $N followed by digits only.
func seriesFilter(n int) string {
	return fmt.Sprintf(`substr(transaction_no, 1, length($%[1]d)) = $%[1]d
		AND substr(transaction_no, length($%[1]d) + 1) ~ '^[0-9]+$'`, n)
}

// seriesOrder sorts the numeric tail by value without casting, so tails
// wider than bigint still order correctly.
func seriesOrder(n int) string {
	return fmt.Sprintf(`length(ltrim(substr(transaction_no, length($%[1]d) + 1), '0')) DESC,
		ltrim(substr(transaction_no, length($%[1]d) + 1), '0') COLLATE "C" DESC,
		id DESC`, n)
}

func (r *repo) LastDocument(ctx context.Context, docType domain.DocumentType, prefix string) (*domain.Document, error) {
	doc, err := scanDocument(r.q.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM documents
		WHERE doc_type = $1 AND `+seriesFilter(2)+`
		ORDER BY `+seriesOrder(2)+`
		LIMIT 1
	`, docType, prefix))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("last %s %s", docType, prefix))
	}
	return doc, nil
}

func (r *repo) DocumentByTransactionNo(ctx context.Context, docType domain.DocumentType, transactionNo string) (*domain.Document, error) {
	doc, err := scanDocument(r.q.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM documents
		WHERE doc_type = $1 AND transaction_no = $2
		LIMIT 1
	`, docType, transactionNo))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("%s %s", docType, transactionNo))
	}
	return doc, nil
}

func (r *repo) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.TransactionNo == "" {
		return domain.Invalid("transaction number is required")
	}

	args := []any{
		doc.Type, doc.TransactionNo, doc.LocationID, nullInt(doc.PartyID), nullInt(doc.ToLocationID), nullInt(doc.OrderID), nullInt(doc.SaleID),
		doc.FinancialYearID, doc.TransactionDateTime, doc.Remarks,
		doc.BaseTotal, doc.ItemDiscountAmount, doc.DiscountPercent, doc.DiscountAmount, doc.TotalTaxAmount,
		doc.RoundOffAmount, doc.TotalAmount, doc.Cash, doc.Card, doc.UPI, doc.Credit, doc.Status,
		doc.CreatedBy, doc.CreatedAt, doc.CreatedPlatform, doc.LastModifiedBy, nullTime(doc.LastModifiedAt), doc.LastModifiedPlatform,
	}

	if doc.ID == 0 {
		err := r.q.QueryRowContext(ctx, `
			INSERT INTO documents (
				doc_type, transaction_no, location_id, party_id, to_location_id, order_id, sale_id,
				financial_year_id, transaction_date_time, remarks,
				base_total, item_discount_amount, discount_percent, discount_amount, total_tax_amount,
				round_off_amount, total_amount, cash, card, upi, credit, status,
				created_by, created_at, created_platform, last_modified_by, last_modified_at, last_modified_platform
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
			RETURNING id
		`, args...).Scan(&doc.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateTransactionNo
			}
			return err
		}
		return nil
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE documents SET
			transaction_no = $2, location_id = $3, party_id = $4, to_location_id = $5, order_id = $6, sale_id = $7,
			financial_year_id = $8, transaction_date_time = $9, remarks = $10,
			base_total = $11, item_discount_amount = $12, discount_percent = $13, discount_amount = $14, total_tax_amount = $15,
			round_off_amount = $16, total_amount = $17, cash = $18, card = $19, upi = $20, credit = $21, status = $22,
			created_by = $23, created_at = $24, created_platform = $25, last_modified_by = $26, last_modified_at = $27, last_modified_platform = $28
		WHERE doc_type = $1 AND id = $29
	`, append(args, doc.ID)...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateTransactionNo
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", doc.Type, doc.ID, store.ErrNotFound)
	}
	return nil
}

func (r *repo) DeactivateLines(ctx context.Context, docType domain.DocumentType, masterID int) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE document_lines SET active = false
		WHERE doc_type = $1 AND master_id = $2 AND active = true
	`, docType, masterID)
	return err
}

func (r *repo) InsertLine(ctx context.Context, docType domain.DocumentType, line *domain.Line) error {
	return r.q.QueryRowContext(ctx, `
		INSERT INTO document_lines (
			doc_type, master_id, item_id, quantity, rate, discount_percent, discount_amount,
			base_total, after_discount, cgst_percent, cgst_amount, sgst_percent, sgst_amount,
			igst_percent, igst_amount, total_tax_amount, inclusive_tax, total, net_rate, remarks, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING id
	`,
		docType, line.MasterID, line.ItemID, line.Quantity, line.Rate, line.DiscountPercent, line.DiscountAmount,
		line.BaseTotal, line.AfterDiscount, line.CGSTPercent, line.CGSTAmount, line.SGSTPercent, line.SGSTAmount,
		line.IGSTPercent, line.IGSTAmount, line.TotalTaxAmount, line.InclusiveTax, line.Total, line.NetRate, line.Remarks, line.Active,
	).Scan(&line.ID)
}

func (r *repo) Lines(ctx context.Context, docType domain.DocumentType, masterID int) ([]domain.Line, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, master_id, item_id, quantity, rate, discount_percent, discount_amount,
			base_total, after_discount, cgst_percent, cgst_amount, sgst_percent, sgst_amount,
			igst_percent, igst_amount, total_tax_amount, inclusive_tax, total, net_rate, remarks, active
		FROM document_lines
		WHERE doc_type = $1 AND master_id = $2 AND active = true
		ORDER BY id
	`, docType, masterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Line, 0, 8)
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(
			&l.ID, &l.MasterID, &l.ItemID, &l.Quantity, &l.Rate, &l.DiscountPercent, &l.DiscountAmount,
			&l.BaseTotal, &l.AfterDiscount, &l.CGSTPercent, &l.CGSTAmount, &l.SGSTPercent, &l.SGSTAmount,
			&l.IGSTPercent, &l.IGSTAmount, &l.TotalTaxAmount, &l.InclusiveTax, &l.Total, &l.NetRate, &l.Remarks, &l.Active,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repo) SetOrderSale(ctx context.Context, orderID int, saleID *int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE documents SET sale_id = $2
		WHERE doc_type = $1 AND id = $3
	`, domain.DocOrder, nullInt(saleID), orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	return nil
}

func (r *repo) InsertStockEntry(ctx context.Context, entry *domain.StockEntry) error {
	return r.q.QueryRowContext(ctx, `
		INSERT INTO stock_entries (
			ledger, item_id, location_id, quantity, net_rate, doc_type, transaction_id, transaction_no, transaction_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, entry.Ledger, entry.ItemID, entry.LocationID, entry.Quantity, entry.NetRate,
		entry.Type, entry.TransactionID, entry.TransactionNo, entry.TransactionDate,
	).Scan(&entry.ID)
}

func (r *repo) DeleteStockEntries(ctx context.Context, ledger domain.StockLedger, docType domain.DocumentType, transactionID int, locationID int) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM stock_entries
		WHERE ledger = $1 AND doc_type = $2 AND transaction_id = $3 AND location_id = $4
	`, ledger, docType, transactionID, locationID)
	return err
}

const stockColumns = `id, ledger, item_id, location_id, quantity, net_rate, doc_type, transaction_id, transaction_no, transaction_date`

func (r *repo) StockEntries(ctx context.Context, ledger domain.StockLedger, docType domain.DocumentType, transactionID int) ([]domain.StockEntry, error) {
	return r.queryStock(ctx, `SELECT `+stockColumns+`
		FROM stock_entries
		WHERE ledger = $1 AND doc_type = $2 AND transaction_id = $3
		ORDER BY id
	`, ledger, docType, transactionID)
}

func (r *repo) StockMovements(ctx context.Context, ledger domain.StockLedger, locationID int, until time.Time) ([]domain.StockEntry, error) {
	return r.queryStock(ctx, `SELECT `+stockColumns+`
		FROM stock_entries
		WHERE ledger = $1 AND location_id = $2 AND transaction_date < $3
		ORDER BY transaction_date, id
	`, ledger, locationID, until)
}

func (r *repo) queryStock(ctx context.Context, query string, args ...any) ([]domain.StockEntry, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StockEntry, 0, 16)
	for rows.Next() {
		var e domain.StockEntry
		if err := rows.Scan(
			&e.ID, &e.Ledger, &e.ItemID, &e.LocationID, &e.Quantity, &e.NetRate,
			&e.Type, &e.TransactionID, &e.TransactionNo, &e.TransactionDate,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const voucherColumns = `
	id, transaction_no, voucher_type_id, reference_type, reference_id, reference_no,
	location_id, financial_year_id, transaction_date_time, total_amount, remarks, status, created_by, created_at`

func scanVoucher(row rowScanner) (*domain.Voucher, error) {
	var v domain.Voucher
	err := row.Scan(
		&v.ID, &v.TransactionNo, &v.VoucherTypeID, &v.ReferenceType, &v.ReferenceID, &v.ReferenceNo,
		&v.LocationID, &v.FinancialYearID, &v.TransactionDateTime, &v.TotalAmount, &v.Remarks, &v.Status, &v.CreatedBy, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repo) voucher(ctx context.Context, what string, query string, args ...any) (*domain.Voucher, error) {
	v, err := scanVoucher(r.q.QueryRowContext(ctx, `SELECT `+voucherColumns+` FROM vouchers `+query, args...))
	if err != nil {
		return nil, notFound(err, what)
	}
	if v.Lines, err = r.voucherLines(ctx, v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *repo) voucherLines(ctx context.Context, voucherID int) ([]domain.AccountingLine, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, voucher_id, ledger_id, debit, credit, remarks
		FROM accounting_lines
		WHERE voucher_id = $1
		ORDER BY id
	`, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AccountingLine, 0, 4)
	for rows.Next() {
		var (
			line          domain.AccountingLine
			debit, credit decimal.NullDecimal
		)
		if err := rows.Scan(&line.ID, &line.VoucherID, &line.LedgerID, &debit, &credit, &line.Remarks); err != nil {
			return nil, err
		}
		line.Debit = decimalPtr(debit)
		line.Credit = decimalPtr(credit)
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *repo) ActiveVoucher(ctx context.Context, voucherTypeID int, referenceID int, referenceNo string) (*domain.Voucher, error) {
	return r.voucher(ctx, fmt.Sprintf("active voucher for %s", referenceNo), `
		WHERE status = $1 AND voucher_type_id = $2 AND reference_id = $3 AND reference_no = $4
		ORDER BY id DESC
		LIMIT 1
	`, domain.StateActive, voucherTypeID, referenceID, referenceNo)
}

func (r *repo) LastVoucher(ctx context.Context, prefix string) (*domain.Voucher, error) {
	return r.voucher(ctx, "last voucher "+prefix, `
		WHERE `+seriesFilter(1)+`
		ORDER BY `+seriesOrder(1)+`
		LIMIT 1
	`, prefix)
}

func (r *repo) VoucherByTransactionNo(ctx context.Context, transactionNo string) (*domain.Voucher, error) {
	return r.voucher(ctx, "voucher "+transactionNo, `
		WHERE transaction_no = $1
		ORDER BY id DESC
		LIMIT 1
	`, transactionNo)
}

func (r *repo) InsertVoucher(ctx context.Context, voucher *domain.Voucher) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO vouchers (
			transaction_no, voucher_type_id, reference_type, reference_id, reference_no,
			location_id, financial_year_id, transaction_date_time, total_amount, remarks, status, created_by, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`, voucher.TransactionNo, voucher.VoucherTypeID, voucher.ReferenceType, voucher.ReferenceID, voucher.ReferenceNo,
		voucher.LocationID, voucher.FinancialYearID, voucher.TransactionDateTime, voucher.TotalAmount, voucher.Remarks,
		voucher.Status, voucher.CreatedBy, voucher.CreatedAt,
	).Scan(&voucher.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateTransactionNo
		}
		return err
	}

	for i := range voucher.Lines {
		line := &voucher.Lines[i]
		line.VoucherID = voucher.ID
		if err := r.q.QueryRowContext(ctx, `
			INSERT INTO accounting_lines (voucher_id, ledger_id, debit, credit, remarks)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, line.VoucherID, line.LedgerID, nullDecimal(line.Debit), nullDecimal(line.Credit), line.Remarks).Scan(&line.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeactivateVoucher(ctx context.Context, id int) error {
	res, err := r.q.ExecContext(ctx, `UPDATE vouchers SET status = $2 WHERE id = $1`, id, domain.StateReversed)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("voucher %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *repo) Vouchers(ctx context.Context, referenceType domain.DocumentType, referenceID int) ([]domain.Voucher, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+voucherColumns+`
		FROM vouchers
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY id
	`, referenceType, referenceID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Voucher, 0, 2)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range out {
		if out[i].Lines, err = r.voucherLines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func decimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}
