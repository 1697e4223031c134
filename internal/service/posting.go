package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bakeryerp/backend/internal/config"
	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/lock"
	"bakeryerp/backend/internal/notify"
	"bakeryerp/backend/internal/numbering"
	"bakeryerp/backend/internal/pricing"
	"bakeryerp/backend/internal/stockledger"
	"bakeryerp/backend/internal/store"
	"bakeryerp/backend/internal/xid"
)

type saveOptions struct {
	recovering bool
	silent     bool
}

// Save creates the document when req.Document.ID is zero and replaces it
// otherwise. Header, lines, both stock ledgers, the order link and the
// voucher commit together or not at all.
func (s *Service) Save(ctx context.Context, req domain.SaveRequest) (resp domain.DocumentResponse, err error) {
	ctx, span := tracer.Start(ctx, "service.Save", trace.WithAttributes(
		attribute.String("document.type", string(req.Document.Type)),
		attribute.Int("document.id", req.Document.ID),
	))
	defer func() { endSpan(span, err) }()

	return s.save(ctx, req.Document, req.Lines, saveOptions{})
}

func (s *Service) save(ctx context.Context, doc domain.Document, lines []domain.Line, opts saveOptions) (domain.DocumentResponse, error) {
	policy, err := s.prepare(ctx, &doc, &lines)
	if err != nil {
		return domain.DocumentResponse{}, err
	}

	isNew := doc.ID == 0
	if isNew && policy.Numbering == domain.NumberingSequential {
		release := s.lockSeries(ctx, doc)
		defer release()
	}

	var result domain.DocumentResponse
	for attempt := 1; ; attempt++ {
		work := doc
		workLines := append([]domain.Line(nil), lines...)
		err = s.store.WithinTx(ctx, func(repo store.Repository) error {
			return s.post(ctx, repo, policy, &work, workLines, opts)
		})
		if err == nil {
			result = domain.DocumentResponse{Document: work, Lines: workLines}
			break
		}
		if isNew && errors.Is(err, store.ErrDuplicateTransactionNo) && attempt < s.saveAttempts {
			s.logger.WithFields(logrus.Fields{
				"module":  "service",
				"type":    doc.Type,
				"attempt": attempt,
			}).Warn("transaction number taken concurrently, retrying")
			continue
		}
		return domain.DocumentResponse{}, err
	}

	if !opts.silent {
		kind := notify.KindUpdated
		if isNew {
			kind = notify.KindCreated
		}
		s.emit(ctx, kind, result.Document)
	}
	return result, nil
}

// prepare validates the request, recomputes amounts and resolves the
// financial year. It runs before any unit of work is opened.
func (s *Service) prepare(ctx context.Context, doc *domain.Document, lines *[]domain.Line) (domain.Policy, error) {
	policy, err := s.validateRequest(*doc, *lines)
	if err != nil {
		return domain.Policy{}, err
	}

	if doc.TransactionDateTime.IsZero() {
		doc.TransactionDateTime = s.now().UTC()
	}

	*doc, *lines = pricing.Document(*doc, *lines)
	// Revenue is credited as total less tax and must not go negative.
	if policy.PostsAccounting() && doc.TotalTaxAmount.GreaterThan(doc.TotalAmount) {
		return domain.Policy{}, domain.Invalid(fmt.Sprintf("tax %s exceeds total %s", doc.TotalTaxAmount.StringFixed(2), doc.TotalAmount.StringFixed(2)))
	}
	if policy.PostsAccounting() && !doc.Settled().Equal(doc.TotalAmount) {
		return domain.Policy{}, domain.Invalid(fmt.Sprintf("payments %s do not match total %s", doc.Settled().StringFixed(2), doc.TotalAmount.StringFixed(2)))
	}

	if doc.FinancialYearID == 0 && doc.ID == 0 {
		err := s.store.View(ctx, func(repo store.Repository) error {
			fy, err := repo.FinancialYearByDate(ctx, doc.TransactionDateTime)
			if err != nil {
				return err
			}
			doc.FinancialYearID = fy.ID
			return nil
		})
		if err != nil {
			return domain.Policy{}, err
		}
	}
	return policy, nil
}

// lockSeries serializes number assignment for the document's series. The
// save goes ahead without the lock when it cannot be obtained; the store's
// uniqueness constraint still holds.
func (s *Service) lockSeries(ctx context.Context, doc domain.Document) func() {
	key := numbering.SeriesKey(doc.Type, doc.LocationID, doc.FinancialYearID)
	release, err := s.locker.Obtain(ctx, key, s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			s.logger.WithFields(logrus.Fields{"module": "service", "series": key}).Warn("series lock not obtained, continuing")
		} else {
			config.LogError(s.logger, "service", "lockSeries", "obtain series lock", key, err)
		}
		return func() {}
	}
	return release
}

func (s *Service) post(ctx context.Context, repo store.Repository, policy domain.Policy, doc *domain.Document, lines []domain.Line, opts saveOptions) error {
	actor := s.actor(ctx)
	now := s.now().UTC()

	var prev *domain.Document
	if doc.ID != 0 {
		existing, err := repo.GetDocument(ctx, doc.Type, doc.ID)
		if err != nil {
			return err
		}
		if err := s.checkYear(ctx, repo, existing.FinancialYearID); err != nil {
			return err
		}
		switch {
		case existing.Status == domain.StateReversed && !opts.recovering:
			return fmt.Errorf("%s %s is reversed, recover it first: %w", existing.Type, existing.TransactionNo, domain.ErrInvalidState)
		case existing.Status != domain.StateReversed && opts.recovering:
			return fmt.Errorf("%s %s is not reversed: %w", existing.Type, existing.TransactionNo, domain.ErrInvalidState)
		}
		prev = existing

		// A zero year keeps the stored one; any other value is the target
		// year and is checked below like a new document's.
		if doc.FinancialYearID == 0 {
			doc.FinancialYearID = existing.FinancialYearID
		}
		doc.TransactionNo = existing.TransactionNo
		doc.SaleID = existing.SaleID
		doc.CreatedBy = existing.CreatedBy
		doc.CreatedAt = existing.CreatedAt
		doc.CreatedPlatform = existing.CreatedPlatform
		doc.LastModifiedBy = actor.Username
		doc.LastModifiedAt = &now
		doc.LastModifiedPlatform = actor.Platform
	} else {
		doc.SaleID = nil
		doc.CreatedBy = actor.Username
		doc.CreatedAt = now
		doc.CreatedPlatform = actor.Platform
		doc.LastModifiedBy = ""
		doc.LastModifiedAt = nil
		doc.LastModifiedPlatform = ""
	}

	if err := s.checkYear(ctx, repo, doc.FinancialYearID); err != nil {
		return err
	}

	if prev == nil {
		no, err := s.numbers.Next(ctx, repo, doc.Type, doc.LocationID, doc.FinancialYearID, doc.TransactionDateTime)
		if err != nil {
			return err
		}
		doc.TransactionNo = no
	}

	doc.Status = domain.StateActive
	if err := repo.SaveDocument(ctx, doc); err != nil {
		return err
	}

	if prev != nil {
		if err := repo.DeactivateLines(ctx, doc.Type, doc.ID); err != nil {
			return err
		}
	}
	for i := range lines {
		lines[i].ID = 0
		lines[i].MasterID = doc.ID
		lines[i].Active = true
		if err := repo.InsertLine(ctx, doc.Type, &lines[i]); err != nil {
			return err
		}
	}

	if err := s.postStock(ctx, repo, policy, prev, *doc, lines); err != nil {
		return err
	}

	if policy.LinksOrder {
		if err := s.linkOrder(ctx, repo, prev, *doc); err != nil {
			return err
		}
	}

	if policy.PostsAccounting() {
		if _, err := s.poster.Post(ctx, repo, *doc, actor.Username); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) postStock(ctx context.Context, repo store.Repository, policy domain.Policy, prev *domain.Document, doc domain.Document, lines []domain.Line) error {
	if policy.PostsStock() {
		if prev != nil {
			oldCounterparty, err := stockledger.Counterparty(ctx, repo, policy, *prev)
			if err != nil {
				return err
			}
			if err := stockledger.Reverse(ctx, repo, policy.Stock, doc.Type, doc.ID, prev.LocationID, derefInt(oldCounterparty)); err != nil {
				return err
			}
		}
		counterparty, err := stockledger.Counterparty(ctx, repo, policy, doc)
		if err != nil {
			return err
		}
		if err := stockledger.Append(ctx, repo, stockledger.Footprint(policy, doc, lines, counterparty)...); err != nil {
			return err
		}
	}

	if policy.ExplodeRecipe {
		if prev != nil {
			if err := stockledger.Reverse(ctx, repo, domain.LedgerRawMaterial, doc.Type, doc.ID, prev.LocationID); err != nil {
				return err
			}
		}
		entries, err := s.exploder.Entries(ctx, repo, policy, doc, lines)
		if err != nil {
			return err
		}
		if err := stockledger.Append(ctx, repo, entries...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) linkOrder(ctx context.Context, repo store.Repository, prev *domain.Document, doc domain.Document) error {
	if prev != nil && prev.OrderID != nil && (doc.OrderID == nil || *doc.OrderID != *prev.OrderID) {
		if err := repo.SetOrderSale(ctx, *prev.OrderID, nil); err != nil {
			return err
		}
	}
	if doc.OrderID != nil {
		saleID := doc.ID
		if err := repo.SetOrderSale(ctx, *doc.OrderID, &saleID); err != nil {
			return err
		}
	}
	return nil
}

// Delete reverses an active document: its stock footprint, raw-material
// consumption, order link and voucher are withdrawn and the header is marked
// reversed. Lines are kept so the document can be recovered.
func (s *Service) Delete(ctx context.Context, docType domain.DocumentType, id int) (doc domain.Document, err error) {
	ctx, span := tracer.Start(ctx, "service.Delete", trace.WithAttributes(
		attribute.String("document.type", string(docType)),
		attribute.Int("document.id", id),
	))
	defer func() { endSpan(span, err) }()

	policy, ok := domain.PolicyFor(docType)
	if _, header := domain.ParseDocumentType(string(docType)); !ok || !header {
		return domain.Document{}, domain.Invalid(fmt.Sprintf("unknown document type %q", docType))
	}

	actor := s.actor(ctx)
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		existing, err := repo.GetDocument(ctx, docType, id)
		if err != nil {
			return err
		}
		if existing.Status != domain.StateActive {
			return fmt.Errorf("%s %s is already reversed: %w", docType, existing.TransactionNo, domain.ErrInvalidState)
		}
		if err := s.checkYear(ctx, repo, existing.FinancialYearID); err != nil {
			return err
		}

		now := s.now().UTC()
		existing.Status = domain.StateReversed
		existing.LastModifiedBy = actor.Username
		existing.LastModifiedAt = &now
		existing.LastModifiedPlatform = actor.Platform
		if err := repo.SaveDocument(ctx, existing); err != nil {
			return err
		}

		if policy.PostsStock() {
			counterparty, err := stockledger.Counterparty(ctx, repo, policy, *existing)
			if err != nil {
				return err
			}
			if err := stockledger.Reverse(ctx, repo, policy.Stock, docType, existing.ID, existing.LocationID, derefInt(counterparty)); err != nil {
				return err
			}
		}
		if policy.ExplodeRecipe {
			if err := stockledger.Reverse(ctx, repo, domain.LedgerRawMaterial, docType, existing.ID, existing.LocationID); err != nil {
				return err
			}
		}
		if policy.LinksOrder && existing.OrderID != nil {
			if err := repo.SetOrderSale(ctx, *existing.OrderID, nil); err != nil {
				return err
			}
		}
		if err := s.poster.Reverse(ctx, repo, *existing); err != nil {
			return err
		}

		doc = *existing
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	s.emit(ctx, notify.KindDeleted, doc)
	return doc, nil
}

// Recover replays a reversed document through the save pipeline with its
// stored lines.
func (s *Service) Recover(ctx context.Context, docType domain.DocumentType, id int) (resp domain.DocumentResponse, err error) {
	ctx, span := tracer.Start(ctx, "service.Recover", trace.WithAttributes(
		attribute.String("document.type", string(docType)),
		attribute.Int("document.id", id),
	))
	defer func() { endSpan(span, err) }()

	current, err := s.Document(ctx, docType, id)
	if err != nil {
		return domain.DocumentResponse{}, err
	}
	if current.Document.Status != domain.StateReversed {
		return domain.DocumentResponse{}, fmt.Errorf("%s %s is not reversed: %w", docType, current.Document.TransactionNo, domain.ErrInvalidState)
	}

	resp, err = s.save(ctx, current.Document, current.Lines, saveOptions{recovering: true, silent: true})
	if err != nil {
		return domain.DocumentResponse{}, err
	}

	s.emit(ctx, notify.KindRecovered, resp.Document)
	return resp, nil
}

func (s *Service) emit(ctx context.Context, kind notify.Kind, doc domain.Document) {
	s.emitter.Emit(notify.Event{
		ID:            xid.New("evt"),
		Kind:          kind,
		DocumentType:  doc.Type,
		DocumentID:    doc.ID,
		TransactionNo: doc.TransactionNo,
		LocationID:    doc.LocationID,
		TotalAmount:   doc.TotalAmount,
		Actor:         s.actor(ctx).Username,
		OccurredAt:    s.now().UTC(),
	})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
