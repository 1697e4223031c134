package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"bakeryerp/backend/internal/accounting"
	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/lock"
	"bakeryerp/backend/internal/notify"
	"bakeryerp/backend/internal/numbering"
	"bakeryerp/backend/internal/recipe"
	"bakeryerp/backend/internal/settings"
	"bakeryerp/backend/internal/stockledger"
	"bakeryerp/backend/internal/store"
)

var tracer = otel.Tracer("bakeryerp/backend/internal/service")

const (
	DefaultSaveAttempts = 5
	defaultLockTTL      = 10 * time.Second
	systemActor         = "system"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options carries the optional collaborators. Zero values fall back to
// no-op implementations.
type Options struct {
	Locker       lock.Locker
	LockTTL      time.Duration
	Emitter      notify.Emitter
	Logger       *logrus.Logger
	SaveAttempts int
	Now          func() time.Time
}

type Service struct {
	store        store.Store
	settings     settings.Settings
	numbers      *numbering.Generator
	exploder     *recipe.Exploder
	poster       *accounting.Poster
	locker       lock.Locker
	lockTTL      time.Duration
	emitter      notify.Emitter
	validate     *validator.Validate
	logger       *logrus.Logger
	saveAttempts int
	now          func() time.Time
}

func New(st store.Store, cfg settings.Settings, numbers *numbering.Generator, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Locker == nil {
		opts.Locker = lock.Noop{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Emitter == nil {
		opts.Emitter = notify.NopEmitter{}
	}
	if opts.SaveAttempts < 1 {
		opts.SaveAttempts = DefaultSaveAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:        st,
		settings:     cfg,
		numbers:      numbers,
		exploder:     recipe.NewExploder(cfg.PrimaryLocationID, opts.Logger),
		poster:       accounting.NewPoster(cfg, numbers, opts.Logger),
		locker:       opts.Locker,
		lockTTL:      opts.LockTTL,
		emitter:      opts.Emitter,
		validate:     validator.New(),
		logger:       opts.Logger,
		saveAttempts: opts.SaveAttempts,
		now:          opts.Now,
	}
}

// Document returns the header and its active lines.
func (s *Service) Document(ctx context.Context, docType domain.DocumentType, id int) (domain.DocumentResponse, error) {
	if _, ok := domain.ParseDocumentType(string(docType)); !ok {
		return domain.DocumentResponse{}, domain.Invalid(fmt.Sprintf("unknown document type %q", docType))
	}

	var resp domain.DocumentResponse
	err := s.store.View(ctx, func(repo store.Repository) error {
		doc, err := repo.GetDocument(ctx, docType, id)
		if err != nil {
			return err
		}
		lines, err := repo.Lines(ctx, docType, id)
		if err != nil {
			return err
		}
		resp = domain.DocumentResponse{Document: *doc, Lines: lines}
		return nil
	})
	return resp, err
}

// Voucher returns the active voucher posted for a document.
func (s *Service) Voucher(ctx context.Context, docType domain.DocumentType, id int) (domain.Voucher, error) {
	voucherTypeID, ok := s.settings.VoucherType(docType)
	if !ok {
		return domain.Voucher{}, fmt.Errorf("%s posts no voucher: %w", docType, store.ErrNotFound)
	}

	var out domain.Voucher
	err := s.store.View(ctx, func(repo store.Repository) error {
		doc, err := repo.GetDocument(ctx, docType, id)
		if err != nil {
			return err
		}
		v, err := repo.ActiveVoucher(ctx, voucherTypeID, doc.ID, doc.TransactionNo)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("voucher for %s %s: %w", docType, doc.TransactionNo, store.ErrNotFound)
			}
			return err
		}
		out = *v
		return nil
	})
	return out, err
}

// ClosingStock summarizes one ledger at a location for [from, to). A zero to
// means now.
func (s *Service) ClosingStock(ctx context.Context, ledger domain.StockLedger, locationID int, from time.Time, to time.Time) ([]domain.StockSummary, error) {
	if ledger != domain.LedgerProduct && ledger != domain.LedgerRawMaterial {
		return nil, domain.Invalid(fmt.Sprintf("unknown stock ledger %q", ledger))
	}
	if locationID < 1 {
		return nil, domain.Invalid("location_id is required")
	}
	if to.IsZero() {
		to = s.now().UTC()
	}
	if !from.IsZero() && !from.Before(to) {
		return nil, domain.Invalid("from must be before to")
	}

	var out []domain.StockSummary
	err := s.store.View(ctx, func(repo store.Repository) error {
		if _, err := repo.GetLocation(ctx, locationID); err != nil {
			return err
		}
		entries, err := repo.StockMovements(ctx, ledger, locationID, to)
		if err != nil {
			return err
		}
		out = stockledger.Summarize(entries, from, to)
		return nil
	})
	return out, err
}

func (s *Service) actor(ctx context.Context) domain.Actor {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		actor.Username = systemActor
	}
	return actor
}

func (s *Service) checkYear(ctx context.Context, repo store.FinancialYearRepository, financialYearID int) error {
	fy, err := repo.GetFinancialYear(ctx, financialYearID)
	if err != nil {
		return err
	}
	return domain.CheckFinancialYear(*fy)
}
