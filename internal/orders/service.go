package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/krishimarket/krishimarket/internal/counterparty"
	"github.com/krishimarket/krishimarket/internal/identity"
)

// DefaultRecentLimit is the size of the recent history list.
const DefaultRecentLimit = 10

// OrderRepository is the persistence the service depends on.
type OrderRepository interface {
	Persister
	ListRecent(ctx context.Context, wf Workflow, ownerID string, limit int) ([]Summary, error)
	Product(ctx context.Context, ownerID, productID string) (Product, error)
	Products(ctx context.Context, ownerID string) ([]Product, error)
}

// Drafts stores builder state between requests.
type Drafts interface {
	Load(ctx context.Context, workflow, userID string) (State, bool, error)
	Save(ctx context.Context, workflow, userID string, st State) error
	Delete(ctx context.Context, workflow, userID string) error
}

// Parties searches and resolves counterparties.
type Parties interface {
	PartySearcher
	Get(ctx context.Context, role counterparty.Role, ownerID, id string) (counterparty.Party, error)
}

// ProfileLookup resolves the issuer's profile.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string, role identity.Role) (identity.Profile, error)
}

// SubmittedEvent describes a persisted order for background processing.
type SubmittedEvent struct {
	Workflow         string    `json:"workflow"`
	OrderID          string    `json:"order_id"`
	OwnerID          string    `json:"owner_id"`
	DocumentNumber   string    `json:"document_number"`
	CounterpartyName string    `json:"counterparty_name,omitempty"`
	ItemCount        int       `json:"item_count"`
	GrandTotal       float64   `json:"grand_total"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Notifier hands submitted orders to background jobs.
type Notifier interface {
	OrderSubmitted(ctx context.Context, event SubmittedEvent) error
}

// Recorder receives submit outcomes.
type Recorder interface {
	ObserveOrderSubmit(workflow, outcome string, grandTotal float64)
}

// ServiceParams groups Service dependencies. Notifier and Recorder are optional.
type ServiceParams struct {
	Repo        OrderRepository
	Drafts      Drafts
	Parties     Parties
	Profiles    ProfileLookup
	Notifier    Notifier
	Recorder    Recorder
	Logger      *slog.Logger
	RecentLimit int
	Options     []Option
}

// Service drives builders for authenticated users, keeping each user's draft
// in the draft store between calls.
type Service struct {
	repo        OrderRepository
	drafts      Drafts
	parties     Parties
	profiles    ProfileLookup
	notifier    Notifier
	recorder    Recorder
	logger      *slog.Logger
	recentLimit int
	opts        []Option
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := p.RecentLimit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &Service{
		repo:        p.Repo,
		drafts:      p.Drafts,
		parties:     p.Parties,
		profiles:    p.Profiles,
		notifier:    p.Notifier,
		recorder:    p.Recorder,
		logger:      logger,
		recentLimit: limit,
		opts:        p.Options,
	}
}

// Draft loads the user's draft, starting a new one when none is stored.
func (s *Service) Draft(ctx context.Context, wf Workflow, user identity.Identity) (*Builder, error) {
	st, ok, err := s.drafts.Load(ctx, wf.Name, user.UserID)
	if err != nil {
		return nil, err
	}
	if ok {
		return Resume(wf, st, s.opts...), nil
	}
	b := s.start(ctx, wf, user)
	if err := s.drafts.Save(ctx, wf.Name, user.UserID, b.State()); err != nil {
		return nil, err
	}
	return b, nil
}

// Discard drops the stored draft and starts over.
func (s *Service) Discard(ctx context.Context, wf Workflow, user identity.Identity) (*Builder, error) {
	if err := s.drafts.Delete(ctx, wf.Name, user.UserID); err != nil {
		return nil, err
	}
	return s.Draft(ctx, wf, user)
}

// Apply runs op against the user's draft and saves the result, including any
// validation message op left in the state. op's error is returned as is.
func (s *Service) Apply(ctx context.Context, wf Workflow, user identity.Identity, op func(*Builder) error) (*Builder, error) {
	b, err := s.Draft(ctx, wf, user)
	if err != nil {
		return nil, err
	}
	opErr := op(b)
	if err := s.drafts.Save(ctx, wf.Name, user.UserID, b.State()); err != nil {
		return b, err
	}
	return b, opErr
}

// SelectProduct copies an owned catalog product into the draft item.
func (s *Service) SelectProduct(ctx context.Context, wf Workflow, user identity.Identity, productID string) (*Builder, error) {
	product, err := s.repo.Product(ctx, user.UserID, productID)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, wf, user, func(b *Builder) error {
		return b.SelectProduct(product)
	})
}

// SelectCounterparty resolves the party and freezes it onto the draft.
func (s *Service) SelectCounterparty(ctx context.Context, wf Workflow, user identity.Identity, partyID string) (*Builder, error) {
	party, err := s.parties.Get(ctx, wf.Counterparty, user.UserID, partyID)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, wf, user, func(b *Builder) error {
		return b.SelectCounterparty(party)
	})
}

// Search runs a counterparty search and keeps the results on the draft.
func (s *Service) Search(ctx context.Context, wf Workflow, user identity.Identity, query string) ([]counterparty.Party, error) {
	var results []counterparty.Party
	_, err := s.Apply(ctx, wf, user, func(b *Builder) error {
		results = b.SearchCounterparty(ctx, s.parties, user.UserID, query)
		return nil
	})
	return results, err
}

// Submit persists the user's draft. The returned builder reflects the state
// after the attempt, whether it succeeded or not. Once the order is stored a
// failed draft save is not reported as a submit failure; the stale draft is
// dropped instead so a retry cannot store the same order twice.
func (s *Service) Submit(ctx context.Context, wf Workflow, user identity.Identity) (*Builder, Receipt, error) {
	b, err := s.Draft(ctx, wf, user)
	if err != nil {
		return nil, Receipt{}, err
	}
	itemCount := len(b.state.Order.Items)
	counterpartyName := b.state.Order.CounterpartyName

	receipt, err := b.Submit(ctx, s.repo, user.UserID)
	if err == nil && wf.RefreshAfterSubmit {
		s.refreshRecent(ctx, b, user)
	}
	if saveErr := s.drafts.Save(ctx, wf.Name, user.UserID, b.State()); saveErr != nil {
		if err != nil {
			return b, Receipt{}, saveErr
		}
		s.logger.Warn("save draft after submit",
			slog.String("workflow", wf.Name),
			slog.String("user_id", user.UserID),
			slog.String("document_number", receipt.DocumentNumber),
			slog.Any("error", saveErr))
		if delErr := s.drafts.Delete(ctx, wf.Name, user.UserID); delErr != nil {
			s.logger.Error("drop submitted draft",
				slog.String("workflow", wf.Name),
				slog.String("user_id", user.UserID),
				slog.Any("error", delErr))
		}
	}

	switch {
	case err == nil:
		s.observe(wf, "success", receipt.GrandTotal)
	case IsValidation(err):
		s.observe(wf, "validation", 0)
		return b, Receipt{}, err
	default:
		s.observe(wf, "error", 0)
		s.logger.Error("order submit failed",
			slog.String("workflow", wf.Name),
			slog.String("user_id", user.UserID),
			slog.Any("error", err))
		return b, Receipt{}, err
	}

	s.logger.Info("order submitted",
		slog.String("workflow", wf.Name),
		slog.String("document_number", receipt.DocumentNumber),
		slog.String("order_id", receipt.ID))

	if s.notifier != nil {
		event := SubmittedEvent{
			Workflow:         wf.Name,
			OrderID:          receipt.ID,
			OwnerID:          user.UserID,
			DocumentNumber:   receipt.DocumentNumber,
			CounterpartyName: counterpartyName,
			ItemCount:        itemCount,
			GrandTotal:       receipt.GrandTotal,
			SubmittedAt:      time.Now().UTC(),
		}
		if err := s.notifier.OrderSubmitted(ctx, event); err != nil {
			s.logger.Warn("enqueue order submitted", slog.String("order_id", receipt.ID), slog.Any("error", err))
		}
	}
	return b, receipt, nil
}

// Recent lists the user's latest orders for wf.
func (s *Service) Recent(ctx context.Context, wf Workflow, user identity.Identity) ([]Summary, error) {
	return s.repo.ListRecent(ctx, wf, user.UserID, s.recentLimit)
}

// Products lists the store owner's catalog.
func (s *Service) Products(ctx context.Context, user identity.Identity) ([]Product, error) {
	return s.repo.Products(ctx, user.UserID)
}

func (s *Service) start(ctx context.Context, wf Workflow, user identity.Identity) *Builder {
	b := NewBuilder(wf, s.opts...)
	if s.profiles != nil {
		profile, err := s.profiles.Lookup(ctx, user.UserID, user.Role)
		if err != nil {
			s.logger.Warn("issuer profile lookup failed",
				slog.String("user_id", user.UserID),
				slog.Any("error", err))
			b.SetIssuer(user.Name)
		} else {
			b.SetIssuer(profile.DisplayName())
		}
	}
	if wf.RefreshAfterSubmit {
		s.refreshRecent(ctx, b, user)
	}
	return b
}

func (s *Service) refreshRecent(ctx context.Context, b *Builder, user identity.Identity) {
	recent, err := s.repo.ListRecent(ctx, b.wf, user.UserID, s.recentLimit)
	if err != nil {
		s.logger.Warn("refresh recent orders",
			slog.String("workflow", b.wf.Name),
			slog.Any("error", err))
		return
	}
	b.SetRecent(recent)
}

func (s *Service) observe(wf Workflow, outcome string, total float64) {
	if s.recorder != nil {
		s.recorder.ObserveOrderSubmit(wf.Name, outcome, total)
	}
}
