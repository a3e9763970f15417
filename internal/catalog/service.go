package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/logging"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MissingProductName is shown for order lines whose product can no longer
// be resolved.
const MissingProductName = "Product Not Found"

type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register validates the draft and stores it under a fresh id.
func (s *Service) Register(ctx context.Context, d Draft) (Product, error) {
	d, err := d.Normalize()
	if err != nil {
		return Product{}, err
	}

	now := s.now()
	p := Product{
		ID:        uuid.NewString(),
		Name:      d.Name,
		Price:     d.Price,
		Sizes:     d.Sizes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		logging.Error(ctx, s.logger, "create product failed", zap.String("name", p.Name), zap.Error(err))
		return Product{}, fmt.Errorf("create product: %w", err)
	}

	logging.Info(ctx, s.logger, "product registered",
		zap.String("product_id", p.ID),
		zap.Int("sizes", len(p.Sizes)),
	)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, err
		}
		logging.Error(ctx, s.logger, "get product failed", zap.String("product_id", id), zap.Error(err))
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f Filter, req page.Request) ([]Product, error) {
	list, err := s.store.List(ctx, f, req)
	if err != nil {
		logging.Error(ctx, s.logger, "list products failed",
			zap.String("name", f.Name),
			zap.String("size", f.Size),
			zap.Int("limit", req.Limit),
			zap.Int("offset", req.Offset),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list products: %w", err)
	}
	return list, nil
}

// Names maps product ids to display names. Ids that no longer resolve get
// MissingProductName.
func (s *Service) Names(ctx context.Context, ids []string) (map[string]string, error) {
	products, err := s.store.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = MissingProductName
	}
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
