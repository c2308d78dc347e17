package services

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/metrics"
	"dispatch-coordination-service/internal/platform/obs"
	"dispatch-coordination-service/internal/ports"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPushBatchSize = 50
	pushConcurrency      = 4
	pushTimeout          = 30 * time.Second
)

type CreateBlastRequest struct {
	LoadID      string
	CreatedBy   string
	CourierIDs  []string
	Priority    domain.BlastPriority
	RadiusMiles float64
	// TTL defaults to the service's configured TTL when zero.
	TTL time.Duration
}

type BlastServiceConfig struct {
	DefaultTTL    time.Duration
	PushBatchSize int
	// AlertsChanged runs after the sweep raises unassigned alerts.
	AlertsChanged func(ctx context.Context)
}

// BlastService runs the broadcast offer protocol on top of the blast store.
// Notifications go out after the broadcast commits and never affect its outcome.
type BlastService struct {
	repo    ports.BlastRepository
	push    ports.PushSender
	clock   ports.Clock
	metrics *metrics.Collector
	cfg     BlastServiceConfig

	inflight sync.WaitGroup
}

func NewBlastService(
	repo ports.BlastRepository,
	push ports.PushSender,
	clock ports.Clock,
	m *metrics.Collector,
	cfg BlastServiceConfig,
) *BlastService {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = domain.DefaultBlastTTL
	}
	if cfg.PushBatchSize <= 0 {
		cfg.PushBatchSize = defaultPushBatchSize
	}
	return &BlastService{repo: repo, push: push, clock: clock, metrics: m, cfg: cfg}
}

func (s *BlastService) CreateBlast(ctx context.Context, req CreateBlastRequest) (_ *domain.BlastDetail, err error) {
	defer obs.Time(ctx, "blasts.CreateBlast")(&err)

	loadID := strings.TrimSpace(req.LoadID)
	if loadID == "" {
		return nil, domain.Validation("load id must not be empty")
	}

	couriers := dedupeIDs(req.CourierIDs)
	if len(couriers) == 0 {
		return nil, domain.ErrNoCouriers
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.Valid() {
		return nil, domain.Validation("unknown priority %q", req.Priority)
	}
	if req.RadiusMiles < 0 {
		return nil, domain.Validation("radius must not be negative")
	}
	if req.TTL < 0 {
		return nil, domain.Validation("ttl must not be negative")
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = s.cfg.DefaultTTL
	}

	now := s.clock.Now()
	blast := &domain.Blast{
		ID:            uuid.NewString(),
		LoadID:        loadID,
		CreatedBy:     req.CreatedBy,
		Priority:      priority,
		RadiusMiles:   req.RadiusMiles,
		Status:        domain.BlastActive,
		ExpiresAt:     now.Add(ttl),
		NotifiedCount: len(couriers),
		CreatedAt:     now,
	}

	detail, err := s.repo.CreateBlast(ctx, blast, couriers)
	if err != nil {
		return nil, err
	}
	s.metrics.BlastCreated()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		s.notifyCouriers(pushCtx, blast, couriers)
	}()

	return detail, nil
}

// notifyCouriers fans the offer out in batches. Failures are logged and counted.
func (s *BlastService) notifyCouriers(ctx context.Context, blast *domain.Blast, couriers []string) {
	log := obs.Logger(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)

	for start := 0; start < len(couriers); start += s.cfg.PushBatchSize {
		end := min(start+s.cfg.PushBatchSize, len(couriers))
		batch := couriers[start:end]

		g.Go(func() error {
			err := s.push.Send(gctx, ports.PushMessage{
				RecipientIDs: batch,
				Title:        offerTitle(blast.Priority),
				Body:         fmt.Sprintf("Load %s is available. Offer closes at %s.", blast.LoadID, blast.ExpiresAt.Format("15:04")),
				Metadata: map[string]string{
					"blast_id": blast.ID,
					"load_id":  blast.LoadID,
					"priority": string(blast.Priority),
				},
			})
			if err != nil {
				s.metrics.PushFailed()
				log.Warn().Err(err).Str("blast_id", blast.ID).Int("recipients", len(batch)).Msg("blast push failed")
			}
			return nil
		})
	}

	_ = g.Wait()
}

// Wait blocks until background notifications have finished.
func (s *BlastService) Wait() {
	s.inflight.Wait()
}

// GetBlast returns the blast with its responses. An active blast past its expiry
// is reported as expired; the stored row is left for the sweep.
func (s *BlastService) GetBlast(ctx context.Context, id string) (*domain.BlastDetail, error) {
	detail, err := s.repo.GetBlast(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.Blast.IsStale(s.clock.Now()) {
		detail.Blast.Status = domain.BlastExpired
	}
	return detail, nil
}

func (s *BlastService) MarkViewed(ctx context.Context, blastID, courierID string) (*domain.Response, error) {
	return s.repo.MarkViewed(ctx, blastID, courierID, s.clock.Now())
}

// ExpressInterest signals availability only. The load is granted by ConfirmAssignment.
func (s *BlastService) ExpressInterest(
	ctx context.Context,
	blastID string,
	courierID string,
	loc *domain.Coordinates,
) (*domain.Response, error) {
	return s.repo.ExpressInterest(ctx, blastID, courierID, loc, s.clock.Now())
}

// ConfirmAssignment grants the load to courierID. Losing the race returns
// domain.ErrAlreadyAssigned and leaves the store untouched; callers should not retry.
func (s *BlastService) ConfirmAssignment(
	ctx context.Context,
	blastID string,
	courierID string,
) (_ *ports.ConfirmOutcome, err error) {
	out, err := s.repo.ConfirmAssignment(ctx, blastID, courierID, s.clock.Now())
	switch {
	case err == nil:
		s.metrics.Confirmation(metrics.OutcomeConfirmed)
		obs.Logger(ctx).Info().
			Str("blast_id", blastID).
			Str("courier_id", courierID).
			Str("load_id", out.Load.ID).
			Msg("blast confirmed")
		return out, nil
	case errors.Is(err, domain.ErrAlreadyAssigned):
		s.metrics.Confirmation(metrics.OutcomeAlreadyAssigned)
		obs.Logger(ctx).Info().Str("blast_id", blastID).Str("courier_id", courierID).Msg("confirmation lost race")
		return nil, err
	default:
		s.metrics.Confirmation(metrics.OutcomeRejected)
		return nil, err
	}
}

func (s *BlastService) DeclineBlast(ctx context.Context, blastID, courierID, reason string) (*domain.Response, error) {
	resp, changed, err := s.repo.DeclineBlast(ctx, blastID, courierID, strings.TrimSpace(reason), s.clock.Now())
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.Declined()
	}
	return resp, nil
}

func (s *BlastService) CancelBlast(ctx context.Context, blastID string) (*domain.Blast, error) {
	return s.repo.CancelBlast(ctx, blastID)
}

// ExpireStale closes blasts past their expiry and raises an unassigned alert for each.
func (s *BlastService) ExpireStale(ctx context.Context) (_ []ports.SweepOutcome, err error) {
	defer obs.Time(ctx, "blasts.ExpireStale")(&err)

	out, err := s.repo.ExpireStale(ctx, s.clock.Now())
	if n := len(out); n > 0 {
		s.metrics.BlastsExpired(n)
		obs.Logger(ctx).Info().Int("count", n).Msg("stale blasts expired")
		if s.cfg.AlertsChanged != nil {
			s.cfg.AlertsChanged(ctx)
		}
	}
	return out, err
}

// Analytics aggregates blasts created at or after since. Read-only.
func (s *BlastService) Analytics(ctx context.Context, since time.Time) (domain.BlastAnalytics, error) {
	blasts, responses, err := s.repo.ListBlastHistory(ctx, since)
	if err != nil {
		return domain.BlastAnalytics{}, fmt.Errorf("blast analytics: %w", err)
	}
	return domain.ComputeBlastAnalytics(blasts, responses), nil
}

func offerTitle(p domain.BlastPriority) string {
	switch p {
	case domain.PriorityUrgent:
		return "URGENT load available"
	case domain.PriorityHigh:
		return "High priority load available"
	default:
		return "New load available"
	}
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
