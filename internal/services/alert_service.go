package services

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/metrics"
	"dispatch-coordination-service/internal/platform/obs"
	"dispatch-coordination-service/internal/ports"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type RaiseAlertRequest struct {
	LoadID    string
	CourierID string
	Type      domain.AlertType
	Severity  domain.Severity
	Title     string
	Message   string
}

// AlertService is the alert store front plus the evaluation tick. The tick runs
// on the host's schedule and again after every write to the alert set.
type AlertService struct {
	repo          ports.AlertRepository
	engine        *AlertEngine
	push          ports.PushSender
	clock         ports.Clock
	metrics       *metrics.Collector
	supervisorIDs []string

	// tickMu keeps a write-triggered evaluation from interleaving with a scheduled one.
	tickMu    sync.Mutex
	onEvaluate func(context.Context, *Evaluation)
}

func NewAlertService(
	repo ports.AlertRepository,
	engine *AlertEngine,
	push ports.PushSender,
	clock ports.Clock,
	m *metrics.Collector,
	supervisorIDs []string,
) *AlertService {
	return &AlertService{
		repo:          repo,
		engine:        engine,
		push:          push,
		clock:         clock,
		metrics:       m,
		supervisorIDs: supervisorIDs,
	}
}

func (s *AlertService) RaiseAlert(ctx context.Context, req RaiseAlertRequest) (_ *domain.Alert, err error) {
	defer obs.Time(ctx, "alerts.RaiseAlert")(&err)

	if !req.Type.Valid() {
		return nil, domain.Validation("unknown alert type %q", req.Type)
	}
	switch req.Severity {
	case "":
		req.Severity = domain.SeverityInfo
	case domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical:
	default:
		return nil, domain.Validation("severity %q cannot be stored", req.Severity)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.Validation("alert title must not be empty")
	}

	alert := &domain.Alert{
		ID:        uuid.NewString(),
		LoadID:    req.LoadID,
		CourierID: req.CourierID,
		Type:      req.Type,
		Severity:  req.Severity,
		Title:     req.Title,
		Message:   req.Message,
		Status:    domain.AlertActive,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("raise alert: %w", err)
	}
	s.Reevaluate(ctx)
	return alert, nil
}

// ListToday returns today's alerts with derived severity and age.
func (s *AlertService) ListToday(ctx context.Context) ([]EvaluatedAlert, error) {
	now := s.clock.Now()
	alerts, err := s.repo.ListAlertsSince(ctx, domain.StartOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("list today's alerts: %w", err)
	}
	return EnrichAlerts(alerts, now), nil
}

// Acknowledge is idempotent; acknowledging a closed alert changes nothing.
func (s *AlertService) Acknowledge(ctx context.Context, id string) error {
	n, err := s.repo.AcknowledgeAlerts(ctx, []string{id}, s.clock.Now())
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	if n == 0 {
		_, err := s.repo.GetAlert(ctx, id)
		return err
	}
	s.Reevaluate(ctx)
	return nil
}

func (s *AlertService) Resolve(ctx context.Context, id string) error {
	if err := s.repo.ResolveAlert(ctx, id, s.clock.Now()); err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	s.Reevaluate(ctx)
	return nil
}

// DismissAll acknowledges exactly the alerts the operator was looking at.
// The ids come from the caller's loaded set; no fresh query is issued, so alerts
// raised since that load stay active.
func (s *AlertService) DismissAll(ctx context.Context, ids []string) (int, error) {
	n, err := s.repo.AcknowledgeAlerts(ctx, ids, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("dismiss alerts: %w", err)
	}
	if n > 0 {
		s.Reevaluate(ctx)
	}
	return n, nil
}

// OnEvaluate registers fn to receive every evaluation, scheduled or
// write-triggered. Call it before the service is shared.
func (s *AlertService) OnEvaluate(fn func(context.Context, *Evaluation)) {
	s.onEvaluate = fn
}

// Reevaluate runs one extra tick after the alert set changed. Errors are logged;
// the scheduled tick picks up anything missed.
func (s *AlertService) Reevaluate(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil {
		obs.Logger(ctx).Warn().Err(err).Msg("alert re-evaluation failed")
	}
}

// Tick runs one evaluation over today's alerts and sends supervisor pings for
// first-time auto_ping crossings. Push failures are logged, never returned.
func (s *AlertService) Tick(ctx context.Context) (_ *Evaluation, err error) {
	defer obs.Time(ctx, "alerts.Tick")(&err)

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.clock.Now()
	alerts, err := s.repo.ListAlertsSince(ctx, domain.StartOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("alert tick: %w", err)
	}

	ev := s.engine.Evaluate(ctx, alerts, now)

	for _, a := range ev.AutoPinged {
		s.metrics.AutoPinged()
		s.notifySupervisors(ctx, a)
	}

	if n := len(ev.NewAlerts); n > 0 {
		s.metrics.NewAlerts(n)
		obs.Logger(ctx).Info().Int("count", n).Msgf("%d new alerts", n)
	}

	if s.onEvaluate != nil {
		s.onEvaluate(ctx, ev)
	}
	return ev, nil
}

func (s *AlertService) notifySupervisors(ctx context.Context, a EvaluatedAlert) {
	log := obs.Logger(ctx)
	if len(s.supervisorIDs) == 0 {
		log.Warn().Str("alert_id", a.ID).Msg("auto_ping reached but no supervisors configured")
		return
	}

	err := s.push.Send(ctx, ports.PushMessage{
		RecipientIDs: s.supervisorIDs,
		Title:        "Alert unattended: " + a.Title,
		Body:         fmt.Sprintf("%s has been open for %d minutes", a.Title, a.AgeMinutes),
		Metadata: map[string]string{
			"alert_id":   a.ID,
			"alert_type": string(a.Type),
			"load_id":    a.LoadID,
		},
	})
	if err != nil {
		s.metrics.PushFailed()
		log.Warn().Err(err).Str("alert_id", a.ID).Msg("supervisor ping failed")
		return
	}
	log.Info().Str("alert_id", a.ID).Int("age_min", a.AgeMinutes).Msg("supervisor pinged")
}
