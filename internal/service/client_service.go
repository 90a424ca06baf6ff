package service

import (
	"context"
	"strings"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"
	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ClientService manages client records outside of billing actions.
type ClientService struct {
	store       port.ClientStore
	audit       auditor
	countryCode string
	logger      *zap.Logger
}

// NewClientService creates the client service. countryCode is prefixed to
// local phone numbers.
func NewClientService(store port.ClientStore, messages port.MessageStore, metrics *observability.Metrics, countryCode string, logger *zap.Logger) *ClientService {
	return &ClientService{
		store:       store,
		audit:       auditor{messages: messages, metrics: metrics, logger: logger},
		countryCode: countryCode,
		logger:      logger,
	}
}

// ListClients returns the clients matching filter.
func (s *ClientService) ListClients(ctx context.Context, filter domain.ClientFilter) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "ClientService.ListClients")
	defer span.End()

	if filter.Status != "" && !filter.Status.Known() {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown status " + string(filter.Status)}
	}
	if filter.DueBefore != "" {
		if _, err := domain.ParseDate(filter.DueBefore); err != nil {
			return nil, &domain.ErrValidation{Field: "due_before", Message: "must be YYYY-MM-DD"}
		}
	}
	return s.store.ListClients(ctx, filter)
}

// GetClient returns one client.
func (s *ClientService) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "ClientService.GetClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	return s.store.GetClient(ctx, id)
}

// CreateClient validates and stores a new client.
func (s *ClientService) CreateClient(ctx context.Context, in domain.ClientInput) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "ClientService.CreateClient")
	defer span.End()

	c, err := s.newClient(in)
	if err != nil {
		return nil, err
	}
	created, err := s.store.InsertClient(ctx, c)
	if err != nil {
		return nil, err
	}

	s.logger.Info("client created",
		zap.String("client_id", created.ID),
		zap.String("status", string(created.Status)),
	)
	s.audit.record(ctx, created.ID, "Cliente cadastrado: "+created.Name)
	return created, nil
}

// ImportClients creates clients row by row. A failing row is reported and
// does not stop the others. Rows are numbered from 1.
func (s *ClientService) ImportClients(ctx context.Context, rows []domain.ClientInput) ([]domain.ImportResult, error) {
	ctx, span := tracer.Start(ctx, "ClientService.ImportClients")
	defer span.End()
	span.SetAttributes(attribute.Int("import.rows", len(rows)))

	if len(rows) == 0 {
		return nil, &domain.ErrValidation{Field: "clients", Message: "no rows to import"}
	}

	results := make([]domain.ImportResult, 0, len(rows))
	created := 0
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := domain.ImportResult{Row: i + 1}
		c, err := s.CreateClient(ctx, row)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Client = c
			created++
		}
		results = append(results, res)
	}

	s.logger.Info("client import finished",
		zap.Int("rows", len(rows)),
		zap.Int("created", created),
		zap.Int("failed", len(rows)-created),
	)
	return results, nil
}

// UpdateClient applies an admin edit. Status and debt are not editable here.
func (s *ClientService) UpdateClient(ctx context.Context, id string, edit domain.ClientEdit) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "ClientService.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	var u domain.ClientUpdate
	if edit.Name != nil {
		name := strings.TrimSpace(*edit.Name)
		if name == "" {
			return nil, &domain.ErrValidation{Field: "name", Message: "required"}
		}
		u.Name = &name
	}
	if edit.Phone != nil {
		phone, err := domain.NormalizePhone(*edit.Phone, s.countryCode)
		if err != nil {
			return nil, err
		}
		u.Phone = &phone
	}
	if edit.AmountPaid != nil {
		if *edit.AmountPaid < 0 {
			return nil, &domain.ErrValidation{Field: "amount_paid", Message: "must be >= 0"}
		}
		u.AmountPaid = edit.AmountPaid
	}
	if edit.DueDate != nil {
		due, err := domain.ParseDate(*edit.DueDate)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "due_date", Message: "must be YYYY-MM-DD"}
		}
		formatted := domain.FormatDate(due)
		u.DueDate = &formatted
	}
	if u.IsEmpty() {
		return nil, &domain.ErrValidation{Field: "body", Message: "nothing to update"}
	}

	updated, err := s.store.UpdateClient(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("client edited", zap.String("client_id", id))
	s.audit.record(ctx, id, "Dados do cliente alterados")
	return updated, nil
}

// DeleteClient removes a client permanently. Its message log is kept.
func (s *ClientService) DeleteClient(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "ClientService.DeleteClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	if err := s.store.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.logger.Info("client deleted", zap.String("client_id", id))
	s.audit.record(ctx, id, "Cliente excluído")
	return nil
}

func (s *ClientService) newClient(in domain.ClientInput) (*domain.Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	phone, err := domain.NormalizePhone(in.Phone, s.countryCode)
	if err != nil {
		return nil, err
	}
	if in.AmountPaid < 0 {
		return nil, &domain.ErrValidation{Field: "amount_paid", Message: "must be >= 0"}
	}
	if in.Debt < 0 {
		return nil, &domain.ErrValidation{Field: "debt", Message: "must be >= 0"}
	}
	due, err := domain.ParseDate(in.DueDate)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "due_date", Message: "must be YYYY-MM-DD"}
	}

	status := domain.StatusPending
	if in.Status != "" {
		parsed, err := domain.ParseClientStatus(string(in.Status))
		if err != nil || parsed == domain.StatusOverdue {
			return nil, &domain.ErrValidation{Field: "status", Message: "must be pending, paid or suspended"}
		}
		status = parsed
	}

	return &domain.Client{
		Name:       name,
		Phone:      phone,
		AmountPaid: in.AmountPaid,
		DueDate:    domain.FormatDate(due),
		Status:     status,
		Debt:       in.Debt,
	}, nil
}
