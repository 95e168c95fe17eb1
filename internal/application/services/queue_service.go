package services

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

// EnqueueInput describes a front-desk queue entry, optionally paid up front
type EnqueueInput struct {
	PatientID int64
	DoctorID  int64
	Priority  bool
	Note      string
	Payment   *PaymentInput
}

// QueueService drives attentions through EN_ESPERA -> ATENDIENDO -> FINALIZADO
type QueueService struct {
	attentions repositories.AttentionRepository
	records    repositories.ConsultationRecordRepository
	payments   repositories.PaymentRepository
	patients   repositories.PatientDirectory
	doctors    repositories.DoctorDirectory
	tx         repositories.Transactor
	ledger     *PaymentService
	events     providers.EventBus
	metrics    *observability.Metrics
	rules      Rules
	now        Clock
}

// NewQueueService creates a new queue service
func NewQueueService(
	attentions repositories.AttentionRepository,
	records repositories.ConsultationRecordRepository,
	payments repositories.PaymentRepository,
	patients repositories.PatientDirectory,
	doctors repositories.DoctorDirectory,
	tx repositories.Transactor,
	ledger *PaymentService,
	events providers.EventBus,
	rules Rules,
) *QueueService {
	return &QueueService{
		attentions: attentions,
		records:    records,
		payments:   payments,
		patients:   patients,
		doctors:    doctors,
		tx:         tx,
		ledger:     ledger,
		events:     events,
		rules:      rules,
		now:        systemClock,
	}
}

// SetClock replaces the time source
func (s *QueueService) SetClock(clock Clock) {
	s.now = clock
}

// SetMetrics enables queue transition counters
func (s *QueueService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Enqueue places a patient in a doctor's waiting room. When input carries a
// payment it is recorded in the same transaction.
func (s *QueueService) Enqueue(ctx context.Context, actor entities.ActingUser, input EnqueueInput) (*entities.Attention, error) {
	if !knownRole(actor) {
		return nil, apperrors.NewForbiddenError("role may not enqueue patients")
	}
	if input.Payment != nil {
		if err := authorizeLedger(actor); err != nil {
			return nil, err
		}
	}
	if input.PatientID <= 0 || input.DoctorID <= 0 {
		return nil, apperrors.NewValidationError("patient_id and doctor_id are required")
	}

	var attention *entities.Attention
	var payment *entities.Payment

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetPatient(ctx, input.PatientID); err != nil {
			return err
		}
		doctor, err := s.doctors.GetDoctor(ctx, input.DoctorID)
		if err != nil {
			return err
		}
		if !doctor.IsActive {
			return apperrors.NewValidationError(fmt.Sprintf("doctor %d is not active", doctor.ID))
		}

		now := s.now()
		attention = &entities.Attention{
			PatientID: input.PatientID,
			DoctorID:  input.DoctorID,
			State:     entities.AttentionStateWaiting,
			Priority:  input.Priority,
			EnteredAt: now,
			Note:      input.Note,
			CreatedAt: now,
		}
		if err := s.attentions.Create(ctx, attention); err != nil {
			return err
		}

		if input.Payment != nil {
			payment, err = s.ledger.create(ctx, input.PatientID, *input.Payment)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordQueueTransition(ctx, s.metrics, string(entities.AttentionStateWaiting))
	publishQueueEvent(ctx, s.events, entities.NewAttentionEvent(entities.QueueEventEnqueued, attention, attention.EnteredAt))
	if payment != nil {
		publishQueueEvent(ctx, s.events, entities.NewPaymentEvent(entities.QueueEventPaymentRecorded, payment, attention.EnteredAt))
	}

	return attention, nil
}

// ListWaiting returns the EN_ESPERA attentions, oldest entry first. Priority
// is returned as a flag and does not reorder the queue. Doctors only see
// their own queue.
func (s *QueueService) ListWaiting(ctx context.Context, actor entities.ActingUser, doctorID *int64) ([]*entities.Attention, error) {
	scope, err := s.doctorScope(actor, doctorID)
	if err != nil {
		return nil, err
	}
	return s.attentions.ListWaiting(ctx, scope)
}

// Get retrieves an attention visible to actor
func (s *QueueService) Get(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Attention, error) {
	if !knownRole(actor) {
		return nil, apperrors.NewForbiddenError("role may not read attentions")
	}

	attention, err := s.attentions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == entities.RoleDoctor && !actor.IsDoctor(attention.DoctorID) {
		return nil, apperrors.NewForbiddenError("attention belongs to another doctor")
	}
	return attention, nil
}

// ListByPatient returns a patient's attentions, newest first. Doctors only
// see the attentions assigned to them.
func (s *QueueService) ListByPatient(ctx context.Context, actor entities.ActingUser, patientID int64) ([]*entities.Attention, error) {
	if !knownRole(actor) {
		return nil, apperrors.NewForbiddenError("role may not read attentions")
	}
	if actor.Role == entities.RoleDoctor && !actor.ActsAsDoctor() {
		return nil, apperrors.NewForbiddenError("user has no doctor profile")
	}

	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	attentions, err := s.attentions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if !actor.ActsAsDoctor() {
		return attentions, nil
	}

	own := make([]*entities.Attention, 0, len(attentions))
	for _, attention := range attentions {
		if actor.IsDoctor(attention.DoctorID) {
			own = append(own, attention)
		}
	}
	return own, nil
}

// Call moves a waiting attention into consultation
func (s *QueueService) Call(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Attention, error) {
	var attention *entities.Attention

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		attention, err = s.attentions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeDoctorAction(actor, attention.DoctorID); err != nil {
			return err
		}
		if !attention.State.CanTransitionTo(entities.AttentionStateInConsultation) {
			return apperrors.NewConflictError(fmt.Sprintf("attention %d is %s, not %s", id, attention.State, entities.AttentionStateWaiting))
		}

		now := s.now()
		changed, err := s.attentions.TransitionState(ctx, id, entities.AttentionStateWaiting, entities.AttentionStateInConsultation, now)
		if err != nil {
			return err
		}
		if !changed {
			return apperrors.NewConflictError(fmt.Sprintf("attention %d was called by someone else", id))
		}

		attention.State = entities.AttentionStateInConsultation
		attention.ConsultationStartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordQueueTransition(ctx, s.metrics, string(attention.State))
	publishQueueEvent(ctx, s.events, entities.NewAttentionEvent(entities.QueueEventCalled, attention, *attention.ConsultationStartedAt))
	return attention, nil
}

// Cancel removes a non-finalized attention together with the unsettled
// payments heuristically matched to it. Front desk staff may only cancel
// attentions still waiting.
func (s *QueueService) Cancel(ctx context.Context, actor entities.ActingUser, id int64) error {
	var attention *entities.Attention
	var removedPayments int64

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		attention, err = s.attentions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if attention.IsFinalized() {
			return apperrors.NewConflictError(fmt.Sprintf("attention %d is finalized and cannot be cancelled", id))
		}

		allowed, err := cancellableStates(actor, attention)
		if err != nil {
			return err
		}
		if !slices.Contains(allowed, attention.State) {
			return apperrors.NewConflictError(fmt.Sprintf("attention %d is %s and can only be cancelled by its doctor", id, attention.State))
		}

		associated, err := s.associatedPayments(ctx, attention)
		if err != nil {
			return err
		}
		removedPayments, err = s.payments.DeleteUnsettled(ctx, associated)
		if err != nil {
			return err
		}

		deleted, err := s.attentions.Delete(ctx, id, allowed)
		if err != nil {
			return err
		}
		if !deleted {
			return apperrors.NewConflictError(fmt.Sprintf("attention %d changed state while cancelling", id))
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("attention_id", id).
		Int64("payments_removed", removedPayments).
		Msg("Attention cancelled")

	publishQueueEvent(ctx, s.events, entities.NewAttentionEvent(entities.QueueEventCancelled, attention, s.now()))
	return nil
}

// associatedPayments runs the matching over the patient's whole unsettled
// ledger and returns the payments claimed by attention. Payments claimed by
// another of the patient's attentions are left alone.
func (s *QueueService) associatedPayments(ctx context.Context, attention *entities.Attention) ([]int64, error) {
	attentions, err := s.attentions.ListByPatient(ctx, attention.PatientID)
	if err != nil {
		return nil, err
	}
	sort.Slice(attentions, func(i, j int) bool { return attentions[i].ID < attentions[j].ID })

	unsettled, err := s.payments.List(ctx, repositories.PaymentFilter{PatientID: &attention.PatientID, Settled: boolPtr(false)})
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, attributed := range Reconcile(attentions, unsettled, nil, s.rules.MatchWindow) {
		if attributed.AttentionID != nil && *attributed.AttentionID == attention.ID {
			ids = append(ids, attributed.Payment.ID)
		}
	}
	return ids, nil
}

// StartReconsultation opens a new attention directly in consultation for the
// patient and doctor of a record that can no longer be edited
func (s *QueueService) StartReconsultation(ctx context.Context, actor entities.ActingUser, priorRecordID int64, note string) (*entities.Attention, error) {
	record, err := s.records.GetByID(ctx, priorRecordID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDoctorAction(actor, record.DoctorID); err != nil {
		return nil, err
	}

	now := s.now()
	if record.EditableAt(now, s.rules.EditWindow) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("record %d is still editable; update it instead", priorRecordID))
	}

	attention := &entities.Attention{
		PatientID:             record.PatientID,
		DoctorID:              record.DoctorID,
		State:                 entities.AttentionStateInConsultation,
		EnteredAt:             now,
		ConsultationStartedAt: &now,
		Note:                  note,
		CreatedAt:             now,
	}
	if err := s.attentions.Create(ctx, attention); err != nil {
		return nil, err
	}

	observability.RecordQueueTransition(ctx, s.metrics, string(attention.State))
	publishQueueEvent(ctx, s.events, entities.NewAttentionEvent(entities.QueueEventReconsultation, attention, now))
	return attention, nil
}

func (s *QueueService) doctorScope(actor entities.ActingUser, requested *int64) (*int64, error) {
	switch {
	case actor.IsAdmin(), actor.IsReception():
		return requested, nil
	case actor.ActsAsDoctor():
		if requested != nil && *requested != *actor.DoctorID {
			return nil, apperrors.NewForbiddenError("doctors can only view their own queue")
		}
		own := *actor.DoctorID
		return &own, nil
	}
	return nil, apperrors.NewForbiddenError("role may not view the queue")
}

// cancellableStates returns the states actor may cancel attention from
func cancellableStates(actor entities.ActingUser, attention *entities.Attention) ([]entities.AttentionState, error) {
	open := []entities.AttentionState{entities.AttentionStateWaiting, entities.AttentionStateInConsultation}

	switch {
	case actor.IsAdmin():
		return open, nil
	case actor.IsReception():
		return []entities.AttentionState{entities.AttentionStateWaiting}, nil
	case actor.Role == entities.RoleDoctor:
		if !actor.IsDoctor(attention.DoctorID) {
			return nil, apperrors.NewForbiddenError("attention belongs to another doctor")
		}
		return open, nil
	}
	return nil, apperrors.NewForbiddenError("role may not cancel attentions")
}
