package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

// RecordService writes consultation records and finalizes their attentions
type RecordService struct {
	records    repositories.ConsultationRecordRepository
	attentions repositories.AttentionRepository
	patients   repositories.PatientDirectory
	tx         repositories.Transactor
	events     providers.EventBus
	metrics    *observability.Metrics
	rules      Rules
	now        Clock
}

// NewRecordService creates a new record service
func NewRecordService(
	records repositories.ConsultationRecordRepository,
	attentions repositories.AttentionRepository,
	patients repositories.PatientDirectory,
	tx repositories.Transactor,
	events providers.EventBus,
	rules Rules,
) *RecordService {
	return &RecordService{
		records:    records,
		attentions: attentions,
		patients:   patients,
		tx:         tx,
		events:     events,
		rules:      rules,
		now:        systemClock,
	}
}

// SetClock replaces the time source
func (s *RecordService) SetClock(clock Clock) {
	s.now = clock
}

// SetMetrics enables queue transition counters
func (s *RecordService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// CreateRecord stores the clinical note of an attention in consultation and
// finalizes the attention in the same transaction
func (s *RecordService) CreateRecord(ctx context.Context, actor entities.ActingUser, attentionID int64, content string) (*entities.ConsultationRecord, error) {
	if !actor.IsAdmin() && actor.Role != entities.RoleDoctor {
		return nil, apperrors.NewForbiddenError("only doctors write consultation records")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content is required")
	}

	var record *entities.ConsultationRecord
	var attention *entities.Attention

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		attention, err = s.attentions.GetByID(ctx, attentionID)
		if err != nil {
			return err
		}
		if !attention.State.CanTransitionTo(entities.AttentionStateFinalized) {
			return apperrors.NewConflictError(fmt.Sprintf("attention %d is %s, not %s", attentionID, attention.State, entities.AttentionStateInConsultation))
		}
		if !actor.IsAdmin() && !actor.IsDoctor(attention.DoctorID) {
			return apperrors.NewConflictError(fmt.Sprintf("attention %d is assigned to another doctor", attentionID))
		}

		now := s.now()
		record = &entities.ConsultationRecord{
			AttentionID: attention.ID,
			PatientID:   attention.PatientID,
			DoctorID:    attention.DoctorID,
			Content:     content,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.records.Create(ctx, record); err != nil {
			return err
		}

		return s.finalize(ctx, attention, now)
	})
	if err != nil {
		return nil, err
	}

	observability.RecordQueueTransition(ctx, s.metrics, string(attention.State))
	publishQueueEvent(ctx, s.events, entities.NewAttentionEvent(entities.QueueEventFinalized, attention, record.CreatedAt))
	return record, nil
}

// finalize closes an attention in consultation. It is only reachable
// through CreateRecord.
func (s *RecordService) finalize(ctx context.Context, attention *entities.Attention, now time.Time) error {
	changed, err := s.attentions.TransitionState(ctx, attention.ID, entities.AttentionStateInConsultation, entities.AttentionStateFinalized, now)
	if err != nil {
		return err
	}
	if !changed {
		return apperrors.NewConflictError(fmt.Sprintf("attention %d left consultation before the record was saved", attention.ID))
	}
	attention.State = entities.AttentionStateFinalized
	return nil
}

// UpdateRecord amends a record. Only the author may do so, and only while
// the edit window is open; afterwards a new attention must be started.
func (s *RecordService) UpdateRecord(ctx context.Context, actor entities.ActingUser, recordID int64, content string) (*entities.ConsultationRecord, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content is required")
	}

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctor(record.DoctorID) {
		return nil, apperrors.NewForbiddenError("only the authoring doctor may edit this record")
	}

	now := s.now()
	if !record.EditableAt(now, s.rules.EditWindow) {
		return nil, apperrors.NewEditWindowExpiredError(fmt.Sprintf(
			"record %d can no longer be edited; start a re-consultation instead", recordID))
	}

	if err := s.records.UpdateContent(ctx, recordID, content, now); err != nil {
		return nil, err
	}

	record.Content = content
	record.UpdatedAt = now
	return record, nil
}

// GetRecord retrieves a record by ID
func (s *RecordService) GetRecord(ctx context.Context, actor entities.ActingUser, id int64) (*entities.ConsultationRecord, error) {
	if err := authorizeClinicalRead(actor); err != nil {
		return nil, err
	}
	return s.records.GetByID(ctx, id)
}

// GetRecordByAttention retrieves the record of an attention
func (s *RecordService) GetRecordByAttention(ctx context.Context, actor entities.ActingUser, attentionID int64) (*entities.ConsultationRecord, error) {
	if err := authorizeClinicalRead(actor); err != nil {
		return nil, err
	}
	return s.records.GetByAttentionID(ctx, attentionID)
}

// ListPatientHistory returns a patient's clinical history, newest first
func (s *RecordService) ListPatientHistory(ctx context.Context, actor entities.ActingUser, patientID int64) ([]*entities.ConsultationRecord, error) {
	if err := authorizeClinicalRead(actor); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.records.ListByPatient(ctx, patientID)
}

func authorizeClinicalRead(actor entities.ActingUser) error {
	if actor.IsAdmin() || actor.ActsAsDoctor() {
		return nil
	}
	return apperrors.NewForbiddenError("clinical records are restricted to doctors")
}
