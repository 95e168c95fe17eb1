package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/clinicflow/internal/api/middleware"
	"github.com/zatekoja/clinicflow/internal/application/services"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
)

var (
	doctorID      = int64(10)
	adminUser     = entities.ActingUser{UserID: 1, Role: entities.RoleAdmin}
	receptionUser = entities.ActingUser{UserID: 2, Role: entities.RoleReception}
	doctorUser    = entities.ActingUser{UserID: 110, Role: entities.RoleDoctor, DoctorID: &doctorID}
)

func withActor(req *http.Request, user entities.ActingUser) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), user))
}

func jsonBody(v interface{}) io.Reader {
	body, _ := json.Marshal(v)
	return bytes.NewReader(body)
}

// MockQueueService mocks the queue service
type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) Enqueue(ctx context.Context, actor entities.ActingUser, input services.EnqueueInput) (*entities.Attention, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Attention), args.Error(1)
}

func (m *MockQueueService) ListWaiting(ctx context.Context, actor entities.ActingUser, doctorID *int64) ([]*entities.Attention, error) {
	args := m.Called(ctx, actor, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Attention), args.Error(1)
}

func (m *MockQueueService) Get(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Attention, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Attention), args.Error(1)
}

func (m *MockQueueService) ListByPatient(ctx context.Context, actor entities.ActingUser, patientID int64) ([]*entities.Attention, error) {
	args := m.Called(ctx, actor, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Attention), args.Error(1)
}

func (m *MockQueueService) Call(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Attention, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Attention), args.Error(1)
}

func (m *MockQueueService) Cancel(ctx context.Context, actor entities.ActingUser, id int64) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *MockQueueService) StartReconsultation(ctx context.Context, actor entities.ActingUser, priorRecordID int64, note string) (*entities.Attention, error) {
	args := m.Called(ctx, actor, priorRecordID, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Attention), args.Error(1)
}

// MockRecordService mocks the consultation record service
type MockRecordService struct {
	mock.Mock
}

func (m *MockRecordService) CreateRecord(ctx context.Context, actor entities.ActingUser, attentionID int64, content string) (*entities.ConsultationRecord, error) {
	args := m.Called(ctx, actor, attentionID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ConsultationRecord), args.Error(1)
}

func (m *MockRecordService) UpdateRecord(ctx context.Context, actor entities.ActingUser, recordID int64, content string) (*entities.ConsultationRecord, error) {
	args := m.Called(ctx, actor, recordID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ConsultationRecord), args.Error(1)
}

func (m *MockRecordService) GetRecord(ctx context.Context, actor entities.ActingUser, id int64) (*entities.ConsultationRecord, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ConsultationRecord), args.Error(1)
}

func (m *MockRecordService) GetRecordByAttention(ctx context.Context, actor entities.ActingUser, attentionID int64) (*entities.ConsultationRecord, error) {
	args := m.Called(ctx, actor, attentionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ConsultationRecord), args.Error(1)
}

func (m *MockRecordService) ListPatientHistory(ctx context.Context, actor entities.ActingUser, patientID int64) ([]*entities.ConsultationRecord, error) {
	args := m.Called(ctx, actor, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ConsultationRecord), args.Error(1)
}

// MockPaymentService mocks the payment ledger service
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) RecordPayment(ctx context.Context, actor entities.ActingUser, input services.RecordPaymentInput) (*entities.Payment, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payment), args.Error(1)
}

func (m *MockPaymentService) UpdatePayment(ctx context.Context, actor entities.ActingUser, id int64, input services.PaymentInput) (*entities.Payment, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payment), args.Error(1)
}

func (m *MockPaymentService) DeletePayment(ctx context.Context, actor entities.ActingUser, id int64) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Payment, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payment), args.Error(1)
}

func (m *MockPaymentService) ListPayments(ctx context.Context, actor entities.ActingUser, filter repositories.PaymentFilter) ([]*entities.Payment, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Payment), args.Error(1)
}

func (m *MockPaymentService) SettlePayment(ctx context.Context, actor entities.ActingUser, id, recordID int64) (*entities.Payment, error) {
	args := m.Called(ctx, actor, id, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payment), args.Error(1)
}

// MockReportService mocks the report service
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) DailyReport(ctx context.Context, actor entities.ActingUser) (*entities.ReportSummary, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReportSummary), args.Error(1)
}

func (m *MockReportService) MonthlyReport(ctx context.Context, actor entities.ActingUser, year int, month time.Month) (*entities.ReportSummary, error) {
	args := m.Called(ctx, actor, year, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReportSummary), args.Error(1)
}

func (m *MockReportService) YearlyReport(ctx context.Context, actor entities.ActingUser, year int) (*entities.ReportSummary, error) {
	args := m.Called(ctx, actor, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReportSummary), args.Error(1)
}

// MockPatientDirectory mocks the patient registry
type MockPatientDirectory struct {
	mock.Mock
}

func (m *MockPatientDirectory) GetPatient(ctx context.Context, id int64) (*entities.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockPatientDirectory) FindByNationalID(ctx context.Context, nationalID string) (*entities.Patient, error) {
	args := m.Called(ctx, nationalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockPatientDirectory) UpsertPatient(ctx context.Context, patient *entities.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}
