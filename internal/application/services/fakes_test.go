package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

// memoryStore is an in-memory implementation of every repository the
// services use. WithinTx restores the previous state when fn fails.
type memoryStore struct {
	mu         sync.Mutex
	attentions map[int64]entities.Attention
	records    map[int64]entities.ConsultationRecord
	payments   map[int64]entities.Payment
	patients   map[int64]entities.Patient
	doctors    map[int64]entities.Doctor
	nextID     int64
	txDepth    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		attentions: make(map[int64]entities.Attention),
		records:    make(map[int64]entities.ConsultationRecord),
		payments:   make(map[int64]entities.Payment),
		patients:   make(map[int64]entities.Patient),
		doctors:    make(map[int64]entities.Doctor),
	}
}

func (s *memoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryStore) addPatient(id int64, name string) {
	s.patients[id] = entities.Patient{ID: id, NationalID: fmt.Sprintf("DNI-%d", id), FullName: name}
}

func (s *memoryStore) addDoctor(id int64, name, specialty string) {
	s.doctors[id] = entities.Doctor{ID: id, UserID: 100 + id, FullName: name, Specialty: specialty, IsActive: true}
}

// Transactor

func (s *memoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.restore(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

type storeSnapshot struct {
	attentions map[int64]entities.Attention
	records    map[int64]entities.ConsultationRecord
	payments   map[int64]entities.Payment
}

func (s *memoryStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		attentions: make(map[int64]entities.Attention, len(s.attentions)),
		records:    make(map[int64]entities.ConsultationRecord, len(s.records)),
		payments:   make(map[int64]entities.Payment, len(s.payments)),
	}
	for k, v := range s.attentions {
		snap.attentions[k] = v
	}
	for k, v := range s.records {
		snap.records[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	return snap
}

func (s *memoryStore) restore(snap storeSnapshot) {
	s.attentions = snap.attentions
	s.records = snap.records
	s.payments = snap.payments
}

// AttentionRepository

type attentionRepo struct{ *memoryStore }

func (r attentionRepo) Create(ctx context.Context, a *entities.Attention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.id()
	r.attentions[a.ID] = *a
	return nil
}

func (r attentionRepo) GetByID(ctx context.Context, id int64) (*entities.Attention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attentions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("attention with id %d not found", id))
	}
	return &a, nil
}

func (r attentionRepo) ListWaiting(ctx context.Context, doctorID *int64) ([]*entities.Attention, error) {
	return r.filter(func(a entities.Attention) bool {
		return a.State == entities.AttentionStateWaiting && (doctorID == nil || a.DoctorID == *doctorID)
	}, func(x, y *entities.Attention) bool {
		if !x.EnteredAt.Equal(y.EnteredAt) {
			return x.EnteredAt.Before(y.EnteredAt)
		}
		return x.ID < y.ID
	}), nil
}

func (r attentionRepo) ListByPatient(ctx context.Context, patientID int64) ([]*entities.Attention, error) {
	return r.filter(func(a entities.Attention) bool {
		return a.PatientID == patientID
	}, func(x, y *entities.Attention) bool { return x.ID > y.ID }), nil
}

func (r attentionRepo) ListEnteredBetween(ctx context.Context, from, to time.Time, doctorID *int64) ([]*entities.Attention, error) {
	return r.filter(func(a entities.Attention) bool {
		return !a.EnteredAt.Before(from) && a.EnteredAt.Before(to) && (doctorID == nil || a.DoctorID == *doctorID)
	}, func(x, y *entities.Attention) bool { return x.ID < y.ID }), nil
}

func (r attentionRepo) TransitionState(ctx context.Context, id int64, from, to entities.AttentionState, at time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, apperrors.NewValidationError(fmt.Sprintf("attention cannot move from %s to %s", from, to))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attentions[id]
	if !ok || a.State != from {
		return false, nil
	}
	a.State = to
	if to == entities.AttentionStateInConsultation {
		a.ConsultationStartedAt = &at
	}
	r.attentions[id] = a
	return true, nil
}

func (r attentionRepo) Delete(ctx context.Context, id int64, allowed []entities.AttentionState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attentions[id]
	if !ok {
		return false, nil
	}
	for _, state := range allowed {
		if a.State == state {
			delete(r.attentions, id)
			return true, nil
		}
	}
	return false, nil
}

func (r attentionRepo) filter(keep func(entities.Attention) bool, less func(x, y *entities.Attention) bool) []*entities.Attention {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.Attention, 0)
	for _, a := range r.attentions {
		if keep(a) {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// staleAttentions simulates another request winning the race: every
// guarded write finds the row already moved.
type staleAttentions struct{ attentionRepo }

func (staleAttentions) TransitionState(ctx context.Context, id int64, from, to entities.AttentionState, at time.Time) (bool, error) {
	return false, nil
}

func (staleAttentions) Delete(ctx context.Context, id int64, allowed []entities.AttentionState) (bool, error) {
	return false, nil
}

// ConsultationRecordRepository

type recordRepo struct{ *memoryStore }

func (r recordRepo) Create(ctx context.Context, rec *entities.ConsultationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.AttentionID == rec.AttentionID {
			return apperrors.NewConflictError("attention already has a consultation record")
		}
	}
	rec.ID = r.id()
	r.records[rec.ID] = *rec
	return nil
}

func (r recordRepo) GetByID(ctx context.Context, id int64) (*entities.ConsultationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("consultation record with id %d not found", id))
	}
	return &rec, nil
}

func (r recordRepo) GetByAttentionID(ctx context.Context, attentionID int64) (*entities.ConsultationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.AttentionID == attentionID {
			return &rec, nil
		}
	}
	return nil, apperrors.NewNotFoundError("no consultation record for attention")
}

func (r recordRepo) ListByPatient(ctx context.Context, patientID int64) ([]*entities.ConsultationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.ConsultationRecord, 0)
	for _, rec := range r.records {
		if rec.PatientID == patientID {
			rec := rec
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r recordRepo) ListByIDs(ctx context.Context, ids []int64) ([]*entities.ConsultationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.ConsultationRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok {
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (r recordRepo) UpdateContent(ctx context.Context, id int64, content string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return apperrors.NewNotFoundError("record not found")
	}
	rec.Content = content
	rec.UpdatedAt = updatedAt
	r.records[id] = rec
	return nil
}

// PaymentRepository

type paymentRepo struct{ *memoryStore }

func (r paymentRepo) Create(ctx context.Context, p *entities.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	r.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) GetByID(ctx context.Context, id int64) (*entities.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("payment with id %d not found", id))
	}
	return &p, nil
}

func (r paymentRepo) Update(ctx context.Context, p *entities.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.ID]; !ok {
		return apperrors.NewNotFoundError("payment not found")
	}
	r.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[id]; !ok {
		return apperrors.NewNotFoundError("payment not found")
	}
	delete(r.payments, id)
	return nil
}

func (r paymentRepo) List(ctx context.Context, f repositories.PaymentFilter) ([]*entities.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.Payment, 0)
	for _, p := range r.payments {
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			continue
		}
		if len(f.PatientIDs) > 0 && !containsID(f.PatientIDs, p.PatientID) {
			continue
		}
		if f.From != nil && p.PaidAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !p.PaidAt.Before(*f.To) {
			continue
		}
		if f.Settled != nil && p.IsSettled() != *f.Settled {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r paymentRepo) Settle(ctx context.Context, id, recordID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.IsSettled() {
		return false, nil
	}
	p.ConsultationRecordID = &recordID
	r.payments[id] = p
	return true, nil
}

func (r paymentRepo) DeleteUnsettled(ctx context.Context, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if p, ok := r.payments[id]; ok && !p.IsSettled() {
			delete(r.payments, id)
			n++
		}
	}
	return n, nil
}

// Directories

type directory struct{ *memoryStore }

func (d directory) GetPatient(ctx context.Context, id int64) (*entities.Patient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.patients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %d not found", id))
	}
	return &p, nil
}

func (d directory) FindByNationalID(ctx context.Context, nationalID string) (*entities.Patient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.patients {
		if p.NationalID == nationalID {
			return &p, nil
		}
	}
	return nil, apperrors.NewNotFoundError("patient not found")
}

func (d directory) UpsertPatient(ctx context.Context, patient *entities.Patient) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.patients {
		if p.NationalID == patient.NationalID {
			patient.ID = id
			d.patients[id] = *patient
			return nil
		}
	}
	patient.ID = d.id()
	d.patients[patient.ID] = *patient
	return nil
}

func (d directory) GetDoctor(ctx context.Context, id int64) (*entities.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.doctors[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %d not found", id))
	}
	return &doc, nil
}

func (d directory) GetDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range d.doctors {
		if doc.UserID == userID {
			return &doc, nil
		}
	}
	return nil, apperrors.NewNotFoundError("doctor not found")
}

func (d directory) ListDoctors(ctx context.Context, ids []int64) ([]*entities.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*entities.Doctor, 0)
	for id, doc := range d.doctors {
		if len(ids) == 0 || containsID(ids, id) {
			doc := doc
			out = append(out, &doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// MockEventBus records published events

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.QueueEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.QueueEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return m.Called(ctx, channel).Error(0)
}

func (m *MockEventBus) Close() error {
	return nil
}

var _ providers.EventBus = (*MockEventBus)(nil)

// MockCacheProvider is a map-backed cache that records deletions

type MockCacheProvider struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	sets    int
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: make(map[string][]byte)}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, providers.ErrCacheMiss
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	m.deleted = append(m.deleted, pattern)
	return nil
}

func (m *MockCacheProvider) DeletedPatterns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

var errBoom = errors.New("boom")
