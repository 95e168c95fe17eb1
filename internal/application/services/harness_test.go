package services_test

import (
	"time"

	"github.com/zatekoja/clinicflow/internal/application/services"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) Set(t time.Time) { c.now = t }

type clinic struct {
	store          *memoryStore
	clock          *fakeClock
	queue          *services.QueueService
	records        *services.RecordService
	payments       *services.PaymentService
	reconciliation *services.ReconciliationService
	reports        *services.ReportService
}

const (
	patientAna  = int64(1)
	patientLuis = int64(2)
	doctorRojas = int64(10)
	doctorVega  = int64(11)
)

func newClinic() *clinic {
	store := newMemoryStore()
	store.nextID = 100
	store.addPatient(patientAna, "Ana Quispe")
	store.addPatient(patientLuis, "Luis Torres")
	store.addDoctor(doctorRojas, "Dr. Rojas", "Cardiology")
	store.addDoctor(doctorVega, "Dra. Vega", "Pediatrics")

	clock := &fakeClock{now: time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)}
	rules := services.DefaultRules()

	attentions := attentionRepo{store}
	records := recordRepo{store}
	payments := paymentRepo{store}
	dir := directory{store}

	ledger := services.NewPaymentService(payments, records, dir, nil)
	ledger.SetClock(clock.Now)

	queue := services.NewQueueService(attentions, records, payments, dir, dir, store, ledger, nil, rules)
	queue.SetClock(clock.Now)

	recordService := services.NewRecordService(records, attentions, dir, store, nil, rules)
	recordService.SetClock(clock.Now)

	reconciliation := services.NewReconciliationService(attentions, payments, records, rules)

	reports := services.NewReportService(reconciliation, dir, nil, 0, time.UTC)
	reports.SetClock(clock.Now)

	return &clinic{
		store:          store,
		clock:          clock,
		queue:          queue,
		records:        recordService,
		payments:       ledger,
		reconciliation: reconciliation,
		reports:        reports,
	}
}

var (
	admin     = entities.ActingUser{UserID: 1, Role: entities.RoleAdmin}
	reception = entities.ActingUser{UserID: 2, Role: entities.RoleReception}
)

func doctor(id int64) entities.ActingUser {
	return entities.ActingUser{UserID: 100 + id, Role: entities.RoleDoctor, DoctorID: &id}
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }
