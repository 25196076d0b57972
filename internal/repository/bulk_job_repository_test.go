package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ropatopia/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&model.BulkJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestBulkJobRepository_Lifecycle(t *testing.T) {
	repo := NewBulkJobRepository(newTestDB(t))

	job := &model.BulkJob{ID: "j1", ClientID: "c1", BatchID: "b1", Status: model.BulkJobQueued}
	job.SetRequests([]model.RetrieveRequest{{Query: "Q1"}, {Query: "Q2"}})
	if err := repo.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := repo.GetByIDAndClientID("j1", "other"); err != nil || got != nil {
		t.Fatalf("foreign client lookup = %+v, %v; want nil", got, err)
	}

	ok, err := repo.MarkRunning("j1")
	if err != nil || !ok {
		t.Fatalf("MarkRunning = %v, %v", ok, err)
	}
	if ok, _ := repo.MarkRunning("j1"); ok {
		t.Fatal("second MarkRunning succeeded")
	}

	if err := repo.Complete("j1", []model.RetrieveResponse{{QuestionID: "q1", Answer: "A"}}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, err := repo.GetByIDAndClientID("j1", "c1")
	if err != nil || got == nil {
		t.Fatalf("GetByIDAndClientID = %+v, %v", got, err)
	}
	if got.Status != model.BulkJobDone {
		t.Errorf("status = %s", got.Status)
	}
	if len(got.RequestList()) != 2 {
		t.Errorf("requests = %v", got.RequestList())
	}
	if res := got.ResultList(); len(res) != 1 || res[0].Answer != "A" {
		t.Errorf("results = %v", res)
	}
}

func TestBulkJobRepository_FailAndMissing(t *testing.T) {
	repo := NewBulkJobRepository(newTestDB(t))
	if got, err := repo.GetByID("nope"); err != nil || got != nil {
		t.Fatalf("GetByID(missing) = %+v, %v", got, err)
	}
	job := &model.BulkJob{ID: "j2", ClientID: "c1", Status: model.BulkJobQueued, Requests: "[]"}
	if err := repo.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Fail("j2", "backend down"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, _ := repo.GetByID("j2")
	if got.Status != model.BulkJobFailed || got.Error != "backend down" {
		t.Errorf("job = %+v", got)
	}
	jobs, err := repo.ListByClientID("c1", 0)
	if err != nil || len(jobs) != 1 {
		t.Errorf("ListByClientID = %v, %v", jobs, err)
	}
}
