package jobinfo

import (
	"path/filepath"
	"testing"
	"time"
)

func TestServiceByIDAndByName(t *testing.T) {
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "jobinfo.json"))
	if err != nil {
		t.Fatalf("NewJSONRepository() error = %v", err)
	}
	svc := NewService(repo)

	id, err := repo.Create("import", "h", "t", time.Minute, Running, CheckPreconditions, nil, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	job, err := svc.ByID(id)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if job.Name != "import" {
		t.Errorf("ByID() name = %s, want import", job.Name)
	}

	jobs, err := svc.ByName("import", 10)
	if err != nil {
		t.Fatalf("ByName() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("ByName() returned %d jobs, want 1", len(jobs))
	}
}

func TestServiceMostRecentPerNameAndDistinctNames(t *testing.T) {
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "jobinfo.json"))
	if err != nil {
		t.Fatalf("NewJSONRepository() error = %v", err)
	}
	svc := NewService(repo)

	if _, err := repo.Create("import", "h", "t", time.Minute, Running, CheckPreconditions, nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Create("export", "h", "t", time.Minute, Running, CheckPreconditions, nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	names, err := svc.DistinctJobNames()
	if err != nil {
		t.Fatalf("DistinctJobNames() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("DistinctJobNames() = %v, want 2 names", names)
	}

	jobs, err := svc.MostRecentPerName()
	if err != nil {
		t.Fatalf("MostRecentPerName() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("MostRecentPerName() = %d jobs, want 2", len(jobs))
	}
}

func TestServiceByNameAndTimeRange(t *testing.T) {
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "jobinfo.json"))
	if err != nil {
		t.Fatalf("NewJSONRepository() error = %v", err)
	}
	svc := NewService(repo)

	if _, err := repo.Create("import", "h", "t", time.Minute, Running, CheckPreconditions, nil, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.MarkRunningAsFinished("import", Successful, "", time.Now()); err != nil {
		t.Fatalf("MarkRunningAsFinished() error = %v", err)
	}

	jobs, err := svc.ByNameAndTimeRange("import", time.Now().Add(-time.Hour), time.Now().Add(time.Hour), Successful)
	if err != nil {
		t.Fatalf("ByNameAndTimeRange() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("ByNameAndTimeRange() = %d jobs, want 1", len(jobs))
	}

	jobs, err = svc.ByNameAndTimeRange("import", time.Now().Add(-time.Hour), time.Now().Add(time.Hour), Failed)
	if err != nil {
		t.Fatalf("ByNameAndTimeRange() error = %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("ByNameAndTimeRange() with FAILED filter = %d jobs, want 0", len(jobs))
	}
}
