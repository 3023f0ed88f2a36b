package jobdef

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestJSONRepo(t *testing.T) (*JSONRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defs.json")
	repo, err := NewJSONRepository(path)
	if err != nil {
		t.Fatalf("NewJSONRepository() error = %v", err)
	}
	return repo, path
}

func TestJSONRepositorySaveAndFind(t *testing.T) {
	repo, _ := newTestJSONRepo(t)

	def := &JobDefinition{
		Name:            "import",
		TimeoutPeriod:   10 * time.Minute,
		PollingInterval: 5 * time.Second,
		Remote:          true,
	}
	if err := repo.Save(def); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Find("import")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got == nil || got.TimeoutPeriod != def.TimeoutPeriod || !got.Remote {
		t.Errorf("Find() = %+v, want %+v", got, def)
	}
}

func TestJSONRepositoryPersistsAcrossReopen(t *testing.T) {
	repo, path := newTestJSONRepo(t)

	if err := repo.Save(&JobDefinition{Name: "nightly", PollingInterval: time.Second}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := NewJSONRepository(path)
	if err != nil {
		t.Fatalf("NewJSONRepository() reopen error = %v", err)
	}

	got, err := reopened.Find("nightly")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got == nil || got.PollingInterval != time.Second {
		t.Errorf("Find() after reopen = %+v, want PollingInterval=1s", got)
	}
}

func TestJSONRepositoryFindMissing(t *testing.T) {
	repo, _ := newTestJSONRepo(t)

	got, err := repo.Find("missing")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != nil {
		t.Errorf("Find() = %+v, want nil", got)
	}
}

func TestJSONRepositorySetDisabled(t *testing.T) {
	repo, _ := newTestJSONRepo(t)

	if err := repo.Save(&JobDefinition{Name: "import"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.SetDisabled("import", true); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}

	def, err := repo.Find("import")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if !def.Disabled {
		t.Error("expected Disabled = true after SetDisabled")
	}
}

func TestJSONRepositorySetDisabledMissing(t *testing.T) {
	repo, _ := newTestJSONRepo(t)
	if err := repo.SetDisabled("missing", true); err != ErrNotFound {
		t.Errorf("SetDisabled() error = %v, want ErrNotFound", err)
	}
}

func TestJSONRepositoryFindAllSortedByName(t *testing.T) {
	repo, _ := newTestJSONRepo(t)

	for _, name := range []string{"export", "cleanup", "import"} {
		if err := repo.Save(&JobDefinition{Name: name}); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}

	defs, err := repo.FindAll()
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	want := []string{"cleanup", "export", "import"}
	if len(defs) != len(want) {
		t.Fatalf("FindAll() = %d defs, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("FindAll()[%d].Name = %s, want %s", i, defs[i].Name, name)
		}
	}
}

func TestJSONRepositoryClear(t *testing.T) {
	repo, _ := newTestJSONRepo(t)
	if err := repo.Save(&JobDefinition{Name: "import"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	defs, err := repo.FindAll()
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(defs) != 0 {
		t.Errorf("FindAll() after Clear() = %d defs, want 0", len(defs))
	}
}
