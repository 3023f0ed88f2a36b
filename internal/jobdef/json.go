package jobdef

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// JSONRepository implements Repository using an in-memory map
// persisted to a single JSON file on every mutation.
type JSONRepository struct {
	path string
	defs map[string]*JobDefinition
	mu   sync.RWMutex
}

type jsonPersistence struct {
	Defs []*JobDefinition `json:"defs"`
}

// NewJSONRepository creates a new JSON file-backed Repository at path.
func NewJSONRepository(path string) (*JSONRepository, error) {
	r := &JSONRepository{
		path: path,
		defs: make(map[string]*JobDefinition),
	}

	if _, err := os.Stat(path); err == nil {
		if err := r.load(); err != nil {
			return nil, fmt.Errorf("load existing jobdef data: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat jobdef file: %w", err)
	}

	return r, nil
}

func (r *JSONRepository) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	var persist jsonPersistence
	if err := json.Unmarshal(data, &persist); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	r.defs = make(map[string]*JobDefinition, len(persist.Defs))
	for _, def := range persist.Defs {
		r.defs[def.Name] = def
	}
	return nil
}

func (r *JSONRepository) save() error {
	defs := make([]*JobDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	data, err := json.MarshalIndent(jsonPersistence{Defs: defs}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	return os.Rename(tmpPath, r.path)
}

func (r *JSONRepository) Save(def *JobDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return r.save()
}

func (r *JSONRepository) Find(name string) (*JobDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, nil
	}
	return def, nil
}

func (r *JSONRepository) FindAll() ([]*JobDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]*JobDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func (r *JSONRepository) SetDisabled(name string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[name]
	if !ok {
		return ErrNotFound
	}
	def.Disabled = disabled
	return r.save()
}

func (r *JSONRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]*JobDefinition)
	return r.save()
}

func (r *JSONRepository) Close() error {
	return nil
}
