package jobinfo

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JSONRepository implements Repository using an in-memory map
// persisted to a single JSON file on every mutation. It trades
// throughput for simplicity and is intended for testing and small
// single-host deployments.
type JSONRepository struct {
	path   string
	docs   map[string]*JobInfo
	mu     sync.RWMutex
	logger *slog.Logger
}

type jsonPersistence struct {
	Docs []*JobInfo `json:"docs"`
}

// NewJSONRepository creates a new JSON file-backed Repository at path.
func NewJSONRepository(path string) (*JSONRepository, error) {
	r := &JSONRepository{
		path:   path,
		docs:   make(map[string]*JobInfo),
		logger: slog.Default(),
	}

	if _, err := os.Stat(path); err == nil {
		if err := r.load(); err != nil {
			return nil, fmt.Errorf("load existing jobinfo data: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat jobinfo file: %w", err)
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
	r.docs = make(map[string]*JobInfo, len(persist.Docs))
	for _, doc := range persist.Docs {
		r.docs[doc.ID] = doc
	}
	return nil
}

func (r *JSONRepository) save() error {
	docs := make([]*JobInfo, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}
	data, err := json.MarshalIndent(jsonPersistence{Docs: docs}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	return os.Rename(tmpPath, r.path)
}

func (r *JSONRepository) activeRecord(name string, state RunningState) *JobInfo {
	for _, doc := range r.docs {
		if doc.Name == name && doc.RunningState == state {
			return doc
		}
	}
	return nil
}

func (r *JSONRepository) Create(name, host, thread string, maxExecutionTime time.Duration, state RunningState, priority ExecutionPriority, params, additionalData map[string]string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeRecord(name, state) != nil {
		return "", ErrDuplicateActiveState
	}

	now := time.Now()
	id := uuid.New().String()
	job := &JobInfo{
		ID:                   id,
		Name:                 name,
		Host:                 host,
		Thread:               thread,
		CreationTime:         now,
		LastModificationTime: now,
		RunningState:         state,
		ExecutionPriority:    priority,
		MaxExecutionTime:     maxExecutionTime,
		Parameters:           params,
		AdditionalData:       additionalData,
	}
	if state == Running {
		job.StartTime = now
	}

	r.docs[id] = job
	if err := r.save(); err != nil {
		delete(r.docs, id)
		return "", err
	}
	return id, nil
}

func (r *JSONRepository) FindByID(id string) (*JobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (r *JSONRepository) FindByNameAndRunningState(name string, state RunningState) (*JobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if job := r.activeRecord(name, state); job != nil {
		return job.Clone(), nil
	}
	return nil, nil
}

func (r *JSONRepository) sortedByName(name string) []*JobInfo {
	var jobs []*JobInfo
	for _, doc := range r.docs {
		if doc.Name == name {
			jobs = append(jobs, doc.Clone())
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreationTime.After(jobs[j].CreationTime) })
	return jobs
}

func (r *JSONRepository) FindByName(name string, limit int) ([]*JobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := r.sortedByName(name)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *JSONRepository) FindByNameAndTimeRange(name string, start, end time.Time, result ResultCode) ([]*JobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var jobs []*JobInfo
	for _, doc := range r.docs {
		if doc.Name != name {
			continue
		}
		if doc.CreationTime.Before(start) || doc.CreationTime.After(end) {
			continue
		}
		if result != "" && doc.ResultState != result {
			continue
		}
		jobs = append(jobs, doc.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreationTime.Before(jobs[j].CreationTime) })
	return jobs, nil
}

func (r *JSONRepository) FindMostRecent(name string) (*JobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := r.sortedByName(name)
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

func (r *JSONRepository) FindMostRecentFinished(name string) (*JobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.sortedByName(name) {
		if job.RunningState.IsFinished() {
			return job, nil
		}
	}
	return nil, nil
}

func (r *JSONRepository) FindMostRecentByNameAndResultState(name string, results []ResultCode) (*JobInfo, error) {
	wanted := make(map[ResultCode]bool, len(results))
	for _, rc := range results {
		wanted[rc] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.sortedByName(name) {
		if wanted[job.ResultState] {
			return job, nil
		}
	}
	return nil, nil
}

func (r *JSONRepository) FindQueuedJobsSortedAscByCreationTime() ([]*JobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var jobs []*JobInfo
	for _, doc := range r.docs {
		if doc.RunningState == Queued {
			jobs = append(jobs, doc.Clone())
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreationTime.Before(jobs[j].CreationTime) })
	return jobs, nil
}

func (r *JSONRepository) FindAllMostRecent() ([]*JobInfo, error) {
	names, err := r.DistinctJobNames()
	if err != nil {
		return nil, err
	}
	jobs := make([]*JobInfo, 0, len(names))
	for _, name := range names {
		job, err := r.FindMostRecent(name)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (r *JSONRepository) DistinctJobNames() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for _, doc := range r.docs {
		seen[doc.Name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *JSONRepository) ActivateQueuedJob(name string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.activeRecord(name, Queued)
	if job == nil {
		return false, nil
	}
	if r.activeRecord(name, Running) != nil {
		return false, nil
	}

	job.RunningState = Running
	job.StartTime = now
	job.LastModificationTime = now
	if err := r.save(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *JSONRepository) markFinished(job *JobInfo, result ResultCode, message string, now time.Time) {
	job.RunningState = FinishedState(uuid.New().String())
	job.ResultState = result
	if message != "" {
		job.ResultMessage = message
	}
	job.FinishTime = now
	job.LastModificationTime = now
}

func (r *JSONRepository) MarkRunningAsFinished(name string, result ResultCode, message string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.activeRecord(name, Running)
	if job == nil {
		return false, nil
	}
	r.markFinished(job, result, message, now)
	if err := r.save(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *JSONRepository) MarkAsFinishedByID(id string, result ResultCode, message string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.docs[id]
	if !ok || job.RunningState.IsFinished() {
		return false, nil
	}
	r.markFinished(job, result, message, now)
	if err := r.save(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *JSONRepository) MarkQueuedAsNotExecuted(name string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.activeRecord(name, Queued)
	if job == nil {
		return false, nil
	}
	r.markFinished(job, NotExecuted, "", now)
	if err := r.save(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *JSONRepository) UpdateHostThreadInformation(name, host, thread string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.activeRecord(name, Running)
	if job == nil {
		return
	}
	job.Host = host
	job.Thread = thread
	job.LastModificationTime = time.Now()
	if err := r.save(); err != nil {
		r.logger.Warn("failed to update host/thread information", "name", name, "error", err)
	}
}

func (r *JSONRepository) AddAdditionalData(name, key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.activeRecord(name, Running)
	if job == nil {
		return
	}
	if job.AdditionalData == nil {
		job.AdditionalData = make(map[string]string)
	}
	job.AdditionalData[key] = value
	job.LastModificationTime = time.Now()
	if err := r.save(); err != nil {
		r.logger.Warn("failed to add additional data", "name", name, "key", key, "error", err)
	}
}

func (r *JSONRepository) SetStatusMessage(name, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.activeRecord(name, Running)
	if job == nil {
		return
	}
	job.StatusMessage = message
	job.LastModificationTime = time.Now()
	if err := r.save(); err != nil {
		r.logger.Warn("failed to set status message", "name", name, "error", err)
	}
}

func (r *JSONRepository) AddLogLine(name string, line LogLine) {
	if _, err := r.AppendLogLines(name, []LogLine{line}, time.Now()); err != nil {
		r.logger.Warn("failed to add log line", "name", name, "error", err)
	}
}

func (r *JSONRepository) AppendLogLines(name string, lines []LogLine, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.activeRecord(name, Running)
	if job == nil {
		return false, nil
	}
	job.LogLines = append(job.LogLines, lines...)
	job.LastModificationTime = now
	if err := r.save(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *JSONRepository) RemoveJobIfTimedOut(name string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.activeRecord(name, Running)
	if job == nil || !job.IsTimedOut(now) {
		return false, nil
	}
	r.markFinished(job, TimedOut, "", now)
	if err := r.save(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *JSONRepository) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return nil
	}
	delete(r.docs, id)
	return r.save()
}

func (r *JSONRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[string]*JobInfo)
	return r.save()
}

func (r *JSONRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs), nil
}

func (r *JSONRepository) CleanupTimedOutJobs(now time.Time) (int, error) {
	r.mu.Lock()
	names := make([]string, 0)
	for _, doc := range r.docs {
		if doc.RunningState == Running && doc.IsTimedOut(now) {
			names = append(names, doc.Name)
		}
	}
	r.mu.Unlock()

	count := 0
	for _, name := range names {
		ok, err := r.RemoveJobIfTimedOut(name, now)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (r *JSONRepository) CleanupOldJobs(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, doc := range r.docs {
		if doc.RunningState != Running && doc.CreationTime.Before(cutoff) {
			delete(r.docs, id)
			removed++
		}
	}
	if removed > 0 {
		if err := r.save(); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

func (r *JSONRepository) CleanupNotExecutedJobs(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, doc := range r.docs {
		if doc.ResultState == NotExecuted && doc.CreationTime.Before(cutoff) {
			delete(r.docs, id)
			removed++
		}
	}
	if removed > 0 {
		if err := r.save(); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

func (r *JSONRepository) Close() error {
	return nil
}
