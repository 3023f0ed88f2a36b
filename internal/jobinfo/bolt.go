package jobinfo

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	docsBucket           = "jobinfo_docs"
	idxNameStateBucket   = "jobinfo_idx_name_state"
	idxNameCreateBucket  = "jobinfo_idx_name_creation"
	idxStateCreateBucket = "jobinfo_idx_state_creation"
	namesBucket          = "jobinfo_names"

	keySep = "\x00"
)

// BoltRepository implements Repository using a single BoltDB file.
// The (name, runningState) uniqueness invariant is enforced by
// checking and writing the idxNameStateBucket entry inside the same
// db.Update transaction as the document write: bbolt transactions are
// serialized, so the check-then-write is atomic without any
// additional locking.
type BoltRepository struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBoltRepository opens (creating if absent) a BoltDB-backed
// Repository at path.
func NewBoltRepository(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open boltdb at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{docsBucket, idxNameStateBucket, idxNameCreateBucket, idxStateCreateBucket, namesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db, logger: slog.Default()}, nil
}

func sortableTime(t time.Time) string {
	return fmt.Sprintf("%020d", t.UTC().UnixNano())
}

func nameStateKey(name string, state RunningState) []byte {
	return []byte(name + keySep + string(state))
}

func nameCreationKey(name string, creation time.Time, id string) []byte {
	return []byte(name + keySep + sortableTime(creation) + keySep + id)
}

func stateCreationKey(state RunningState, creation time.Time, id string) []byte {
	return []byte(string(state) + keySep + sortableTime(creation) + keySep + id)
}

func (r *BoltRepository) Create(name, host, thread string, maxExecutionTime time.Duration, state RunningState, priority ExecutionPriority, params, additionalData map[string]string) (string, error) {
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

	err := r.db.Update(func(tx *bolt.Tx) error {
		idxNameState := tx.Bucket([]byte(idxNameStateBucket))
		nsKey := nameStateKey(name, state)
		if idxNameState.Get(nsKey) != nil {
			return ErrDuplicateActiveState
		}

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal jobinfo: %w", err)
		}

		if err := tx.Bucket([]byte(docsBucket)).Put([]byte(id), data); err != nil {
			return err
		}
		if err := idxNameState.Put(nsKey, []byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(idxNameCreateBucket)).Put(nameCreationKey(name, now, id), []byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(idxStateCreateBucket)).Put(stateCreationKey(state, now, id), []byte(id)); err != nil {
			return err
		}
		return r.bumpNameCount(tx, name, 1)
	})
	if err != nil {
		if err == ErrDuplicateActiveState {
			return "", ErrDuplicateActiveState
		}
		return "", fmt.Errorf("create jobinfo: %w", err)
	}

	return id, nil
}

func (r *BoltRepository) bumpNameCount(tx *bolt.Tx, name string, delta int) error {
	names := tx.Bucket([]byte(namesBucket))
	count := 0
	if raw := names.Get([]byte(name)); raw != nil {
		fmt.Sscanf(string(raw), "%d", &count)
	}
	count += delta
	if count <= 0 {
		return names.Delete([]byte(name))
	}
	return names.Put([]byte(name), []byte(fmt.Sprintf("%d", count)))
}

func (r *BoltRepository) getDoc(tx *bolt.Tx, id string) (*JobInfo, error) {
	data := tx.Bucket([]byte(docsBucket)).Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	job := &JobInfo{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("unmarshal jobinfo %s: %w", id, err)
	}
	return job, nil
}

func (r *BoltRepository) FindByID(id string) (*JobInfo, error) {
	var job *JobInfo
	err := r.db.View(func(tx *bolt.Tx) error {
		j, err := r.getDoc(tx, id)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	return job, err
}

func (r *BoltRepository) FindByNameAndRunningState(name string, state RunningState) (*JobInfo, error) {
	var job *JobInfo
	err := r.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, state))
		if id == nil {
			return ErrNotFound
		}
		j, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err == ErrNotFound {
		return nil, nil
	}
	return job, err
}

func (r *BoltRepository) FindByName(name string, limit int) ([]*JobInfo, error) {
	var jobs []*JobInfo
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(idxNameCreateBucket)).Cursor()
		prefix := []byte(name + keySep)
		for k, id := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, id = c.Next() {
			job, err := r.getDoc(tx, string(id))
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreationTime.After(jobs[j].CreationTime) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *BoltRepository) FindByNameAndTimeRange(name string, start, end time.Time, result ResultCode) ([]*JobInfo, error) {
	var jobs []*JobInfo
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(idxNameCreateBucket)).Cursor()
		prefix := []byte(name + keySep)
		for k, id := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, id = c.Next() {
			job, err := r.getDoc(tx, string(id))
			if err != nil {
				return err
			}
			if job.CreationTime.Before(start) || job.CreationTime.After(end) {
				continue
			}
			if result != "" && job.ResultState != result {
				continue
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreationTime.Before(jobs[j].CreationTime) })
	return jobs, nil
}

func (r *BoltRepository) FindMostRecent(name string) (*JobInfo, error) {
	jobs, err := r.FindByName(name, 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

func (r *BoltRepository) FindMostRecentFinished(name string) (*JobInfo, error) {
	jobs, err := r.FindByName(name, 0)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.RunningState.IsFinished() {
			return job, nil
		}
	}
	return nil, nil
}

func (r *BoltRepository) FindMostRecentByNameAndResultState(name string, results []ResultCode) (*JobInfo, error) {
	wanted := make(map[ResultCode]bool, len(results))
	for _, rc := range results {
		wanted[rc] = true
	}
	jobs, err := r.FindByName(name, 0)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if wanted[job.ResultState] {
			return job, nil
		}
	}
	return nil, nil
}

func (r *BoltRepository) FindQueuedJobsSortedAscByCreationTime() ([]*JobInfo, error) {
	var jobs []*JobInfo
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(idxStateCreateBucket)).Cursor()
		prefix := []byte(string(Queued) + keySep)
		for k, id := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, id = c.Next() {
			job, err := r.getDoc(tx, string(id))
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	return jobs, err
}

func (r *BoltRepository) FindAllMostRecent() ([]*JobInfo, error) {
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

func (r *BoltRepository) DistinctJobNames() ([]string, error) {
	var names []string
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(namesBucket)).ForEach(func(k, v []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	sort.Strings(names)
	return names, err
}

// transitionState rewrites job's runningState and reindexes it inside
// the given transaction: the old idxNameState/idxStateCreation entries
// are removed and new ones written before the document itself is
// replaced, keeping the unique index consistent with the document.
func (r *BoltRepository) transitionState(tx *bolt.Tx, job *JobInfo, newState RunningState) error {
	idxNameState := tx.Bucket([]byte(idxNameStateBucket))
	idxStateCreate := tx.Bucket([]byte(idxStateCreateBucket))

	newNSKey := nameStateKey(job.Name, newState)
	if job.RunningState != newState {
		if idxNameState.Get(newNSKey) != nil {
			return ErrDuplicateActiveState
		}
	}

	oldNSKey := nameStateKey(job.Name, job.RunningState)
	oldSCKey := stateCreationKey(job.RunningState, job.CreationTime, job.ID)

	if err := idxNameState.Delete(oldNSKey); err != nil {
		return err
	}
	if err := idxStateCreate.Delete(oldSCKey); err != nil {
		return err
	}
	if err := idxNameState.Put(newNSKey, []byte(job.ID)); err != nil {
		return err
	}
	if err := idxStateCreate.Put(stateCreationKey(newState, job.CreationTime, job.ID), []byte(job.ID)); err != nil {
		return err
	}

	job.RunningState = newState
	return nil
}

func (r *BoltRepository) putDoc(tx *bolt.Tx, job *JobInfo) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal jobinfo: %w", err)
	}
	return tx.Bucket([]byte(docsBucket)).Put([]byte(job.ID), data)
}

func (r *BoltRepository) ActivateQueuedJob(name string, now time.Time) (bool, error) {
	activated := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, Queued))
		if id == nil {
			return nil
		}
		job, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}

		if err := r.transitionState(tx, job, Running); err != nil {
			if err == ErrDuplicateActiveState {
				return nil
			}
			return err
		}
		job.StartTime = now
		job.LastModificationTime = now

		if err := r.putDoc(tx, job); err != nil {
			return err
		}
		activated = true
		return nil
	})
	return activated, err
}

func (r *BoltRepository) markFinished(tx *bolt.Tx, job *JobInfo, result ResultCode, message string, now time.Time) error {
	token := uuid.New().String()
	if err := r.transitionState(tx, job, FinishedState(token)); err != nil {
		return err
	}
	job.ResultState = result
	if message != "" {
		job.ResultMessage = message
	}
	job.FinishTime = now
	job.LastModificationTime = now
	return r.putDoc(tx, job)
}

func (r *BoltRepository) MarkRunningAsFinished(name string, result ResultCode, message string, now time.Time) (bool, error) {
	marked := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, Running))
		if id == nil {
			return nil
		}
		job, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}
		if err := r.markFinished(tx, job, result, message, now); err != nil {
			if err == ErrDuplicateActiveState {
				return nil
			}
			return err
		}
		marked = true
		return nil
	})
	return marked, err
}

func (r *BoltRepository) MarkAsFinishedByID(id string, result ResultCode, message string, now time.Time) (bool, error) {
	marked := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		job, err := r.getDoc(tx, id)
		if err != nil {
			if err == ErrNotFound {
				return nil
			}
			return err
		}
		if job.RunningState.IsFinished() {
			return nil
		}
		if err := r.markFinished(tx, job, result, message, now); err != nil {
			if err == ErrDuplicateActiveState {
				return nil
			}
			return err
		}
		marked = true
		return nil
	})
	return marked, err
}

func (r *BoltRepository) MarkQueuedAsNotExecuted(name string, now time.Time) (bool, error) {
	marked := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, Queued))
		if id == nil {
			return nil
		}
		job, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}
		if err := r.markFinished(tx, job, NotExecuted, "", now); err != nil {
			if err == ErrDuplicateActiveState {
				return nil
			}
			return err
		}
		marked = true
		return nil
	})
	return marked, err
}

// UpdateHostThreadInformation is a best-effort telemetry update: a
// persistence failure is logged, never returned, so it can never abort
// a running job.
func (r *BoltRepository) UpdateHostThreadInformation(name, host, thread string) {
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, Running))
		if id == nil {
			return nil
		}
		job, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}
		job.Host = host
		job.Thread = thread
		job.LastModificationTime = time.Now()
		return r.putDoc(tx, job)
	})
	if err != nil {
		r.logger.Warn("failed to update host/thread information", "name", name, "error", err)
	}
}

func (r *BoltRepository) AddAdditionalData(name, key, value string) {
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, Running))
		if id == nil {
			return nil
		}
		job, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}
		if job.AdditionalData == nil {
			job.AdditionalData = make(map[string]string)
		}
		job.AdditionalData[key] = value
		job.LastModificationTime = time.Now()
		return r.putDoc(tx, job)
	})
	if err != nil {
		r.logger.Warn("failed to add additional data", "name", name, "key", key, "error", err)
	}
}

func (r *BoltRepository) SetStatusMessage(name, message string) {
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, Running))
		if id == nil {
			return nil
		}
		job, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}
		job.StatusMessage = message
		job.LastModificationTime = time.Now()
		return r.putDoc(tx, job)
	})
	if err != nil {
		r.logger.Warn("failed to set status message", "name", name, "error", err)
	}
}

func (r *BoltRepository) AddLogLine(name string, line LogLine) {
	_, err := r.AppendLogLines(name, []LogLine{line}, time.Now())
	if err != nil {
		r.logger.Warn("failed to add log line", "name", name, "error", err)
	}
}

func (r *BoltRepository) AppendLogLines(name string, lines []LogLine, now time.Time) (bool, error) {
	found := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, Running))
		if id == nil {
			return nil
		}
		job, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}
		job.LogLines = append(job.LogLines, lines...)
		job.LastModificationTime = now
		found = true
		return r.putDoc(tx, job)
	})
	return found, err
}

func (r *BoltRepository) RemoveJobIfTimedOut(name string, now time.Time) (bool, error) {
	removed := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(idxNameStateBucket)).Get(nameStateKey(name, Running))
		if id == nil {
			return nil
		}
		job, err := r.getDoc(tx, string(id))
		if err != nil {
			return err
		}
		if !job.IsTimedOut(now) {
			return nil
		}
		if err := r.markFinished(tx, job, TimedOut, "", now); err != nil {
			if err == ErrDuplicateActiveState {
				return nil
			}
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

func (r *BoltRepository) Remove(id string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		job, err := r.getDoc(tx, id)
		if err != nil {
			if err == ErrNotFound {
				return nil
			}
			return err
		}
		if err := tx.Bucket([]byte(docsBucket)).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(idxNameStateBucket)).Delete(nameStateKey(job.Name, job.RunningState)); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(idxNameCreateBucket)).Delete(nameCreationKey(job.Name, job.CreationTime, job.ID)); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(idxStateCreateBucket)).Delete(stateCreationKey(job.RunningState, job.CreationTime, job.ID)); err != nil {
			return err
		}
		return r.bumpNameCount(tx, job.Name, -1)
	})
}

func (r *BoltRepository) Clear() error {
	return r.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{docsBucket, idxNameStateBucket, idxNameCreateBucket, idxStateCreateBucket, namesBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BoltRepository) Count() (int, error) {
	count := 0
	err := r.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(docsBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

func (r *BoltRepository) CleanupTimedOutJobs(now time.Time) (int, error) {
	var timedOut []string
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(idxStateCreateBucket)).Cursor()
		prefix := []byte(string(Running) + keySep)
		for k, id := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, id = c.Next() {
			job, err := r.getDoc(tx, string(id))
			if err != nil {
				return err
			}
			if job.IsTimedOut(now) {
				timedOut = append(timedOut, job.Name)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, name := range timedOut {
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

func (r *BoltRepository) CleanupOldJobs(cutoff time.Time) (int, error) {
	var toRemove []string
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(docsBucket)).ForEach(func(_, v []byte) error {
			job := &JobInfo{}
			if err := json.Unmarshal(v, job); err != nil {
				return err
			}
			if job.RunningState != Running && job.CreationTime.Before(cutoff) {
				toRemove = append(toRemove, job.ID)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	for _, id := range toRemove {
		if err := r.Remove(id); err != nil {
			return 0, err
		}
	}
	return len(toRemove), nil
}

func (r *BoltRepository) CleanupNotExecutedJobs(cutoff time.Time) (int, error) {
	var toRemove []string
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(docsBucket)).ForEach(func(_, v []byte) error {
			job := &JobInfo{}
			if err := json.Unmarshal(v, job); err != nil {
				return err
			}
			if job.ResultState == NotExecuted && job.CreationTime.Before(cutoff) {
				toRemove = append(toRemove, job.ID)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	for _, id := range toRemove {
		if err := r.Remove(id); err != nil {
			return 0, err
		}
	}
	return len(toRemove), nil
}

func (r *BoltRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
