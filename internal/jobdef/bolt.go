package jobdef

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defsBucket = "jobdef_docs"

// BoltRepository implements Repository using a single BoltDB file,
// keyed directly by job name since definitions have no secondary
// uniqueness invariant to enforce.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository opens (creating if absent) a BoltDB-backed
// Repository at path.
func NewBoltRepository(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open boltdb at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(defsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Save(def *JobDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal jobdef: %w", err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(defsBucket)).Put([]byte(def.Name), data)
	})
}

func (r *BoltRepository) Find(name string) (*JobDefinition, error) {
	var def *JobDefinition
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(defsBucket)).Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		def = &JobDefinition{}
		return json.Unmarshal(data, def)
	})
	if err == ErrNotFound {
		return nil, nil
	}
	return def, err
}

func (r *BoltRepository) FindAll() ([]*JobDefinition, error) {
	var defs []*JobDefinition
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(defsBucket)).ForEach(func(_, v []byte) error {
			def := &JobDefinition{}
			if err := json.Unmarshal(v, def); err != nil {
				return err
			}
			defs = append(defs, def)
			return nil
		})
	})
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, err
}

func (r *BoltRepository) SetDisabled(name string, disabled bool) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(defsBucket))
		data := b.Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		def := &JobDefinition{}
		if err := json.Unmarshal(data, def); err != nil {
			return err
		}
		def.Disabled = disabled
		updated, err := json.Marshal(def)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), updated)
	})
}

func (r *BoltRepository) Clear() error {
	return r.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(defsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(defsBucket))
		return err
	})
}

func (r *BoltRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
