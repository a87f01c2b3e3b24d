// Package registry keeps an optional sidecar record of the images
// palimpsest created. The symlinks next to each image remain the source
// of truth; the registry exists so that images can be listed without
// knowing where they live.
package registry

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/containerd/errdefs"
	bolt "go.etcd.io/bbolt"
)

var bucketImages = []byte("images")

// Kind is the type of a recorded image.
type Kind string

const (
	KindBase  Kind = "base"
	KindLayer Kind = "layer"
)

// Record describes one image and the devices bound to it at creation.
type Record struct {
	Path       string    `json:"path"`
	Kind       Kind      `json:"kind"`
	LoopDevice string    `json:"loop_device"`
	MapperName string    `json:"mapper_name,omitempty"`
	Base       string    `json:"base,omitempty"`
	Persistent bool      `json:"persistent,omitempty"`
	FSType     string    `json:"fs_type,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is a bbolt-backed Record store keyed by absolute image path.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketImages)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize registry %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return []byte(abs), nil
}

// Put stores r, replacing any record for the same path. r.Path and
// r.Base are made absolute.
func (s *Store) Put(r Record) error {
	k, err := key(r.Path)
	if err != nil {
		return err
	}
	r.Path = string(k)
	if r.Base != "" {
		if r.Base, err = filepath.Abs(r.Base); err != nil {
			return err
		}
	}
	v, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).Put(k, v)
	})
}

// Get returns the record for path, or an errdefs.ErrNotFound error.
func (s *Store) Get(path string) (Record, error) {
	k, err := key(path)
	if err != nil {
		return Record{}, err
	}
	var r Record
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketImages).Get(k)
		if v == nil {
			return fmt.Errorf("image %s: %w", k, errdefs.ErrNotFound)
		}
		return json.Unmarshal(v, &r)
	})
	return r, err
}

// Delete removes the record for path. Deleting a missing record is not
// an error.
func (s *Store) Delete(path string) error {
	k, err := key(path)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).Delete(k)
	})
}

// List returns all records ordered by path.
func (s *Store) List() ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt record %s: %w", k, err)
			}
			records = append(records, r)
			return nil
		})
	})
	return records, err
}
