// Package store keeps the outcome of past reconstructions in a bbolt database, keyed by a
// fingerprint of the inputs, so a repeated run can try the known answer first.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"imgrev-go/pkg/pearson"
	"imgrev-go/pkg/search"
)

const runsBucket = "runs"

var ErrNotFound = errors.New("store: no run for fingerprint")

// Run is one persisted reconstruction outcome.
type Run struct {
	Fingerprint string        `json:"fingerprint"`
	Sequence    string        `json:"sequence,omitempty"`
	State       string        `json:"state"`
	Index       int           `json:"index"`
	HintTrials  int           `json:"hint_trials"`
	Trials      int           `json:"trials"`
	Elapsed     time.Duration `json:"elapsed"`
	Width       int           `json:"width,omitempty"`
	Height      int           `json:"height,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Found reports whether the run ended with a sequence.
func (r Run) Found() bool { return r.State == search.StateFound.String() }

// NewRun summarizes res for in.
func NewRun(in search.Input, res *search.Result) Run {
	run := Run{Fingerprint: Fingerprint(in), CreatedAt: time.Now().UTC()}
	if res != nil {
		run.State = res.State.String()
		run.Index = res.Index
		run.HintTrials = res.HintTrials
		run.Trials = res.Trials
		run.Elapsed = res.Elapsed
		if res.Sequence != nil {
			run.Sequence = res.Sequence.String()
		}
	}
	return run
}

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: failed to open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores run, replacing any earlier run with the same fingerprint.
func (s *Store) Put(run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(run.Fingerprint), data)
	})
}

func (s *Store) Get(fingerprint string) (Run, error) {
	var run Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(fingerprint))
		if data == nil {
			return fmt.Errorf("%w %s", ErrNotFound, fingerprint)
		}
		return json.Unmarshal(data, &run)
	})
	return run, err
}

// List returns every run, newest first.
func (s *Store) List() ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(_, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

// Fingerprint identifies an input set. Lengths are mixed in so that moving bytes
// between adjacent buffers changes the result.
func Fingerprint(in search.Input) string {
	d := pearson.New64()
	var n [8]byte
	writeBuf := func(b []byte) {
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		d.Write(n[:])
		d.Write(b)
	}
	writeBuf(in.Final)
	writeBuf(in.Key)
	writeBuf(in.Watermark)
	for _, r := range in.Records {
		binary.BigEndian.PutUint64(n[:], uint64(r.Seed))
		d.Write(n[:])
		writeBuf(r.Checksums)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
