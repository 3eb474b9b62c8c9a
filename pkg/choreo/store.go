package choreo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrNotFound is returned for unknown pose and sequence names.
	ErrNotFound = errors.New("not found")

	// ErrDefinitionLoad is returned when a definitions document cannot be
	// read or parsed. The namespace is left empty.
	ErrDefinitionLoad = errors.New("definition load failed")
)

type posesDocument struct {
	Poses *orderedmap.OrderedMap[string, Pose] `json:"poses"`
}

type sequencesDocument struct {
	Sequences *orderedmap.OrderedMap[string, Sequence] `json:"sequences"`
}

// Store holds two independent namespaces, poses and sequences, each in
// definition order. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	poses     *orderedmap.OrderedMap[string, Pose]
	sequences *orderedmap.OrderedMap[string, Sequence]
}

// decodeDocument decodes exactly one JSON value from r.
func decodeDocument(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after document")
	}
	return nil
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		poses:     orderedmap.New[string, Pose](),
		sequences: orderedmap.New[string, Sequence](),
	}
}

// LoadPoses replaces all poses with those in a {"poses": {...}} document.
// On failure the pose namespace is emptied and an ErrDefinitionLoad error is
// returned.
func (s *Store) LoadPoses(r io.Reader) error {
	var doc posesDocument
	err := decodeDocument(r, &doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.poses = orderedmap.New[string, Pose]()
	if err != nil {
		return fmt.Errorf("%w: poses: %w", ErrDefinitionLoad, err)
	}
	if doc.Poses != nil {
		s.poses = doc.Poses
	}
	return nil
}

// LoadPosesFile loads poses from path. See LoadPoses.
func (s *Store) LoadPosesFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		s.mu.Lock()
		s.poses = orderedmap.New[string, Pose]()
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrDefinitionLoad, err)
	}
	defer f.Close()

	if err := s.LoadPoses(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadSequences replaces all sequences with those in a {"sequences": {...}}
// document. On failure the sequence namespace is emptied and an
// ErrDefinitionLoad error is returned.
func (s *Store) LoadSequences(r io.Reader) error {
	var doc sequencesDocument
	err := decodeDocument(r, &doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences = orderedmap.New[string, Sequence]()
	if err != nil {
		return fmt.Errorf("%w: sequences: %w", ErrDefinitionLoad, err)
	}
	if doc.Sequences != nil {
		s.sequences = doc.Sequences
	}
	return nil
}

// LoadSequencesFile loads sequences from path. See LoadSequences.
func (s *Store) LoadSequencesFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		s.mu.Lock()
		s.sequences = orderedmap.New[string, Sequence]()
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrDefinitionLoad, err)
	}
	defer f.Close()

	if err := s.LoadSequences(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// DefinePose inserts or overwrites a pose. Limb and joint names are not
// checked here; unknown ones are skipped when the pose is executed.
func (s *Store) DefinePose(name string, p Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poses.Set(name, p.Clone())
}

// DefineSequence inserts or overwrites a sequence.
func (s *Store) DefineSequence(name string, q Sequence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences.Set(name, q.Clone())
}

// Pose returns a copy of the named pose.
func (s *Store) Pose(name string) (Pose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.poses.Get(name)
	if !ok {
		return Pose{}, fmt.Errorf("pose %q: %w", name, ErrNotFound)
	}
	return p.Clone(), nil
}

// Sequence returns a copy of the named sequence.
func (s *Store) Sequence(name string) (Sequence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.sequences.Get(name)
	if !ok {
		return Sequence{}, fmt.Errorf("sequence %q: %w", name, ErrNotFound)
	}
	return q.Clone(), nil
}

// Poses yields every pose in definition order. Each iteration starts from a
// fresh snapshot, so the sequence can be ranged over again.
func (s *Store) Poses() iter.Seq2[string, Pose] {
	return func(yield func(string, Pose) bool) {
		for _, e := range snapshot(&s.mu, s.posesMap) {
			if !yield(e.name, e.value.Clone()) {
				return
			}
		}
	}
}

// Sequences yields every sequence in definition order. See Poses.
func (s *Store) Sequences() iter.Seq2[string, Sequence] {
	return func(yield func(string, Sequence) bool) {
		for _, e := range snapshot(&s.mu, s.sequencesMap) {
			if !yield(e.name, e.value.Clone()) {
				return
			}
		}
	}
}

// PoseNames returns the pose names in definition order.
func (s *Store) PoseNames() []string {
	var names []string
	for name := range s.Poses() {
		names = append(names, name)
	}
	return names
}

// SequenceNames returns the sequence names in definition order.
func (s *Store) SequenceNames() []string {
	var names []string
	for name := range s.Sequences() {
		names = append(names, name)
	}
	return names
}

// NumPoses returns the number of poses.
func (s *Store) NumPoses() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poses.Len()
}

// NumSequences returns the number of sequences.
func (s *Store) NumSequences() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequences.Len()
}

// SavePoses writes all poses as a {"poses": {...}} document.
func (s *Store) SavePoses(w io.Writer) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(posesDocument{Poses: s.poses}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// SavePosesFile writes all poses to path.
func (s *Store) SavePosesFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.SavePoses(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) posesMap() *orderedmap.OrderedMap[string, Pose] {
	return s.poses
}

func (s *Store) sequencesMap() *orderedmap.OrderedMap[string, Sequence] {
	return s.sequences
}

type entry[V any] struct {
	name  string
	value V
}

// snapshot copies the current entries of a namespace under the read lock.
func snapshot[V any](mu *sync.RWMutex, m func() *orderedmap.OrderedMap[string, V]) []entry[V] {
	mu.RLock()
	defer mu.RUnlock()
	om := m()
	out := make([]entry[V], 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, entry[V]{name: pair.Key, value: pair.Value})
	}
	return out
}
