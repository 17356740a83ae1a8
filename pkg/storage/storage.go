package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ken/image_retrieval/pkg/core/feature"
)

const (
	// DefaultIntensityFile is the file name of the intensity histogram
	DefaultIntensityFile = "Intensity.txt"

	// DefaultColorCodeFile is the file name of the color code histogram
	DefaultColorCodeFile = "ColorCode.txt"
)

var (
	// ErrMalformedFeatureFile is returned when a histogram file can't be parsed
	ErrMalformedFeatureFile = errors.New("malformed feature file")

	// ErrHistogramNotFound is returned when no histogram of the kind was saved
	ErrHistogramNotFound = errors.New("histogram not found")

	// ErrUnknownKind is returned for a kind without a file mapping
	ErrUnknownKind = errors.New("unknown histogram kind")
)

// HistogramStore defines the interface for histogram persistence
type HistogramStore interface {
	// Load reads the histogram of the given kind
	Load(kind feature.Kind) (feature.Histogram, error)

	// Save replaces the histogram of the given kind
	Save(kind feature.Kind, h feature.Histogram) error

	// Close closes the store
	Close() error
}

// Encode writes one comma-separated line per histogram row, row 0 included
func Encode(w io.Writer, h feature.Histogram) error {
	bw := bufio.NewWriter(w)
	for _, row := range h {
		for j, v := range row {
			if j > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(strconv.Itoa(v)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode parses a histogram of the given kind for an n-image corpus. Every
// line must hold kind.Bins()+1 non-negative integers and there must be
// exactly n+1 lines. A single trailing comma per line is accepted, older
// files were written with one. Nothing is returned on error.
func Decode(r io.Reader, kind feature.Kind, n int) (feature.Histogram, error) {
	cols := kind.Bins() + 1
	h := make(feature.Histogram, 0, n+1)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if len(h) == n+1 {
			return nil, fmt.Errorf("%w: line %d: more than %d rows", ErrMalformedFeatureFile, line, n+1)
		}

		fields := strings.Split(text, ",")
		if len(fields) == cols+1 && strings.TrimSpace(fields[cols]) == "" {
			fields = fields[:cols]
		}
		if len(fields) != cols {
			return nil, fmt.Errorf("%w: line %d: %d columns, want %d", ErrMalformedFeatureFile, line, len(fields), cols)
		}

		row := make([]int, cols)
		for j, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %v", ErrMalformedFeatureFile, line, j, err)
			}
			if v < 0 {
				return nil, fmt.Errorf("%w: line %d column %d: negative count %d", ErrMalformedFeatureFile, line, j, v)
			}
			row[j] = v
		}
		h = append(h, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read histogram: %w", err)
	}
	if len(h) != n+1 {
		return nil, fmt.Errorf("%w: %d rows, want %d", ErrMalformedFeatureFile, len(h), n+1)
	}
	return h, nil
}

// MemoryStore is an in-memory implementation of HistogramStore
type MemoryStore struct {
	mu         sync.RWMutex
	histograms map[feature.Kind]feature.Histogram
}

// NewMemoryStore creates a new in-memory histogram store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		histograms: make(map[feature.Kind]feature.Histogram),
	}
}

func (s *MemoryStore) Load(kind feature.Kind) (feature.Histogram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.histograms[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHistogramNotFound, kind)
	}

	// Return a copy to prevent modification of the stored histogram
	return h.Clone(), nil
}

func (s *MemoryStore) Save(kind feature.Kind, h feature.Histogram) error {
	if err := h.Validate(kind, h.Corpus()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.histograms[kind] = h.Clone()
	return nil
}

func (s *MemoryStore) Close() error {
	// Nothing to do for memory store
	return nil
}

// FileStore keeps each histogram in its own text file under a data directory
type FileStore struct {
	baseDir string
	corpus  int
	files   map[feature.Kind]string
	mu      sync.RWMutex
}

// NewFileStore creates a file store for an n-image corpus using the default
// file names.
func NewFileStore(baseDir string, n int) (*FileStore, error) {
	return NewFileStoreWithNames(baseDir, n, DefaultIntensityFile, DefaultColorCodeFile)
}

// NewFileStoreWithNames creates a file store with custom file names
func NewFileStoreWithNames(baseDir string, n int, intensityFile, colorCodeFile string) (*FileStore, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
		corpus:  n,
		files: map[feature.Kind]string{
			feature.Intensity: intensityFile,
			feature.ColorCode: colorCodeFile,
		},
	}, nil
}

// Path returns the file backing the given kind
func (s *FileStore) Path(kind feature.Kind) (string, error) {
	name, ok := s.files[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return filepath.Join(s.baseDir, name), nil
}

func (s *FileStore) Load(kind feature.Kind) (feature.Histogram, error) {
	path, err := s.Path(kind)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrHistogramNotFound, path)
		}
		return nil, fmt.Errorf("failed to open histogram file: %w", err)
	}
	defer file.Close()

	h, err := Decode(file, kind, s.corpus)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

func (s *FileStore) Save(kind feature.Kind, h feature.Histogram) error {
	if err := h.Validate(kind, s.corpus); err != nil {
		return err
	}
	path, err := s.Path(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write to a temporary file first so a failed save keeps the old histogram
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create histogram file: %w", err)
	}
	if err := Encode(file, h); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write histogram: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close histogram file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace histogram file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	// Nothing special to do, histograms are written on every save
	return nil
}
