package plotdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultFile is the data file read from the working directory when nothing
// else is configured.
const DefaultFile = "plotdata.json"

// Keys of the three series in a plot data record.
const (
	KeyLabels = "labels"
	KeyIbat   = "ibat"
	KeyVbat   = "vbat"
)

var (
	// ErrNotFound is returned when the data file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidJSON is returned when the data file, or one of its fields,
	// cannot be decoded into the expected shape.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrMissingKey is returned when a required series is absent.
	ErrMissingKey = errors.New("key not found in the JSON data")

	// ErrLengthMismatch is returned when labels, ibat and vbat differ in length.
	ErrLengthMismatch = errors.New("series have different lengths")
)

// Record is a decoded data file. Fields stay raw until extracted.
type Record map[string]json.RawMessage

// Load reads and decodes the record stored at path.
func Load(path string) (Record, error) {
	fp, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, pkgerrors.Wrapf(err, "failed to open file %s", path)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", path)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read file %s", path)
	}

	rec, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"bytes":  len(b),
		"fields": len(rec),
	}).Debug("plot data loaded")

	return rec, nil
}

// Decode parses b as a JSON object.
func Decode(b []byte) (Record, error) {
	rec := Record{}
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return rec, nil
}

// Floats returns the field named key as a numeric sequence, in stored order.
func (r Record) Floats(key string) ([]float64, error) {
	raw, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("%w: field %q is null", ErrInvalidJSON, key)
	}

	// Pointers keep null elements apart from zeros.
	var elems []*float64
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidJSON, key, err)
	}

	values := make([]float64, len(elems))
	for i, v := range elems {
		if v == nil {
			return nil, fmt.Errorf("%w: field %q has null at index %d", ErrInvalidJSON, key, i)
		}
		values[i] = *v
	}
	return values, nil
}

// Series holds the three parallel sequences of a measurement session.
// Labels are seconds, Ibat is battery current and Vbat is battery voltage.
type Series struct {
	Labels []float64 `json:"labels"`
	Ibat   []float64 `json:"ibat"`
	Vbat   []float64 `json:"vbat"`
}

// Extract pulls labels, ibat and vbat out of rec, in that order.
func Extract(rec Record) (*Series, error) {
	labels, err := rec.Floats(KeyLabels)
	if err != nil {
		return nil, err
	}
	ibat, err := rec.Floats(KeyIbat)
	if err != nil {
		return nil, err
	}
	vbat, err := rec.Floats(KeyVbat)
	if err != nil {
		return nil, err
	}

	s := &Series{Labels: labels, Ibat: ibat, Vbat: vbat}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that all three sequences have the same length.
func (s *Series) Validate() error {
	if len(s.Labels) != len(s.Ibat) || len(s.Labels) != len(s.Vbat) {
		return fmt.Errorf("%w: labels=%d ibat=%d vbat=%d",
			ErrLengthMismatch, len(s.Labels), len(s.Ibat), len(s.Vbat))
	}
	return nil
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.Labels)
}

// Append adds one sample to the end of the series.
func (s *Series) Append(label, ibat, vbat float64) {
	s.Labels = append(s.Labels, label)
	s.Ibat = append(s.Ibat, ibat)
	s.Vbat = append(s.Vbat, vbat)
}

// Clone returns a deep copy of s.
func (s *Series) Clone() *Series {
	return &Series{
		Labels: append([]float64{}, s.Labels...),
		Ibat:   append([]float64{}, s.Ibat...),
		Vbat:   append([]float64{}, s.Vbat...),
	}
}

// Save writes s to path as a plot data file.
func Save(path string, s *Series) error {
	// Empty series are written as [] rather than null.
	out := s.Clone()

	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", path)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", path)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	err = enc.Encode(out)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode plot data to file %s", path)
	}

	return nil
}
