package input

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
)

var ErrMalformedInputData = errors.New("malformed input data")

// accepted layouts for the date attribute
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

type (
	Option func(l *loader)
	loader struct {
		dataPath jp.Expr
		infoPath jp.Expr
	}
	Result struct {
		Samples []model.RawSample
		Info    map[string]any // optional, only when an info path matched
	}
)

// WithDataPath selects the sample records by a JSONPath expression,
// for example "$.data".
func WithDataPath(expr string) Option {
	return func(l *loader) {
		if expr != "" {
			l.dataPath = jp.MustParseString(expr)
		}
	}
}

// WithInfoPath selects an object which is used as session info block.
func WithInfoPath(expr string) Option {
	return func(l *loader) {
		if expr != "" {
			l.infoPath = jp.MustParseString(expr)
		}
	}
}

func LoadFile(path string, opts ...Option) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opts...)
}

// Load reads telemetry records from r. The records may be stored as a JSON
// array, as an object of objects (ordered by key) or as a single object.
// Any record with a missing or invalid attribute fails the whole batch.
func Load(r io.Reader, opts ...Option) (*Result, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	doc, err := oj.ParseReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInputData, err)
	}
	ret := &Result{}
	if l.infoPath != nil {
		if info, ok := l.infoPath.First(doc).(map[string]any); ok {
			ret.Info = info
		}
	}
	data := doc
	if l.dataPath != nil {
		if data = l.dataPath.First(doc); data == nil {
			return nil, fmt.Errorf("%w: path %s not found", ErrMalformedInputData, l.dataPath)
		}
	}
	records, err := normalize(data)
	if err != nil {
		return nil, err
	}
	ret.Samples = make([]model.RawSample, len(records))
	for i, rec := range records {
		if err := convert(rec, &ret.Samples[i]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrMalformedInputData, i, err)
		}
	}
	return ret, nil
}

func normalize(data any) ([]map[string]any, error) {
	switch v := data.(type) {
	case []any:
		ret := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: record %d: expected object, got %T",
					ErrMalformedInputData, i, item)
			}
			ret = append(ret, m)
		}
		return ret, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k, item := range v {
			if _, ok := item.(map[string]any); ok {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return []map[string]any{v}, nil
		}
		slices.SortFunc(keys, compareKeys)
		ret := make([]map[string]any, len(keys))
		for i, k := range keys {
			ret[i] = v[k].(map[string]any)
		}
		return ret, nil
	default:
		return nil, fmt.Errorf("%w: unsupported document type %T", ErrMalformedInputData, data)
	}
}

// compareKeys orders numeric keys by value, everything else lexically
func compareKeys(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

//nolint:cyclop // one line per attribute
func convert(rec map[string]any, s *model.RawSample) error {
	var err error
	if s.Date, err = dateValue(rec, "date"); err != nil {
		return err
	}
	if s.X, err = floatValue(rec, "x"); err != nil {
		return err
	}
	if s.Y, err = floatValue(rec, "y"); err != nil {
		return err
	}
	if s.Z, err = floatValue(rec, "z"); err != nil {
		return err
	}
	if s.Speed, err = floatValue(rec, "speed"); err != nil {
		return err
	}
	if s.Throttle, err = floatValue(rec, "throttle"); err != nil {
		return err
	}
	if s.Brake, err = floatValue(rec, "brake"); err != nil {
		return err
	}
	if s.RPM, err = floatValue(rec, "rpm"); err != nil {
		return err
	}
	if s.Gear, err = intValue(rec, "n_gear"); err != nil {
		return err
	}
	if s.DRS, err = intValue(rec, "drs"); err != nil {
		return err
	}
	return nil
}

func floatValue(rec map[string]any, key string) (float64, error) {
	raw, ok := rec[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", key)
	}
	switch v := raw.(type) {
	case int64:
		return float64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("attribute %s is not finite", key)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("attribute %s: expected number, got %T", key, raw)
	}
}

func intValue(rec map[string]any, key string) (int, error) {
	v, err := floatValue(rec, key)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("attribute %s: expected integer, got %v", key, v)
	}
	// float64(math.MaxInt) rounds up to 2^63
	if v < math.MinInt || v >= math.MaxInt {
		return 0, fmt.Errorf("attribute %s: %v out of range", key, v)
	}
	return int(v), nil
}

func dateValue(rec map[string]any, key string) (time.Time, error) {
	raw, ok := rec[key]
	if !ok {
		return time.Time{}, fmt.Errorf("missing attribute %s", key)
	}
	str, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("attribute %s: expected string, got %T", key, raw)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("attribute %s: cannot parse %q", key, str)
}
