package tracking

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

// ReplaySource replays a recorded route. Each CSV row holds
// latitude,longitude and optionally speed,heading,accuracy.
// Current and Watch both advance through the route, wrapping at the end.
type ReplaySource struct {
	points []Fix
	step   time.Duration
	now    func() time.Time

	mu  sync.Mutex
	pos int
}

func NewReplaySource(points []Fix, step time.Duration) (*ReplaySource, error) {
	if len(points) == 0 {
		return nil, errors.New("replay route is empty")
	}
	if step <= 0 {
		step = 10 * time.Second
	}
	return &ReplaySource{points: points, step: step, now: time.Now}, nil
}

func LoadReplayFile(path string, step time.Duration) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	points, err := ParseRoute(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewReplaySource(points, step)
}

// ParseRoute reads CSV rows into fixes. Rows starting with '#' are skipped.
func ParseRoute(r io.Reader) ([]Fix, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var points []Fix
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return points, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("row %d: need latitude and longitude", line)
		}
		vals := make([]*float64, len(rec))
		for i, field := range rec {
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", line, i+1, err)
			}
			vals[i] = &v
		}
		if vals[0] == nil || vals[1] == nil {
			return nil, fmt.Errorf("row %d: need latitude and longitude", line)
		}
		fix := Fix{Latitude: *vals[0], Longitude: *vals[1]}
		if len(vals) > 2 {
			fix.Speed = vals[2]
		}
		if len(vals) > 3 {
			fix.Heading = vals[3]
		}
		if len(vals) > 4 {
			fix.Accuracy = vals[4]
		}
		points = append(points, fix)
	}
}

func (s *ReplaySource) next() Fix {
	s.mu.Lock()
	defer s.mu.Unlock()
	fix := s.points[s.pos]
	s.pos = (s.pos + 1) % len(s.points)
	fix.At = s.now().UTC()
	return fix
}

func (s *ReplaySource) Current(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	return s.next(), nil
}

func (s *ReplaySource) Watch(ctx context.Context) (<-chan Fix, error) {
	ch := make(chan Fix)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.step)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- s.next():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
