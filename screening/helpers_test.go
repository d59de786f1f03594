package screening

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-screen/features"
)

// shifted returns base+scale*d for every feature, with base_j = j+1 and
// d_j = 0.1*(j+1).
func shifted(scale float64) features.Vector {
	var v features.Vector
	for j := range features.Count {
		base := float64(j + 1)
		v[j] = base + scale*0.1*base
	}
	return v
}

// corpusCSV renders the four-sample corpus with a group-title row above the
// header. skip drops one feature column when not empty.
func corpusCSV(skip string) string {
	var names []string
	var keep []int
	for i, name := range features.Names() {
		if name == skip {
			continue
		}
		names = append(names, name)
		keep = append(keep, i)
	}

	var b strings.Builder
	b.WriteString("Voice features,,\n")
	b.WriteString("id," + strings.Join(names, ",") + ",class\n")
	rows := []struct {
		scale float64
		class int
	}{{1.0, 1}, {1.2, 1}, {-1.0, 0}, {-1.2, 0}}
	for i, r := range rows {
		v := shifted(r.scale)
		cells := []string{fmt.Sprint(i + 1)}
		for _, j := range keep {
			cells = append(cells, fmt.Sprint(v[j]))
		}
		cells = append(cells, fmt.Sprint(r.class))
		b.WriteString(strings.Join(cells, ",") + "\n")
	}
	return b.String()
}

// countingSource serves a fixed body and counts opens. When gate is set,
// Open signals started and blocks until gate is closed.
type countingSource struct {
	body    string
	err     error
	opens   atomic.Int32
	started chan struct{}
	gate    chan struct{}
}

func (s *countingSource) Open(ctx context.Context, _ string) (io.ReadCloser, error) {
	n := s.opens.Add(1)
	if s.gate != nil {
		if n == 1 && s.started != nil {
			close(s.started)
		}
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}
