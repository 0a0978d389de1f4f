package metrics

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// WriteText writes every metric family of gatherer in the Prometheus text
// exposition format.
func WriteText(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// DumpFile writes the text exposition of gatherer to path.
func DumpFile(path string, gatherer prometheus.Gatherer) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteText(f, gatherer)
}

// ParseText decodes a text exposition into metric families keyed by name.
func ParseText(r io.Reader) (map[string]*dto.MetricFamily, error) {
	decoder := expfmt.NewDecoder(r, expfmt.FmtText)
	families := make(map[string]*dto.MetricFamily)

	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		families[mf.GetName()] = &mf
	}
	return families, nil
}

// Totals sums the samples of every counter and gauge family of gatherer,
// keyed by family name. Histograms contribute their sample count.
func Totals(gatherer prometheus.Gatherer) (map[string]float64, error) {
	families, err := gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	totals := make(map[string]float64, len(families))
	for _, mf := range families {
		totals[mf.GetName()] = familyTotal(mf)
	}
	return totals, nil
}

func familyTotal(mf *dto.MetricFamily) float64 {
	var sum float64
	for _, m := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			sum += m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			sum += m.GetGauge().GetValue()
		case dto.MetricType_HISTOGRAM:
			sum += float64(m.GetHistogram().GetSampleCount())
		}
	}
	return sum
}
