package draws

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gosuperior/domain/core"
	"gosuperior/domain/posterior"
	"gosuperior/domain/trial"
	"gosuperior/internal/errors"
)

// Long-format header. Every row is one draw of one effect parameter; the
// parameter is named by explicit genotype/environment/region columns.
const (
	ColSample      = "sample"
	ColEffect      = "effect"
	ColGenotype    = "genotype"
	ColEnvironment = "environment"
	ColRegion      = "region"
	ColValue       = "value"
)

// Header is the column order written by external extraction scripts.
var Header = []string{ColSample, ColEffect, ColGenotype, ColEnvironment, ColRegion, ColValue}

// FileReader reads posterior draws from a long-format CSV file or a JSON
// encoded SampleSet.
type FileReader struct {
	path    string
	samples int // declared S; zero infers it from the largest sample number
}

// NewFileReader creates a reader. declaredSamples may be zero.
func NewFileReader(path string, declaredSamples int) *FileReader {
	return &FileReader{path: path, samples: declaredSamples}
}

// ReadPosterior reads the file.
func (r *FileReader) ReadPosterior(ctx context.Context) (*posterior.SampleSet, error) {
	start := time.Now()
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.InvalidInput(fmt.Sprintf("posterior file not found: %s", r.path))
		}
		return nil, fmt.Errorf("failed to open posterior file: %w", err)
	}
	defer f.Close()

	var set *posterior.SampleSet
	if strings.EqualFold(filepath.Ext(r.path), ".json") {
		set, err = DecodeJSON(f)
	} else {
		set, err = DecodeCSV(ctx, f, r.samples)
	}
	if err != nil {
		return nil, err
	}
	if r.samples > 0 && set.Samples != r.samples {
		return nil, core.NewDimensionMismatch("*", "file declares %d samples, expected %d", set.Samples, r.samples)
	}

	log.Printf("[DrawsReader] Read %d posterior columns x %d samples from %s in %v",
		len(set.Columns), set.Samples, r.path, time.Since(start))
	return set, nil
}

// DecodeJSON decodes a SampleSet document.
func DecodeJSON(rd io.Reader) (*posterior.SampleSet, error) {
	var set posterior.SampleSet
	if err := json.NewDecoder(rd).Decode(&set); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to decode posterior JSON")
	}
	return &set, nil
}

type columnKey struct {
	effect      posterior.Effect
	genotype    string
	environment string
	region      string
}

// DecodeCSV decodes long-format draws. Sample numbers are 1-based. When
// declared is zero, S is the largest sample number seen. Every parameter must
// carry each sample 1..S exactly once.
func DecodeCSV(ctx context.Context, rd io.Reader, declared int) (*posterior.SampleSet, error) {
	cr := csv.NewReader(rd)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to read posterior header")
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{ColSample, ColEffect, ColGenotype, ColValue} {
		if _, ok := pos[required]; !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("posterior file has no %q column", required))
		}
	}
	field := func(rec []string, name string) string {
		i, ok := pos[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	values := make(map[columnKey]map[int]float64)
	var order []columnKey
	maxSample := 0

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to read posterior line %d", line)
		}
		if line%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		sample, err := strconv.Atoi(field(rec, ColSample))
		if err != nil || sample < 1 {
			return nil, errors.InvalidInput(fmt.Sprintf("line %d: invalid sample number %q", line, field(rec, ColSample)))
		}
		value, err := strconv.ParseFloat(field(rec, ColValue), 64)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("line %d: invalid value %q", line, field(rec, ColValue)))
		}
		key := columnKey{
			effect:   posterior.Effect(strings.ToLower(field(rec, ColEffect))),
			genotype: field(rec, ColGenotype),
		}
		switch key.effect {
		case posterior.EffectMain:
		case posterior.EffectGxE:
			key.environment = field(rec, ColEnvironment)
		case posterior.EffectGxR:
			key.region = field(rec, ColRegion)
		default:
			return nil, core.NewDimensionMismatch(string(key.effect), "line %d: unknown effect", line)
		}

		draws, ok := values[key]
		if !ok {
			draws = make(map[int]float64)
			values[key] = draws
			order = append(order, key)
		}
		if _, dup := draws[sample]; dup {
			return nil, core.NewDimensionMismatch(string(key.effect), "line %d: sample %d of %s repeated", line, sample, describeKey(key))
		}
		draws[sample] = value
		if sample > maxSample {
			maxSample = sample
		}
	}

	samples := declared
	if samples == 0 {
		samples = maxSample
	}
	set := &posterior.SampleSet{Samples: samples, Columns: make([]posterior.Column, 0, len(order))}
	for _, key := range order {
		draws := values[key]
		if len(draws) != samples {
			return nil, core.NewDimensionMismatch(string(key.effect), "%s has %d draws, declared %d", describeKey(key), len(draws), samples)
		}
		col := posterior.Column{
			Effect:      key.effect,
			Genotype:    trial.GenotypeID(key.genotype),
			Environment: trial.EnvironmentID(key.environment),
			Region:      trial.RegionID(key.region),
			Draws:       make([]float64, samples),
		}
		for s, v := range draws {
			if s > samples {
				return nil, core.NewDimensionMismatch(string(key.effect), "%s has sample %d beyond declared %d", describeKey(key), s, samples)
			}
			col.Draws[s-1] = v
		}
		set.Columns = append(set.Columns, col)
	}
	return set, nil
}

// EncodeCSV writes a sample set in long format.
func EncodeCSV(w io.Writer, set *posterior.SampleSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	cols := append([]posterior.Column(nil), set.Columns...)
	sort.SliceStable(cols, func(a, b int) bool { return cols[a].Effect < cols[b].Effect })
	for _, col := range cols {
		for s, v := range col.Draws {
			rec := []string{
				strconv.Itoa(s + 1),
				string(col.Effect),
				string(col.Genotype),
				string(col.Environment),
				string(col.Region),
				strconv.FormatFloat(v, 'g', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func describeKey(k columnKey) string {
	switch k.effect {
	case posterior.EffectGxE:
		return fmt.Sprintf("%s[%s,%s]", k.effect, k.genotype, k.environment)
	case posterior.EffectGxR:
		return fmt.Sprintf("%s[%s,%s]", k.effect, k.genotype, k.region)
	}
	return fmt.Sprintf("%s[%s]", k.effect, k.genotype)
}
