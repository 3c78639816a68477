package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gosuperior/domain/trial"
	"gosuperior/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var trialColumns = trial.Columns{Genotype: "gen", Environment: "env", Region: "reg", Trait: "y"}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trial.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadObservations_CSV(t *testing.T) {
	path := writeCSV(t, "gen,env,reg,y\n"+
		"A,E1,North,5.2\n"+
		"B,E1,North,NA\n"+
		"C, E2 ,South,4\n"+
		",E2,South,3\n"+
		"D,E2,South,\n")

	obs, err := NewDataReader(path).ReadObservations(context.Background(), trialColumns)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, trial.Observation{Genotype: "A", Environment: "E1", Region: "North", Value: 5.2}, obs[0])
	assert.Equal(t, trial.EnvironmentID("E2"), obs[1].Environment)
}

func TestReadObservations_WithoutRegion(t *testing.T) {
	path := writeCSV(t, "gen,env,y\nA,E1,1\n")
	cols := trialColumns
	cols.Region = ""

	obs, err := NewDataReader(path).ReadObservations(context.Background(), cols)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Empty(t, obs[0].Region)
}

func TestReadObservations_MissingColumn(t *testing.T) {
	path := writeCSV(t, "gen,env,y\nA,E1,1\n")

	_, err := NewDataReader(path).ReadObservations(context.Background(), trialColumns)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestReadObservations_MissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "absent.csv")).ReadData()
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestReadObservations_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trial.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"gen", "env", "reg", "y"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"A", "E1", "North", 7.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"B", "E1", "North", "NA"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	obs, err := NewDataReader(path).ReadObservations(context.Background(), trialColumns)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 7.5, obs[0].Value)
	assert.Equal(t, trial.RegionID("North"), obs[0].Region)
}

func TestParseTrait(t *testing.T) {
	for _, missing := range []string{"", "NA", "na", "NaN", ".", "NULL", "abc", "Inf"} {
		_, ok := parseTrait(missing)
		assert.False(t, ok, "%q", missing)
	}
	v, ok := parseTrait("-1.5e2")
	assert.True(t, ok)
	assert.Equal(t, -150.0, v)
}

func TestWriteObservationsCSV(t *testing.T) {
	in := []trial.Observation{
		{Genotype: "A", Environment: "E1", Region: "North", Value: 7.5},
		{Genotype: "B", Environment: "E2", Region: "South", Value: -1},
	}
	path := filepath.Join(t.TempDir(), "trial.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteObservationsCSV(f, in, trialColumns))
	require.NoError(t, f.Close())

	out, err := NewDataReader(path).ReadObservations(context.Background(), trialColumns)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
