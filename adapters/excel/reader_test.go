package excel

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"triadbalance/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadMatrix_CSV(t *testing.T) {
	path := writeFile(t, "sub-01.csv", "1,2,3,4\n4,3,2,1\n0.5,NaN,,2\n")

	ts, err := NewDataReader(path).ReadMatrix()
	require.NoError(t, err)

	r, c := ts.Data.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)
	assert.Nil(t, ts.Labels)
	assert.Equal(t, 2.0, ts.Data.At(0, 1))
	assert.True(t, math.IsNaN(ts.Data.At(2, 1)))
	assert.True(t, math.IsNaN(ts.Data.At(2, 2)))
}

func TestReadMatrix_CSVHeaderAndLabels(t *testing.T) {
	path := writeFile(t, "labelled.csv", "roi,t0,t1,t2\nPCC,1,2,3\nmPFC,3,NA,1\nIPL, 2 ,2,null\n")

	ts, err := NewDataReader(path).ReadMatrix()
	require.NoError(t, err)

	assert.Equal(t, []string{"PCC", "mPFC", "IPL"}, ts.Labels)
	r, c := ts.Data.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 2.0, ts.Data.At(2, 0))
	assert.True(t, math.IsNaN(ts.Data.At(1, 1)))
	assert.True(t, math.IsNaN(ts.Data.At(2, 2)))
}

func TestReadMatrix_Transposed(t *testing.T) {
	path := writeFile(t, "time_by_roi.csv", "1,10\n2,20\n3,30\n")

	reader := NewDataReader(path)
	reader.Transposed = true
	ts, err := reader.ReadMatrix()
	require.NoError(t, err)

	want := mat.NewDense(2, 3, []float64{1, 2, 3, 10, 20, 30})
	assert.True(t, mat.Equal(want, ts.Data))
}

func TestReadMatrix_Errors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		code       string
		transposed bool
	}{
		{"ragged", "1,2,3\n1,2\n", errors.CodeInvalidShape, false},
		{"text cell", "1,2,3\n1,abc,3\n", errors.CodeInvalidInput, false},
		{"empty", "\n\n", errors.CodeInvalidShape, false},
		{"header only", "a,b,c\n", errors.CodeInvalidShape, false},
		{"transposed ragged", "1,2,3\n4,5\n7,8,9\n10,11,12\n", errors.CodeInvalidShape, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewDataReader(writeFile(t, "bad.csv", tt.content))
			reader.Transposed = tt.transposed
			_, err := reader.ReadMatrix()
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}

	_, err := NewDataReader(filepath.Join(t.TempDir(), "missing.csv")).ReadMatrix()
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestReadMatrix_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"roi", "t0", "t1", "t2"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"a", 1.5, 2, 3}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"b", 3, 2}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"c", 0, -1, 4}))
	path := filepath.Join(t.TempDir(), "sub.xlsx")
	require.NoError(t, f.SaveAs(path))

	ts, err := NewDataReader(path).ReadMatrix()
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, ts.Labels)
	r, c := ts.Data.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 1.5, ts.Data.At(0, 0))
	assert.Equal(t, -1.0, ts.Data.At(2, 1))
	assert.True(t, math.IsNaN(ts.Data.At(1, 2)), "trailing empty cell reads as missing")
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{1, 0.25, -2, math.NaN(), 3e-7, 4})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, m, []string{"x", "y", "z"}))
	path := writeFile(t, "out.csv", buf.String())

	ts, err := NewDataReader(path).ReadMatrix()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, ts.Labels)
	assert.Equal(t, -2.0, ts.Data.At(1, 0))
	assert.True(t, math.IsNaN(ts.Data.At(1, 1)))
	assert.Equal(t, 3e-7, ts.Data.At(2, 0))

	err = WriteCSV(&buf, m, []string{"only-one"})
	assert.Equal(t, errors.CodeInvalidShape, errors.GetCode(err))
}
