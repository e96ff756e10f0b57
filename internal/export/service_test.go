package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/marcus-hale/chartscan/internal/common"
)

const sampleMarkup = `<document>
  <patient><name>Jane Roe</name><dob>1984-02-11</dob><gender>F</gender></patient>
  <doctor><name>Dr. Alan Mercer</name><license>MD-55012</license><clinic>Lakeside Family Clinic</clinic></doctor>
  <medicine><name>Amoxicillin</name><dosage>500mg</dosage><frequency>3x daily</frequency><duration>7 days</duration></medicine>
  <vitals><height>168cm</height><weight>61kg</weight><bloodType>O+</bloodType><bp>118/76</bp></vitals>
  <notes>Order ID: RX-1001</notes>
</document>`

func TestRawMarkupPassthrough(t *testing.T) {
	svc := NewService(nil)
	assert.Equal(t, []byte(sampleMarkup), svc.RawMarkup(sampleMarkup))
}

func TestCSVExport(t *testing.T) {
	svc := NewService(nil)
	out, err := svc.CSV(sampleMarkup)
	require.NoError(t, err)

	lines := strings.Split(string(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"Order ID"`)
	assert.Contains(t, lines[1], `"RX-1001"`)
}

func TestCSVExportConversionFailure(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.CSV("<document><unclosed>")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConversion)
}

func TestCSVExportEmptyInput(t *testing.T) {
	svc := NewService(nil)
	out, err := svc.CSV("")
	require.NoError(t, err)
	// Header-only table for an empty batch.
	assert.Contains(t, string(out), `"Order ID"`)
}

func TestXLSXExport(t *testing.T) {
	svc := NewService(nil)
	out, err := svc.XLSX(sampleMarkup)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	a1, err := f.GetCellValue("Documents", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Order ID", a1)

	a2, err := f.GetCellValue("Documents", "A2")
	require.NoError(t, err)
	assert.Equal(t, "RX-1001", a2)

	b2, err := f.GetCellValue("Documents", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", b2)
}

func TestXLSXExportConversionFailure(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.XLSX("<document><unclosed>")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConversion)
}
