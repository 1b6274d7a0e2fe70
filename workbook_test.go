package calclib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddSheetRejectsDuplicateName(t *testing.T) {
	wb := NewWorkbook(FactoryDefaults{})
	_, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)
	_, err = wb.AddSheet("Sheet1")
	require.Error(t, err)
}

func TestRemoveSheetDropsGraphEdges(t *testing.T) {
	wb := NewWorkbook(FactoryDefaults{})
	sheet, _ := wb.AddSheet("Sheet1")
	set(t, sheet, "A1", "1")
	set(t, sheet, "A2", "=A1+1")
	sheet.Calculate()

	require.NoError(t, wb.RemoveSheet("Sheet1"))
	_, ok := wb.Sheet("Sheet1")
	require.False(t, ok)
	require.Empty(t, wb.invalid)
	require.Empty(t, wb.graph.precedents)
	require.Empty(t, wb.graph.dependents)
}

func TestWorkbookWriteAndOpenRoundTrip(t *testing.T) {
	wb := NewWorkbook(FactoryDefaults{})
	sheet, _ := wb.AddSheet("Sheet1")
	set(t, sheet, "A1", "10")
	set(t, sheet, "A2", "=A1*2")
	sheet.Calculate()

	path := filepath.Join(t.TempDir(), "book.json")
	require.NoError(t, wb.Write(path))
	require.False(t, wb.Modified())

	reopened, err := Open(path, FactoryDefaults{})
	require.NoError(t, err)

	reopenedSheet, ok := reopened.Sheet("Sheet1")
	require.True(t, ok)
	require.Equal(t, NumberVariant(20), value(t, reopenedSheet, "A2"))
}

func TestWorkbookWriteWithBackupKeepsPreviousContents(t *testing.T) {
	wb := NewWorkbook(FactoryDefaults{BackupOnWrite: true})
	sheet, _ := wb.AddSheet("Sheet1")
	set(t, sheet, "A1", "1")
	path := filepath.Join(t.TempDir(), "book.json")
	require.NoError(t, wb.Write(path))

	set(t, sheet, "A1", "2")
	require.NoError(t, wb.Write(path))

	backup, err := Open(path+".bak", FactoryDefaults{})
	require.NoError(t, err)
	backupSheet, ok := backup.Sheet("Sheet1")
	require.True(t, ok)
	require.Equal(t, NumberVariant(1), value(t, backupSheet, "A1"))
}

func TestOpenMissingFileReturnsFileNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.json"), FactoryDefaults{})
	require.Error(t, err)
	calcErr, ok := err.(*CalcError)
	require.True(t, ok)
	require.Equal(t, ErrFileNotFound, calcErr.Code)
}
