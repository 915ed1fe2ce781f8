package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestApplyRejectsDeletedUnit(t *testing.T) {
	u := Unit{ID: 1, IsDeleted: true}
	err := u.Apply(Patch{Description: ptr("new")}, time.Now())
	require.ErrorIs(t, err, ErrDeleted)
	require.Empty(t, u.Description)
}

func TestApplyWarehouseMoveClearsCabinet(t *testing.T) {
	u := Unit{ID: 1, CurrentWarehouseID: 10, CurrentCabinetID: 3}
	require.NoError(t, u.Apply(Patch{WarehouseID: ptr(int64(20))}, time.Now()))
	require.Equal(t, int64(20), u.CurrentWarehouseID)
	require.Zero(t, u.CurrentCabinetID)

	// moving into a cabinet in the same patch wins over the clear
	require.NoError(t, u.Apply(Patch{WarehouseID: ptr(int64(30)), CabinetID: ptr(int64(7))}, time.Now()))
	require.Equal(t, int64(30), u.CurrentWarehouseID)
	require.Equal(t, int64(7), u.CurrentCabinetID)
}

func TestApplyInUseRequiresEmployee(t *testing.T) {
	u := Unit{ID: 1}
	err := u.Apply(Patch{IsBeingUsed: ptr(true)}, time.Now())
	require.ErrorIs(t, err, ErrNoEmployee)
	require.False(t, u.IsBeingUsed)
	require.Zero(t, u.NumberOfUses)
}

func TestApplyInUseBumpsCounterAndTimestamps(t *testing.T) {
	u := Unit{ID: 1}
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	require.NoError(t, u.Apply(Patch{IsBeingUsed: ptr(true), LastUsedByEmployeeID: ptr(int64(77))}, first))
	require.True(t, u.IsBeingUsed)
	require.Equal(t, 1, u.NumberOfUses)
	require.Equal(t, first, u.FirstUsedAt)
	require.Equal(t, first, u.LastUsedAt)

	require.NoError(t, u.Apply(Patch{IsBeingUsed: ptr(false)}, first))
	require.NoError(t, u.Apply(Patch{IsBeingUsed: ptr(true)}, second))
	require.Equal(t, 2, u.NumberOfUses)
	require.Equal(t, first, u.FirstUsedAt)
	require.Equal(t, second, u.LastUsedAt)
	require.Equal(t, int64(77), u.LastUsedByEmployeeID)
}

func TestApplySoftDeleteClearsInUse(t *testing.T) {
	u := Unit{ID: 1, IsBeingUsed: true, LastUsedByEmployeeID: 77}
	require.NoError(t, u.Apply(Patch{IsDeleted: ptr(true)}, time.Now()))
	require.True(t, u.IsDeleted)
	require.False(t, u.IsBeingUsed)

	// further mutations are rejected once deleted
	require.ErrorIs(t, u.Apply(Patch{IsEmpty: ptr(true)}, time.Now()), ErrDeleted)
}

func TestApplyUnsetPointersLeaveFieldsAlone(t *testing.T) {
	u := Unit{ID: 1, Description: "keep", CurrentWarehouseID: 10, IsEmpty: true}
	require.NoError(t, u.Apply(Patch{}, time.Now()))
	require.Equal(t, "keep", u.Description)
	require.Equal(t, int64(10), u.CurrentWarehouseID)
	require.True(t, u.IsEmpty)
}
