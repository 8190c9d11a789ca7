package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acorlabs/approval/model"
	"github.com/acorlabs/approval/runtime/instance"
	"github.com/acorlabs/approval/service/dao"
)

func newInstance(id string) *instance.Instance {
	def := &model.Process{
		ID:         "expense",
		Sequential: true,
		Levels:     []*model.Level{{ID: "manager"}, {ID: "finance"}},
	}
	return instance.New(id, def, time.Now())
}

func TestService_SaveLoad(t *testing.T) {
	ctx := context.Background()
	service := New()

	inst := newInstance("c-1")
	require.NoError(t, service.Save(ctx, inst))
	assert.Equal(t, 1, inst.Revision)

	loaded, err := service.Load(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, inst, loaded)

	// Stores hand out copies, mutating a loaded instance must not leak back.
	loaded.Status = instance.StatusCancelled
	reloaded, err := service.Load(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusPending, reloaded.Status)

	_, err = service.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	_, err = service.Load(ctx, "")
	assert.ErrorIs(t, err, dao.ErrInvalidID)
	assert.ErrorIs(t, service.Save(ctx, nil), dao.ErrNilEntity)
}

func TestService_SaveConflicts(t *testing.T) {
	ctx := context.Background()
	service := New()

	// Create with a non-zero revision: the record does not exist yet.
	stale := newInstance("c-1")
	stale.Revision = 3
	assert.ErrorIs(t, service.Save(ctx, stale), dao.ErrConflict)

	inst := newInstance("c-1")
	require.NoError(t, service.Save(ctx, inst))

	// Two readers load revision 1; the first write wins, the second conflicts.
	first, err := service.Load(ctx, "c-1")
	require.NoError(t, err)
	second, err := service.Load(ctx, "c-1")
	require.NoError(t, err)

	first.Status = instance.StatusCancelled
	require.NoError(t, service.Save(ctx, first))
	assert.Equal(t, 2, first.Revision)

	second.Status = instance.StatusApproved
	assert.ErrorIs(t, service.Save(ctx, second), dao.ErrConflict)

	// A reload picks up the winning write and can save again.
	reloaded, err := service.Load(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusCancelled, reloaded.Status)
	require.NoError(t, service.Save(ctx, reloaded))
}

func TestService_DeleteList(t *testing.T) {
	ctx := context.Background()
	service := New()

	pending := newInstance("c-1")
	require.NoError(t, service.Save(ctx, pending))

	cancelled := newInstance("c-2")
	cancelled.ApplyCancel(time.Now())
	require.NoError(t, service.Save(ctx, cancelled))

	all, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pendingOnly, err := service.List(ctx, dao.NewParameter("Status", "pending"))
	require.NoError(t, err)
	require.Len(t, pendingOnly, 1)
	assert.Equal(t, "c-1", pendingOnly[0].CorrelationID)

	require.NoError(t, service.Delete(ctx, "c-1"))
	assert.ErrorIs(t, service.Delete(ctx, "c-1"), dao.ErrNotFound)

	all, err = service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
