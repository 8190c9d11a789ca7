package fs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

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
	return instance.New(id, def, time.Now().Truncate(time.Second))
}

func TestService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	service := New(afs.New(), t.TempDir())

	inst := newInstance("c-1")
	require.NoError(t, service.Save(ctx, inst))
	assert.Equal(t, 1, inst.Revision)

	loaded, err := service.Load(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", loaded.CorrelationID)
	assert.Equal(t, instance.StatusPending, loaded.Status)
	assert.Equal(t, "manager", loaded.CurrentLevelID)
	assert.Equal(t, 1, loaded.Revision)
	assert.Len(t, loaded.Levels, 2)

	_, err = service.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestService_Conflicts(t *testing.T) {
	ctx := context.Background()
	service := New(afs.New(), t.TempDir())

	created := newInstance("c-1")
	created.Revision = 2
	assert.ErrorIs(t, service.Save(ctx, created), dao.ErrConflict)

	inst := newInstance("c-1")
	require.NoError(t, service.Save(ctx, inst))

	stale, err := service.Load(ctx, "c-1")
	require.NoError(t, err)

	inst.Status = instance.StatusCancelled
	require.NoError(t, service.Save(ctx, inst))

	stale.Status = instance.StatusApproved
	assert.ErrorIs(t, service.Save(ctx, stale), dao.ErrConflict)
	// The failed save must not advance the caller's revision.
	assert.Equal(t, 1, stale.Revision)
}

func TestService_DeleteList(t *testing.T) {
	ctx := context.Background()
	service := New(afs.New(), t.TempDir())

	pending := newInstance("c-1")
	require.NoError(t, service.Save(ctx, pending))
	cancelled := newInstance("c-2")
	cancelled.ApplyCancel(time.Now())
	require.NoError(t, service.Save(ctx, cancelled))

	all, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cancelledOnly, err := service.List(ctx, dao.NewParameter("Status", "cancelled"))
	require.NoError(t, err)
	require.Len(t, cancelledOnly, 1)
	assert.Equal(t, "c-2", cancelledOnly[0].CorrelationID)

	require.NoError(t, service.Delete(ctx, "c-1"))
	assert.ErrorIs(t, service.Delete(ctx, "c-1"), dao.ErrNotFound)
}
