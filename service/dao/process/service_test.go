package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/acorlabs/approval/model"
)

func TestService_Lookup(t *testing.T) {
	ctx := context.Background()
	service := New(afs.New(), WithBaseURL("testdata"))

	definition, err := service.Lookup(ctx, "expense")
	require.NoError(t, err)
	assert.Equal(t, "expense", definition.ID)
	assert.True(t, definition.Sequential)
	assert.Equal(t, []string{"manager", "finance"}, definition.LevelIDs())

	// Cached on first use: the same pointer comes back.
	again, err := service.Lookup(ctx, "expense")
	require.NoError(t, err)
	assert.Same(t, definition, again)

	// A document without an id inherits it from the file name.
	anonymous, err := service.Lookup(ctx, "anonymous")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", anonymous.ID)

	_, err = service.Lookup(ctx, "missing")
	assert.Error(t, err)
	_, err = service.Lookup(ctx, "broken")
	assert.Error(t, err, "definitions failing validation must not load")
	_, err = service.Lookup(ctx, "")
	assert.Error(t, err)
}

func TestService_RegisterRefresh(t *testing.T) {
	ctx := context.Background()
	service := New(afs.New(), WithBaseURL("testdata"))

	registered := &model.Process{
		ID:     "contract",
		Levels: []*model.Level{{ID: "legal"}},
	}
	require.NoError(t, service.Register(registered))

	definition, err := service.Lookup(ctx, "contract")
	require.NoError(t, err)
	assert.Same(t, registered, definition)

	assert.Error(t, service.Register(nil))
	assert.Error(t, service.Register(&model.Process{ID: "empty"}))

	// Refresh drops the cached copy; contract has no YAML source, so the next
	// lookup fails instead of serving stale data.
	service.Refresh("contract")
	_, err = service.Lookup(ctx, "contract")
	assert.Error(t, err)
}

func TestService_WithProcesses(t *testing.T) {
	ctx := context.Background()
	service := New(nil, WithProcesses(&model.Process{
		ID:     "contract",
		Levels: []*model.Level{{ID: "legal"}},
	}))

	definition, err := service.Lookup(ctx, "contract")
	require.NoError(t, err)
	assert.Equal(t, "contract", definition.ID)

	// Without a base URL unknown ids fail fast.
	_, err = service.Lookup(ctx, "missing")
	assert.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	definition, err := DecodeYAML([]byte("id: simple\nlevels:\n  - id: only\n"))
	require.NoError(t, err)
	assert.Equal(t, "simple", definition.ID)
	assert.False(t, definition.Sequential)

	_, err = DecodeYAML([]byte("levels: {broken"))
	assert.Error(t, err)
	_, err = DecodeYAML([]byte("id: nolevel\n"))
	assert.Error(t, err)
}
