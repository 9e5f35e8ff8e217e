package command_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/command"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite"
)

const testInstance = "inst-1"

// sequentialIDs is a deterministic idgen.Generator for tests.
type sequentialIDs struct {
	prefix string
	next   int
}

func (g *sequentialIDs) NextID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

func newEngine(t *testing.T, opts ...command.Option) (*command.Commands, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return command.New(store, opts...), store
}

func TestWithIDGeneratorControlsAssignedIDs(t *testing.T) {
	cmds, _ := newEngine(t, command.WithIDGenerator(&sequentialIDs{prefix: "id"}))
	ctx := context.Background()

	first, err := cmds.AddOrg(ctx, testInstance, "First Org")
	require.NoError(t, err)
	require.Equal(t, "id-1", first.ID)

	second, err := cmds.AddOrg(ctx, testInstance, "Second Org")
	require.NoError(t, err)
	require.Equal(t, "id-2", second.ID)
}

// contendedStore runs a hook before delegating each push, simulating a
// concurrent writer racing the command engine.
type contendedStore struct {
	*sqlite.Store
	beforePush func(ctx context.Context) error
}

func (s *contendedStore) Push(ctx context.Context, instanceID string, commands ...eventstore.Command) ([]eventstore.Event, error) {
	if s.beforePush != nil {
		if err := s.beforePush(ctx); err != nil {
			return nil, err
		}
	}
	return s.Store.Push(ctx, instanceID, commands...)
}

func newContendedEngine(t *testing.T) (*command.Commands, *contendedStore) {
	t.Helper()
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	contended := &contendedStore{Store: store}
	return command.New(contended), contended
}

func pushCompetingOrgChange(t *testing.T, store *sqlite.Store, orgID, name string) {
	t.Helper()
	_, err := store.Push(context.Background(), testInstance, eventstore.Command{
		InstanceID:    testInstance,
		Aggregate:     eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: orgID},
		Type:          events.OrgChangedType,
		Payload:       events.OrgChanged{Name: name},
		ResourceOwner: orgID,
	})
	require.NoError(t, err)
}

func TestExecRetriesAfterConcurrentPush(t *testing.T) {
	cmds, contended := newContendedEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)

	// The first push of the change loses the race; the retry reloads the
	// aggregate and wins.
	conflicts := 0
	contended.beforePush = func(context.Context) error {
		conflicts++
		contended.beforePush = nil
		pushCompetingOrgChange(t, contended.Store, created.ID, "acme international")
		return nil
	}

	_, err = cmds.ChangeOrg(ctx, testInstance, created.ID, "acme gmbh")
	require.NoError(t, err)
	require.Equal(t, 1, conflicts)

	types := aggregateEventTypes(t, contended.Store, eventstore.AggregateTypeOrg, created.ID)
	require.Equal(t, []eventstore.EventType{"org.added", "org.changed", "org.changed"}, types)
}

func TestExecAbortsWhenConflictsPersist(t *testing.T) {
	cmds, contended := newContendedEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)

	conflicts := 0
	contended.beforePush = func(context.Context) error {
		conflicts++
		pushCompetingOrgChange(t, contended.Store, created.ID, fmt.Sprintf("rival-%d", conflicts))
		return nil
	}

	_, err = cmds.ChangeOrg(ctx, testInstance, created.ID, "acme gmbh")
	require.Error(t, err)
	require.True(t, apperror.IsAborted(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "COMMAND-001", appErr.Code)
	require.Equal(t, 3, conflicts)
}

// aggregateEventTypes returns the event types of one aggregate stream in
// log order.
func aggregateEventTypes(t *testing.T, store *sqlite.Store, aggregateType eventstore.AggregateType, aggregateID string) []eventstore.EventType {
	t.Helper()
	events, err := store.Query(context.Background(),
		eventstore.NewFilter(testInstance).Aggregate(aggregateType, aggregateID))
	require.NoError(t, err)
	types := make([]eventstore.EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	return types
}
