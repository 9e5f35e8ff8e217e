package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func expectVersion(v uint64) *uint64 { return &v }

func orgCommand(orgID string, eventType eventstore.EventType, payload any) eventstore.Command {
	return eventstore.Command{
		Aggregate:     eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: orgID},
		Type:          eventType,
		Payload:       payload,
		ResourceOwner: orgID,
	}
}

func TestPushAssignsVersionsAndPositions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.Push(ctx, "inst-1", orgCommand("org-1", "org.added", map[string]string{"name": "acme"}))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, uint64(1), first[0].AggregateVersion)
	assert.Equal(t, uint32(0), first[0].InPositionOrder)
	assert.NotEmpty(t, first[0].ID)

	second, err := store.Push(ctx, "inst-1", orgCommand("org-1", "org.changed", map[string]string{"name": "acme gmbh"}))
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, uint64(2), second[0].AggregateVersion)
	assert.True(t, first[0].Position.LessThan(second[0].Position), "positions must grow across pushes")
}

func TestPushSharesBasePositionWithinOnePush(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	events, err := store.Push(ctx, "inst-1",
		orgCommand("org-1", "org.added", nil),
		orgCommand("org-1", "org.changed", nil),
		orgCommand("org-2", "org.added", nil),
	)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for i, event := range events {
		assert.True(t, events[0].Position.Equal(event.Position), "all events of one push share the base position")
		assert.Equal(t, uint32(i), event.InPositionOrder)
	}
	assert.Equal(t, uint64(1), events[0].AggregateVersion)
	assert.Equal(t, uint64(2), events[1].AggregateVersion)
	assert.Equal(t, uint64(1), events[2].AggregateVersion)
}

func TestPushConcurrencyConflict(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	cmd := orgCommand("org-1", "org.added", nil)
	cmd.ExpectedVersion = expectVersion(0)
	_, err := store.Push(ctx, "inst-1", cmd)
	require.NoError(t, err)

	stale := orgCommand("org-1", "org.changed", nil)
	stale.ExpectedVersion = expectVersion(0)
	_, err = store.Push(ctx, "inst-1", stale)
	require.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)

	// Nothing may have been written by the failed push.
	events, err := store.Query(ctx, eventstore.NewFilter("inst-1"))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPushChecksOnlyFirstExpectedVersionPerAggregate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := orgCommand("org-1", "org.added", nil)
	first.ExpectedVersion = expectVersion(0)
	// The second command builds on the first within the same push; its
	// expectation is not checked against storage.
	second := orgCommand("org-1", "org.changed", nil)
	second.ExpectedVersion = expectVersion(0)

	events, err := store.Push(ctx, "inst-1", first, second)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(2), events[1].AggregateVersion)
}

func TestUniqueConstraints(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	claim := orgCommand("org-1", "org.domain.added", nil)
	claim.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewAddUniqueConstraint("org_domain", "example.com", "ORG-DOMAIN-002"),
	}
	_, err := store.Push(ctx, "inst-1", claim)
	require.NoError(t, err)

	duplicate := orgCommand("org-2", "org.domain.added", nil)
	duplicate.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewAddUniqueConstraint("org_domain", "example.com", "ORG-DOMAIN-002"),
	}
	_, err = store.Push(ctx, "inst-1", duplicate)
	require.ErrorIs(t, err, eventstore.ErrUniqueConstraintViolated)

	var constraintErr *eventstore.UniqueConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, "ORG-DOMAIN-002", constraintErr.ErrorCode)
	assert.Equal(t, "example.com", constraintErr.UniqueField)

	// The same value is free in another instance.
	otherInstance := orgCommand("org-9", "org.domain.added", nil)
	otherInstance.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewAddUniqueConstraint("org_domain", "example.com", "ORG-DOMAIN-002"),
	}
	_, err = store.Push(ctx, "inst-2", otherInstance)
	require.NoError(t, err)

	release := orgCommand("org-1", "org.domain.removed", nil)
	release.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewRemoveUniqueConstraint("org_domain", "example.com"),
	}
	_, err = store.Push(ctx, "inst-1", release)
	require.NoError(t, err)

	reclaim := orgCommand("org-2", "org.domain.added", nil)
	reclaim.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewAddUniqueConstraint("org_domain", "example.com", "ORG-DOMAIN-002"),
	}
	_, err = store.Push(ctx, "inst-1", reclaim)
	require.NoError(t, err)
}

func TestQueryFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Push(ctx, "inst-1",
		orgCommand("org-1", "org.added", nil),
		orgCommand("org-1", "org.domain.added", nil),
		orgCommand("org-1", "org.domain.verified", nil),
	)
	require.NoError(t, err)
	_, err = store.Push(ctx, "inst-1", eventstore.Command{
		Aggregate: eventstore.Aggregate{Type: eventstore.AggregateTypeUser, ID: "user-1"},
		Type:      "user.human.added",
	})
	require.NoError(t, err)
	_, err = store.Push(ctx, "inst-2", orgCommand("org-1", "org.added", nil))
	require.NoError(t, err)

	t.Run("by instance", func(t *testing.T) {
		events, err := store.Query(ctx, eventstore.NewFilter("inst-1"))
		require.NoError(t, err)
		assert.Len(t, events, 4)
	})

	t.Run("by aggregate", func(t *testing.T) {
		events, err := store.Query(ctx, eventstore.NewFilter("inst-1").
			Aggregate(eventstore.AggregateTypeUser, "user-1"))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, eventstore.EventType("user.human.added"), events[0].Type)
	})

	t.Run("by type prefix", func(t *testing.T) {
		events, err := store.Query(ctx, eventstore.NewFilter("inst-1").
			Types("org.domain.*"))
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("after cursor", func(t *testing.T) {
		all, err := store.Query(ctx, eventstore.NewFilter("inst-1"))
		require.NoError(t, err)
		require.Len(t, all, 4)

		cursor := eventstore.CursorOf(&all[1])
		events, err := store.Query(ctx, eventstore.NewFilter("inst-1").
			After(cursor.Position, cursor.InPositionOrder))
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, all[2].ID, events[0].ID)
		assert.Equal(t, all[3].ID, events[1].ID)
	})

	t.Run("limit and descending", func(t *testing.T) {
		events, err := store.Query(ctx, eventstore.NewFilter("inst-1").Desc().WithLimit(1))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, eventstore.EventType("user.human.added"), events[0].Type)
	})
}

func TestQueryOrderIsStableWithinAPush(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	pushed, err := store.Push(ctx, "inst-1",
		orgCommand("org-1", "org.added", nil),
		orgCommand("org-1", "org.domain.added", nil),
		orgCommand("org-1", "org.domain.primary.set", nil),
	)
	require.NoError(t, err)

	events, err := store.Query(ctx, eventstore.NewFilter("inst-1"))
	require.NoError(t, err)
	require.Len(t, events, len(pushed))
	for i := range pushed {
		assert.Equal(t, pushed[i].ID, events[i].ID)
	}
}

func TestLatestPositionAndInstances(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	position, err := store.LatestPosition(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, position.IsZero())

	instances, err := store.Instances(ctx)
	require.NoError(t, err)
	assert.Empty(t, instances)

	_, err = store.Push(ctx, "inst-1", orgCommand("org-1", "org.added", nil))
	require.NoError(t, err)
	pushed, err := store.Push(ctx, "inst-1", orgCommand("org-1", "org.changed", nil))
	require.NoError(t, err)
	_, err = store.Push(ctx, "inst-2", orgCommand("org-1", "org.added", nil))
	require.NoError(t, err)

	position, err = store.LatestPosition(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, position.Equal(pushed[0].Position))

	instances, err = store.Instances(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inst-1", "inst-2"}, instances)
}

func TestNotifierReceivesCommittedEvents(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var notified [][]eventstore.Event
	store.SetNotifier(func(ctx context.Context, events []eventstore.Event) {
		notified = append(notified, events)
	})

	_, err := store.Push(ctx, "inst-1", orgCommand("org-1", "org.added", nil))
	require.NoError(t, err)

	// A failed push must not notify.
	stale := orgCommand("org-1", "org.changed", nil)
	stale.ExpectedVersion = expectVersion(0)
	_, err = store.Push(ctx, "inst-1", stale)
	require.Error(t, err)

	require.Len(t, notified, 1)
	require.Len(t, notified[0], 1)
	assert.Equal(t, eventstore.EventType("org.added"), notified[0][0].Type)
}

func TestPayloadRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	_, err := store.Push(ctx, "inst-1", orgCommand("org-1", "org.added", payload{Name: "acme"}))
	require.NoError(t, err)

	events, err := store.Query(ctx, eventstore.NewFilter("inst-1"))
	require.NoError(t, err)
	require.Len(t, events, 1)

	var decoded payload
	require.NoError(t, events[0].UnmarshalPayload(&decoded))
	assert.Equal(t, "acme", decoded.Name)
	assert.False(t, events[0].CreatedAt.IsZero())
}
