package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"grants-cloud/internal/audit"
	"grants-cloud/internal/budget/application"
	budget "grants-cloud/internal/budget/domain"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []application.OverEngagementDetected
}

func (n *recordingNotifier) NotifyOverEngagement(_ context.Context, event application.OverEngagementDetected) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func TestAuditSubscribersRecordWorkflow(t *testing.T) {
	f := newFixture(t, nil)
	core, logs := observer.New(zap.InfoLevel)
	auditLogger, err := audit.NewZapLogger(zap.New(core))
	require.NoError(t, err)
	require.NoError(t, application.RegisterAuditSubscribers(f.bus, auditLogger))

	s := f.seedGrant(budget.GrantStatusActive)
	eng := f.createEngagement(s, 100)
	_, err = f.services.Engagements.SignApproval(as(coordinator), eng.ID, budget.SlotSupervisor1, "")
	require.NoError(t, err)

	var actions []string
	for _, entry := range logs.All() {
		actions = append(actions, entry.ContextMap()["action"].(string))
	}
	assert.Equal(t, []string{
		"grant.create",
		"budget.line.added",
		"budget.subline.added",
		"engagement.create",
		"approval.sign",
	}, actions)

	last := logs.All()[len(logs.All())-1].ContextMap()
	assert.Equal(t, "u-1", last["actor"])
	assert.Equal(t, string(budget.ProfessionGrantCoordinator), last["profession"])
	assert.Equal(t, eng.ID, last["resource_id"])
	assert.Equal(t, s.grantID, last["grant_id"])
}

func TestNotifierSubscriberReceivesOverEngagement(t *testing.T) {
	f := newFixture(t, nil)
	notifier := &recordingNotifier{}
	require.NoError(t, application.RegisterNotifier(f.bus, notifier))
	require.NoError(t, application.RegisterMetricsSubscribers(f.bus))

	s := f.seedGrant(budget.GrantStatusActive)
	f.createEngagement(s, 900)
	assert.Empty(t, notifier.events)
	eng := f.createEngagement(s, 200)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, eng.Number, notifier.events[0].EngagementNumber)
	assert.Equal(t, "GR-2024-01", notifier.events[0].GrantCode)
	assert.InDelta(t, 110, notifier.events[0].EngagementRate, 1e-9)
}

func TestRegisterSubscribersRejectsNil(t *testing.T) {
	f := newFixture(t, nil)
	require.Error(t, application.RegisterAuditSubscribers(nil, nil))
	require.Error(t, application.RegisterAuditSubscribers(f.bus, nil))
	require.Error(t, application.RegisterMetricsSubscribers(nil))
	require.Error(t, application.RegisterNotifier(f.bus, nil))
}
