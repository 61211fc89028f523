package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandguard/internal/api"
)

func TestDraftRoundTrip(t *testing.T) {
	store := NewFileDraftStore(t.TempDir())
	gw := &fakeGateway{agents: defaultAgents()}
	engine := newTestEngine(t, gw, WithDraftStore(store))

	session := fillToStage(t, engine, gw, StageAgents)
	require.NotEmpty(t, session.WorkspaceID)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, StageAgents, loaded.Stage)
	assert.Equal(t, session.WorkspaceID, loaded.WorkspaceID)
	assert.Equal(t, "Acme Mutual", loaded.Fields.BrandName)
	assert.True(t, loaded.Fields.SelectedAgentIDs["agent-brand"])

	resumed, err := engine.Resume()
	require.NoError(t, err)
	assert.Equal(t, session.WorkspaceID, resumed.WorkspaceID)
}

func TestDraftMissing(t *testing.T) {
	store := NewFileDraftStore(t.TempDir())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.NoError(t, store.Delete(), "deleting a missing draft is fine")
}

func TestCompleteDiscardsDraft(t *testing.T) {
	store := NewFileDraftStore(t.TempDir())
	gw := &fakeGateway{
		agents: defaultAgents(),
		rulePages: map[int][]api.Rule{
			1: {{ID: "r1", Text: "a", Category: api.CategoryBrand, Severity: api.SeverityHigh, IsActive: true, SourceGuidelineID: "g1"}},
		},
	}
	engine := newTestEngine(t, gw, WithDraftStore(store))
	session := fillToStage(t, engine, gw, StageReview)

	_, err := store.Load()
	require.NoError(t, err)

	_, err = engine.Complete(session)
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestResumeWithoutStore(t *testing.T) {
	gw := &fakeGateway{agents: defaultAgents()}
	engine := newTestEngine(t, gw)
	_, err := engine.Resume()
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestReplaceRuleSplicesById(t *testing.T) {
	session := &Session{
		ExtractedRules: []api.Rule{
			{ID: "r1", Text: "old", Category: api.CategoryBrand, Severity: api.SeverityHigh, IsActive: true},
			{ID: "r2", Text: "keep", Category: api.CategorySEO, Severity: api.SeverityLow, IsActive: true},
		},
	}
	session.ReplaceRule(api.Rule{ID: "r1", Text: "new", Category: api.CategoryBrand, Severity: api.SeverityMedium, IsActive: true})

	rules := session.Rules()
	assert.Equal(t, "new", rules[0].Text)
	assert.Equal(t, api.SeverityMedium, rules[0].Severity)
	assert.Equal(t, "keep", rules[1].Text)
}
