package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-tracker/internal/model"
)

func article(title, body string) model.RawArticle {
	return model.NewRawArticle("test-feed", "https://example.com/a", title, body, time.Now())
}

func TestExtract_FullAnnouncement(t *testing.T) {
	a := article(
		"Acme Corp raises $10M Series A",
		"Acme Corp raises $10M Series A led by Greenline Ventures.",
	)

	cand, err := Extract(a)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", cand.CompanyRaw)
	require.NotNil(t, cand.Amount)
	assert.Equal(t, 10_000_000.0, cand.Amount.Value)
	assert.Equal(t, model.StageSeriesA, cand.Stage)
	require.Len(t, cand.Investors, 1)
	assert.Equal(t, "Greenline Ventures", cand.Investors[0].Name)
	assert.Equal(t, model.RoleLead, cand.Investors[0].Role)
	assert.Equal(t, 1.0, cand.Confidence)
}

func TestExtract_NoFundingSignal(t *testing.T) {
	a := article(
		"Acme Corp opens new office",
		"The company celebrated the opening of its second office in Denver.",
	)

	_, err := Extract(a)
	assert.ErrorIs(t, err, ErrNoFundingSignal)
}

func TestExtract_PartialCandidate_LowerConfidence(t *testing.T) {
	a := article(
		"Funding news roundup",
		"Voltaic Systems secured an undisclosed amount this week.",
	)

	cand, err := Extract(a)
	require.NoError(t, err)

	assert.Equal(t, "Voltaic Systems", cand.CompanyRaw)
	require.NotNil(t, cand.Amount)
	assert.True(t, cand.Amount.Undisclosed)
	assert.Equal(t, model.StageUnknown, cand.Stage)
	assert.Less(t, cand.Confidence, 0.5)
}

func TestCleanCompanyName_LeadIns(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"article stripped", "The Acme Corp", "Acme Corp"},
		{"opener stripped", "Today Acme Corp", "Acme Corp"},
		{"startup marker before multi-word name", "Startup Voltaic Systems", "Voltaic Systems"},
		{"climate opener before multi-word name", "Climate Acme Corp", "Acme Corp"},
		{"climate-named company kept whole", "Climate Robotics", "Climate Robotics"},
		{"startup-named company kept whole", "Startup Genome", "Startup Genome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanCompanyName(tt.raw))
		})
	}
}

func TestExtract_CompanyNamedAfterItsSector(t *testing.T) {
	a := article(
		"Climate Robotics raises $8M",
		"Climate Robotics raises $8M in seed funding to scale its biochar units.",
	)

	cand, err := Extract(a)
	require.NoError(t, err)
	assert.Equal(t, "Climate Robotics", cand.CompanyRaw)
}

func TestExtract_SyndicateRoles(t *testing.T) {
	a := article(
		"Hydra Energy closes $40M Series B",
		"Hydra Energy closed a $40M Series B led by Breakthrough Energy Ventures, "+
			"with participation from Khosla Ventures and General Catalyst.",
	)

	cand, err := Extract(a)
	require.NoError(t, err)

	roles := map[string]string{}
	for _, inv := range cand.Investors {
		roles[inv.Name] = inv.Role
	}
	assert.Equal(t, model.RoleLead, roles["Breakthrough Energy Ventures"])
	assert.Equal(t, model.RoleParticipant, roles["Khosla Ventures"])
	assert.Equal(t, model.RoleParticipant, roles["General Catalyst"])
}

func TestExtractStage_PreSeedOutranksSeedSubstring(t *testing.T) {
	raw, stage := extractStage("the pre-seed round closed quickly")
	assert.Equal(t, model.StagePreSeed, stage)
	assert.Equal(t, "pre-seed", raw)
}

func TestExtractStage_FirstMatchInDocumentOrder(t *testing.T) {
	_, stage := extractStage("after its seed round last year, the Series A closed today")
	assert.Equal(t, model.StageSeed, stage)
}

func TestHasFundingSignal(t *testing.T) {
	assert.True(t, HasFundingSignal("the startup raised a new round"))
	assert.False(t, HasFundingSignal("quarterly product update and roadmap"))
}
