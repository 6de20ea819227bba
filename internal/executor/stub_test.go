package executor

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arbworker/livearb/internal/domain"
)

func testOpportunity(id string) domain.Opportunity {
	return domain.Opportunity{
		ID:        id,
		EventKey:  "evt-1",
		ProfitPct: 1.5,
		LegA:      domain.Leg{Venue: domain.VenueA},
		LegB:      domain.Leg{Venue: domain.VenueB},
	}
}

func TestStubLogsEachNewOpportunityOnce(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	s := NewStub(log)

	s.OnOpportunity(testOpportunity("opp-1"))
	s.OnOpportunity(testOpportunity("opp-1"))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "opportunity ready for execution"))
}

func TestStubLogsDistinctOpportunityIDsIndependently(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	s := NewStub(log)

	s.OnOpportunity(testOpportunity("opp-1"))
	s.OnOpportunity(testOpportunity("opp-2"))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "opportunity ready for execution"))
}

func TestDedupAllowsRepeatAfterTTL(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)
	assert.False(t, d.IsDuplicate("x"))
	assert.True(t, d.IsDuplicate("x"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.IsDuplicate("x"))
}
