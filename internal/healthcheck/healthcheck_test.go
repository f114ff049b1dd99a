package healthcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretsanta/internal/participant"
)

func confirmed(id, giftsTo, receivesFrom string) participant.Participant {
	return participant.Participant{
		ID:           id,
		Description:  "likes " + id,
		Membership:   participant.MembershipConfirmed,
		GiftsTo:      giftsTo,
		ReceivesFrom: receivesFrom,
	}
}

func ring() []participant.Participant {
	return []participant.Participant{
		confirmed("a", "b", "c"),
		confirmed("b", "c", "a"),
		confirmed("c", "a", "b"),
	}
}

func reasonsOf(r Report, id string) []Reason {
	for _, p := range r.Participants {
		if p.ID == id {
			return p.Reasons
		}
	}
	return nil
}

func TestVerifyHealthyRing(t *testing.T) {
	report := Verify(ring(), true)
	assert.True(t, report.Healthy())
	assert.Zero(t, report.Unhealthy)
	require.Len(t, report.Participants, 3)
	for _, p := range report.Participants {
		assert.True(t, p.OK, p.ID)
		assert.Empty(t, p.Reasons)
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	ps := ring()
	ps[1].GiftsTo = "a"
	first := Verify(ps, true)
	second := Verify(ps, true)
	assert.Equal(t, first, second)
}

func TestVerifyFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]participant.Participant) []participant.Participant
		id     string
		want   Reason
	}{
		{
			name: "unconfirmed participant",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[0].Membership = participant.MembershipProvisional
				return ps
			},
			id:   "a",
			want: ReasonNotConfirmed,
		},
		{
			name: "missing outgoing link",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[0].GiftsTo = ""
				return ps
			},
			id:   "a",
			want: ReasonNoRecipient,
		},
		{
			name: "recipient unknown",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[0].GiftsTo = "ghost"
				return ps
			},
			id:   "a",
			want: ReasonUnknownRecipient,
		},
		{
			name: "recipient without description",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[1].Description = ""
				return ps
			},
			id:   "a",
			want: ReasonUnknownRecipient,
		},
		{
			name: "self loop",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[0].GiftsTo = "a"
				return ps
			},
			id:   "a",
			want: ReasonSelfLoop,
		},
		{
			name: "mutual pair",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[1].GiftsTo = "a"
				return ps
			},
			id:   "a",
			want: ReasonMutualPair,
		},
		{
			name: "asymmetric link",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[1].ReceivesFrom = "c"
				return ps
			},
			id:   "a",
			want: ReasonAsymmetricLink,
		},
		{
			name: "two givers share a recipient",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[2].GiftsTo = "b"
				return ps
			},
			id:   "b",
			want: ReasonMultipleGivers,
		},
		{
			name: "nobody gives to a participant",
			mutate: func(ps []participant.Participant) []participant.Participant {
				ps[2].GiftsTo = "b"
				return ps
			},
			id:   "a",
			want: ReasonNoGiver,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Verify(tt.mutate(ring()), true)
			assert.False(t, report.Healthy())
			assert.Contains(t, reasonsOf(report, tt.id), tt.want)
		})
	}
}

func TestVerifyWithoutLinksRequired(t *testing.T) {
	ps := []participant.Participant{
		confirmed("a", "", ""),
		confirmed("b", "", ""),
	}
	assert.True(t, Verify(ps, false).Healthy())
	assert.False(t, Verify(ps, true).Healthy())

	ps[0].GiftsTo = "a"
	assert.False(t, Verify(ps, false).Healthy(), "links present are still checked")
}

func TestVerifyEmpty(t *testing.T) {
	assert.True(t, Verify(nil, true).Healthy())
}
