// Package healthcheck validates the gift chain stored in the directory. It
// never mutates state; failures are data meant for human triage.
package healthcheck

import (
	"secretsanta/internal/participant"
)

// Reason names one failed check.
type Reason string

const (
	ReasonNotConfirmed     Reason = "not_confirmed"
	ReasonNoDescription    Reason = "no_description"
	ReasonNoRecipient      Reason = "no_recipient"
	ReasonUnknownRecipient Reason = "recipient_unknown"
	ReasonSelfLoop         Reason = "self_loop"
	ReasonMutualPair       Reason = "mutual_pair"
	ReasonAsymmetricLink   Reason = "asymmetric_link"
	ReasonNoGiver          Reason = "no_giver"
	ReasonMultipleGivers   Reason = "multiple_givers"
)

// ParticipantReport is the verdict for one participant.
type ParticipantReport struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	GiftsTo     string   `json:"gifts_to,omitempty"`
	OK          bool     `json:"ok"`
	Reasons     []Reason `json:"reasons,omitempty"`
}

// Report aggregates every participant verdict. OK is the AND of all of them.
type Report struct {
	OK           bool                `json:"ok"`
	Participants []ParticipantReport `json:"participants"`
	Unhealthy    int                 `json:"unhealthy"`
}

// Healthy reports the aggregate verdict.
func (r Report) Healthy() bool {
	return r.OK
}

// Verify checks each participant's membership and assignment link against
// the others in participants. With requireLinks every participant must have
// exactly one outgoing and one incoming link; without it, missing links are
// tolerated but any link present must still be sound.
func Verify(participants []participant.Participant, requireLinks bool) Report {
	byID := make(map[string]*participant.Participant, len(participants))
	givers := make(map[string]int, len(participants))
	for i := range participants {
		p := &participants[i]
		byID[p.ID] = p
		if p.GiftsTo != "" {
			givers[p.GiftsTo]++
		}
	}

	report := Report{OK: true, Participants: make([]ParticipantReport, 0, len(participants))}
	for i := range participants {
		pr := verifyOne(&participants[i], byID, givers, requireLinks)
		if !pr.OK {
			report.OK = false
			report.Unhealthy++
		}
		report.Participants = append(report.Participants, pr)
	}
	return report
}

func verifyOne(p *participant.Participant, byID map[string]*participant.Participant, givers map[string]int, requireLinks bool) ParticipantReport {
	var reasons []Reason
	if !p.IsConfirmed() {
		reasons = append(reasons, ReasonNotConfirmed)
	}
	if p.Description == "" {
		reasons = append(reasons, ReasonNoDescription)
	}

	switch {
	case p.GiftsTo == "":
		if requireLinks {
			reasons = append(reasons, ReasonNoRecipient)
		}
	case p.GiftsTo == p.ID:
		reasons = append(reasons, ReasonSelfLoop)
	default:
		recipient, ok := byID[p.GiftsTo]
		if !ok || recipient.Description == "" {
			reasons = append(reasons, ReasonUnknownRecipient)
			break
		}
		if recipient.GiftsTo == p.ID {
			reasons = append(reasons, ReasonMutualPair)
		}
		if recipient.ReceivesFrom != p.ID {
			reasons = append(reasons, ReasonAsymmetricLink)
		}
	}

	switch n := givers[p.ID]; {
	case n > 1:
		reasons = append(reasons, ReasonMultipleGivers)
	case n == 0 && requireLinks:
		reasons = append(reasons, ReasonNoGiver)
	}

	return ParticipantReport{
		ID:          p.ID,
		Description: p.Description,
		GiftsTo:     p.GiftsTo,
		OK:          len(reasons) == 0,
		Reasons:     reasons,
	}
}
