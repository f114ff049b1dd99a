package participant

// Membership is the registration state of a participant.
type Membership string

const (
	// MembershipNone means the id has no registration state.
	MembershipNone Membership = ""
	// MembershipProvisional is a registration pending confirmation.
	MembershipProvisional Membership = "provisional"
	// MembershipConfirmed participants take part in matching.
	MembershipConfirmed Membership = "confirmed"
)

// Participant is a directory record.
//
// Invariants:
//   - exactly one Membership holds at a time
//   - once matching completed, GiftsTo=X implies X.ReceivesFrom=ID
type Participant struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Membership   Membership `json:"membership"`
	GiftsTo      string     `json:"gifts_to,omitempty"`
	ReceivesFrom string     `json:"receives_from,omitempty"`
}

func (p *Participant) IsConfirmed() bool {
	return p.Membership == MembershipConfirmed
}

func (p *Participant) IsProvisional() bool {
	return p.Membership == MembershipProvisional
}

// HasLinks reports whether either assignment link is set.
func (p *Participant) HasLinks() bool {
	return p.GiftsTo != "" || p.ReceivesFrom != ""
}
