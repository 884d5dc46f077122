package budget

import "time"

// Slot names one of the three approval signatures of an engagement.
type Slot string

const (
	SlotSupervisor1   Slot = "supervisor1"
	SlotSupervisor2   Slot = "supervisor2"
	SlotFinalApproval Slot = "finalApproval"
)

// Slots lists approval slots in signing order.
var Slots = []Slot{SlotSupervisor1, SlotSupervisor2, SlotFinalApproval}

// ParseSlot validates an approval slot name.
func ParseSlot(value string) (Slot, bool) {
	switch Slot(value) {
	case SlotSupervisor1, SlotSupervisor2, SlotFinalApproval:
		return Slot(value), true
	default:
		return "", false
	}
}

// Signature is one filled approval slot.
type Signature struct {
	Name        string `json:"name" yaml:"name"`
	Date        string `json:"date" yaml:"date"`
	Signature   bool   `json:"signature" yaml:"signature"`
	Observation string `json:"observation,omitempty" yaml:"observation,omitempty"`
}

// Approvals holds the three approval slots; nil means absent.
type Approvals struct {
	Supervisor1   *Signature `json:"supervisor1,omitempty" yaml:"supervisor1,omitempty"`
	Supervisor2   *Signature `json:"supervisor2,omitempty" yaml:"supervisor2,omitempty"`
	FinalApproval *Signature `json:"finalApproval,omitempty" yaml:"finalApproval,omitempty"`
}

// Get returns the signature stored in slot, or nil.
func (a Approvals) Get(slot Slot) *Signature {
	switch slot {
	case SlotSupervisor1:
		return a.Supervisor1
	case SlotSupervisor2:
		return a.Supervisor2
	case SlotFinalApproval:
		return a.FinalApproval
	}
	return nil
}

func (a *Approvals) set(slot Slot, sig *Signature) {
	switch slot {
	case SlotSupervisor1:
		a.Supervisor1 = sig
	case SlotSupervisor2:
		a.Supervisor2 = sig
	case SlotFinalApproval:
		a.FinalApproval = sig
	}
}

// Signed reports whether slot carries a positive signature.
func (a Approvals) Signed(slot Slot) bool {
	sig := a.Get(slot)
	return sig != nil && sig.Signature
}

// Complete reports whether all three slots are signed.
func (a Approvals) Complete() bool {
	for _, slot := range Slots {
		if !a.Signed(slot) {
			return false
		}
	}
	return true
}

// SignedCount returns the number of signed slots.
func (a Approvals) SignedCount() int {
	n := 0
	for _, slot := range Slots {
		if a.Signed(slot) {
			n++
		}
	}
	return n
}

func (a Approvals) clone() Approvals {
	out := Approvals{}
	for _, slot := range Slots {
		if sig := a.Get(slot); sig != nil {
			dup := *sig
			out.set(slot, &dup)
		}
	}
	return out
}

// Signer is the user attempting to sign.
type Signer struct {
	FullName   string
	Profession Profession
}

// CanSign checks whether signer may sign slot on the engagement. A draft
// (an engagement without an id) may never receive the final approval.
func (e *Engagement) CanSign(slot Slot, signer Signer) error {
	if e == nil {
		return ErrNilEngagement
	}
	if _, ok := ParseSlot(string(slot)); !ok {
		return NewValidationError("unknown approval slot", "slot")
	}
	if signer.Profession.Capabilities().SignSlot != slot {
		return precondition("profession " + quoteProfession(signer.Profession) + " cannot sign " + string(slot))
	}
	if e.Approvals.Signed(slot) {
		return precondition(string(slot) + " is already signed")
	}
	if slot == SlotFinalApproval {
		if e.IsDraft() {
			return precondition("final approval requires an existing engagement")
		}
		if !e.Approvals.Signed(SlotSupervisor1) || !e.Approvals.Signed(SlotSupervisor2) {
			return precondition("final approval requires both supervisor signatures")
		}
	}
	return nil
}

// Sign fills slot for signer after CanSign succeeds. Status is not touched.
func (e *Engagement) Sign(slot Slot, signer Signer, observation string, now time.Time) error {
	if err := e.CanSign(slot, signer); err != nil {
		return err
	}
	e.Approvals.set(slot, &Signature{
		Name:        signer.FullName,
		Date:        now.Format(DateLayout),
		Signature:   true,
		Observation: observation,
	})
	return nil
}

func quoteProfession(p Profession) string {
	if p == ProfessionNone {
		return `""`
	}
	return `"` + string(p) + `"`
}
