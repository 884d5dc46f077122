package budget

import "strings"

// Profession is the job title of a signer. It decides which approval slot a
// user may sign and whether they may change engagement status.
type Profession string

const (
	ProfessionNone                Profession = ""
	ProfessionGrantCoordinator    Profession = "Coordinateur de la Subvention"
	ProfessionAccountant          Profession = "Comptable"
	ProfessionNationalCoordinator Profession = "Coordonnateur National"
)

// Capabilities are the workflow rights attached to a profession.
type Capabilities struct {
	SignSlot     Slot
	ModifyStatus bool
}

var professionCapabilities = map[Profession]Capabilities{
	ProfessionGrantCoordinator:    {SignSlot: SlotSupervisor1},
	ProfessionAccountant:          {SignSlot: SlotSupervisor2},
	ProfessionNationalCoordinator: {SignSlot: SlotFinalApproval, ModifyStatus: true},
}

// ParseProfession maps a profession label to the enumeration.
// Unknown labels map to ProfessionNone.
func ParseProfession(value string) Profession {
	p := Profession(strings.TrimSpace(value))
	if _, ok := professionCapabilities[p]; ok {
		return p
	}
	return ProfessionNone
}

// Capabilities returns the workflow rights of the profession.
func (p Profession) Capabilities() Capabilities {
	return professionCapabilities[p]
}

// CanModifyStatus reports whether the profession may move engagement status.
func (p Profession) CanModifyStatus() bool {
	return p.Capabilities().ModifyStatus
}

// SlotProfession returns the profession designated for an approval slot.
func SlotProfession(slot Slot) Profession {
	for p, caps := range professionCapabilities {
		if caps.SignSlot == slot {
			return p
		}
	}
	return ProfessionNone
}
