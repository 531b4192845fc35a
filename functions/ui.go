package functions

// UIAction is the local effect of a UI tool. Every catalog entry has exactly
// one; NotUI marks tools executed through an Executor.
type UIAction int

const (
	NotUI UIAction = iota
	BeginBreathing
	ShowSeatCard
	ShowRouteMap
	ShowLiveMap
	ShowEmergencyContacts
	CallEmergencyContact
)

var uiActionNames = map[UIAction]string{
	NotUI:                 "none",
	BeginBreathing:        "begin_breathing",
	ShowSeatCard:          "show_seat_card",
	ShowRouteMap:          "show_route_map",
	ShowLiveMap:           "show_live_map",
	ShowEmergencyContacts: "show_emergency_contacts",
	CallEmergencyContact:  "call_emergency_contact",
}

func (a UIAction) String() string {
	if s, ok := uiActionNames[a]; ok {
		return s
	}
	return "unknown"
}

// IsUI reports whether the action is handled locally.
func (a UIAction) IsUI() bool {
	return a != NotUI
}

// Classify returns the UI action for a tool name. Unknown names are NotUI
// and will fail in the executor.
func Classify(name string) UIAction {
	if t, ok := Lookup(name); ok {
		return t.UI
	}
	return NotUI
}

// ContactTypes accepted by the emergency contact tools.
var ContactTypes = []string{"partner", "doctor", "emergency", "family"}

// AutoCallTarget extracts the contact to dial from a UI call's arguments,
// accepting contactType or autoCall. Unrecognized values yield "".
func AutoCallTarget(args map[string]any) string {
	for _, key := range []string{"contactType", "autoCall"} {
		v, _ := args[key].(string)
		for _, c := range ContactTypes {
			if v == c {
				return c
			}
		}
	}
	return ""
}
