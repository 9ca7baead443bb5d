package diagnosis

import "strings"

const (
	healthyCareTip = "Your plant looks healthy! Keep maintaining good care practices."
	unknownCareTip = "This plant is not in our database. The classifier knows Tomato, Potato and Pepper leaves only; upload one of these for an accurate diagnosis."

	unknownPlant   = "Unknown Plant"
	unknownDisease = "Not in database"
	healthyDisease = "Healthy"
)

// ClassLabel is a parsed classifier class name.
type ClassLabel struct {
	Raw     string
	Plant   string
	Disease string
	Healthy bool
}

// ParseClassLabel splits a dataset class name such as "Tomato___Early_blight"
// into "Tomato Leaf" and "Early blight". Underscore runs act as single
// separators; the first token is the plant.
func ParseClassLabel(label string) ClassLabel {
	parts := strings.FieldsFunc(label, func(r rune) bool { return r == '_' })

	cl := ClassLabel{Raw: label, Plant: "Unknown Leaf", Disease: label}
	if len(parts) > 0 {
		cl.Plant = parts[0] + " Leaf"
	}
	if strings.Contains(strings.ToLower(label), "healthy") {
		cl.Healthy = true
		cl.Disease = healthyDisease
		return cl
	}
	if len(parts) > 1 {
		cl.Disease = strings.Join(parts[1:], " ")
	}
	return cl
}
