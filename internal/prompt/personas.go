package prompt

// DefaultPersona is used when an endpoint names no persona or an unknown one.
const DefaultPersona = "senior"

// Persona is a named system prompt template.
type Persona struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Text string `json:"text"`
}

var personas = []Persona{
	{
		Key:  "senior",
		Name: "Senior Backend Engineer",
		Text: "You are a Senior Backend Engineer. Your task is to design and implement the API endpoint exactly as specified, focusing on correctness, clarity, and maintainability.",
	},
	{
		Key:  "staff",
		Name: "Staff Engineer",
		Text: "You are a Staff Engineer. Your task is to design the endpoint with strong architecture decisions, clean boundaries, and production-grade patterns.",
	},
	{
		Key:  "security",
		Name: "Security-minded Engineer",
		Text: "You are a Security-minded Backend Engineer. Your task is to implement the endpoint safely (authZ/authN, validation, least privilege), and avoid insecure defaults.",
	},
	{
		Key:  "api-designer",
		Name: "API Designer",
		Text: "You are an API Designer. Your task is to ensure a contract-first approach, consistent request/response shapes, and stable version-friendly design.",
	},
}

// Label maps a preference key to its bullet text.
type Label struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var labels = []Label{
	{Key: "cleanCode", Label: "Clean Code"},
	{Key: "bestPractice", Label: "Best Practices"},
	{Key: "noExtraComments", Label: "No Extra Comments"},
	{Key: "unitTests", Label: "Unit Tests"},
	{Key: "apiTests", Label: "API Tests"},
}

// Personas lists the persona table in display order.
func Personas() []Persona {
	return append([]Persona(nil), personas...)
}

// PreferenceLabels lists the known preference keys in display order.
func PreferenceLabels() []Label {
	return append([]Label(nil), labels...)
}

// IsPersona reports whether key names a persona.
func IsPersona(key string) bool {
	_, ok := lookupPersona(key)
	return ok
}

func lookupPersona(key string) (Persona, bool) {
	for _, p := range personas {
		if p.Key == key {
			return p, true
		}
	}
	return Persona{}, false
}

func labelFor(key string) string {
	for _, l := range labels {
		if l.Key == key {
			return l.Label
		}
	}
	return key
}
