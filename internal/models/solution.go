package models

// Input types accepted by the engine.
const (
	InputText  = "text"
	InputVoice = "voice"
	InputImage = "image"
	InputLog   = "log"
)

// Input is a raw request before normalization to plain text.
type Input struct {
	// Type is one of InputText, InputVoice, InputImage, InputLog.
	Type string `json:"input_type"`

	// Text is the user's typed description; it is the fallback when normalization fails.
	Text string `json:"text"`

	// LogContent carries pasted log lines for InputLog.
	LogContent string `json:"log_content,omitempty"`

	// Payload carries audio or image bytes.
	Payload []byte `json:"-"`

	// Filename is the original upload name, used to infer audio format.
	Filename string `json:"filename,omitempty"`

	DeviceCategory string `json:"device_category,omitempty"`
}

// Step is one numbered instruction.
type Step struct {
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
}

// WebResult is one web search hit.
type WebResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Analysis is a freshly generated diagnosis.
type Analysis struct {
	Issue            string   `json:"issue"`
	PossibleCauses   []string `json:"possible_causes"`
	RecommendedSteps []Step   `json:"recommended_steps"`
	ConfidenceScore  float64  `json:"confidence_score"`
	AdditionalInfo   string   `json:"additional_info,omitempty"`
}

// ImageExtraction is text read from a screenshot or photo.
type ImageExtraction struct {
	Text       string   `json:"extracted_text"`
	ErrorCodes []string `json:"error_codes"`
}

// NumberSteps turns ordered instructions into steps numbered from 1.
func NumberSteps(descriptions []string) []Step {
	steps := make([]Step, 0, len(descriptions))
	for i, d := range descriptions {
		steps = append(steps, Step{StepNumber: i + 1, Description: d})
	}
	return steps
}

// StepDescriptions returns the descriptions of steps in order.
func StepDescriptions(steps []Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Description)
	}
	return out
}
