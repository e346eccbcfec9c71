package models

// SubmittedAnswer is a candidate's value for one question: a single
// string or a string array, keyed by question number. Absent answers
// are represented by the zero value and always evaluate as incorrect.
type SubmittedAnswer struct {
	Text string   `json:"text,omitempty"`
	List []string `json:"list,omitempty"`
}

// IsEmpty reports whether the candidate left the question unanswered.
func (a SubmittedAnswer) IsEmpty() bool {
	if a.Text != "" {
		return false
	}
	for _, v := range a.List {
		if v != "" {
			return false
		}
	}
	return true
}

// AnswerSheet maps question numbers to submitted answers for one section.
type AnswerSheet map[int]SubmittedAnswer
