package models

// Section identifies one of the four exam skills.
type Section string

const (
	SectionListening Section = "listening"
	SectionReading   Section = "reading"
	SectionWriting   Section = "writing"
	SectionSpeaking  Section = "speaking"
)

// SectionOrder is the fixed sequence a mock test walks through.
var SectionOrder = []Section{
	SectionListening,
	SectionReading,
	SectionWriting,
	SectionSpeaking,
}

// IsValid reports whether s names a known section.
func (s Section) IsValid() bool {
	switch s {
	case SectionListening, SectionReading, SectionWriting, SectionSpeaking:
		return true
	}
	return false
}

// IsObjective reports whether the section is scored by answer matching.
// Writing and speaking go through the evaluation oracle instead.
func (s Section) IsObjective() bool {
	return s == SectionListening || s == SectionReading
}

// Index returns the position of s in SectionOrder, or -1 for unknown sections.
func (s Section) Index() int {
	for i, sec := range SectionOrder {
		if sec == s {
			return i
		}
	}
	return -1
}
