package frame

import "fmt"

// Field names of the persona prompt shape. Declaration order here is the
// render order of the final prompt.
const (
	FieldIntroduction      = "introduction"
	FieldExamples          = "examples"
	FieldFacts             = "facts"
	FieldIsAI              = "is_ai"
	FieldPreConversation   = "pre_conversation_annotation"
	FieldResponseType      = "response_type"
	FieldPreResponse       = "pre_response_annotation"
	FieldConversation      = "conversation"
	FieldReadingCue        = "reading_cue"
	FieldAbilityResult     = "ability_result"
	FieldSpeechCue         = "speech_cue"
)

// Prompt is a Frame with the persona reply shape: identity framing, selected
// context, the running conversation and a trailing speech cue that anchors the
// completion to the persona's voice.
type Prompt struct {
	*Frame
	name string
}

// NewPrompt creates the persona prompt frame for the named persona. All
// fields default to empty except the speech cue, so an unpopulated prompt
// renders to just "<Name>:".
func NewPrompt(name string) *Prompt {
	return &Prompt{
		name: name,
		Frame: New(
			Field{Name: FieldIntroduction},
			Field{Name: FieldExamples},
			Field{Name: FieldFacts},
			Field{Name: FieldIsAI},
			Field{Name: FieldPreConversation},
			Field{Name: FieldResponseType},
			Field{Name: FieldPreResponse},
			Field{Name: FieldConversation},
			Field{Name: FieldReadingCue},
			Field{Name: FieldAbilityResult},
			Field{Name: FieldSpeechCue, Default: String(fmt.Sprintf("<%s>:", name))},
		),
	}
}

// Name returns the persona name the prompt was built for.
func (p *Prompt) Name() string {
	return p.name
}

// Clone deep-copies the prompt so one in-flight generation never observes
// another's field mutations.
func (p *Prompt) Clone() *Prompt {
	return &Prompt{Frame: p.Frame.Clone(), name: p.name}
}

// SetIntroduction frames the persona description as a character sheet the
// dialogue writers were handed.
func (p *Prompt) SetIntroduction(introduction string) {
	p.SetString(FieldIntroduction,
		"Something that our team enjoyed recently was being given randomly-generated character descriptions, then writing rich, detailed, convincing dialogues. The plot-twist: those dialogues occur in a modern internet chatroom. So, we present to you, the character description:\n\n"+introduction)
}

// UseExamples injects relevance-selected example dialogues. An empty slice
// clears the field.
func (p *Prompt) UseExamples(examples []string) {
	if len(examples) == 0 {
		p.SetString(FieldExamples, "")
		return
	}
	parts := make([]string, 0, len(examples)+2)
	parts = append(parts, "\nHere are some example dialogues that we sketched out that really capture the voice and tonality of the character:")
	parts = append(parts, examples...)
	parts = append(parts, "")
	p.SetList(FieldExamples, parts...)
}

// UseFacts injects relevance-selected facts as a bullet list. An empty slice
// clears the field.
func (p *Prompt) UseFacts(facts []string) {
	if len(facts) == 0 {
		p.SetString(FieldFacts, "")
		return
	}
	parts := make([]string, 0, len(facts)+1)
	parts = append(parts, "We were also given these facts, which we were told to be absolutely consistent with:")
	for _, f := range facts {
		parts = append(parts, "- "+f)
	}
	p.SetList(FieldFacts, parts...)
}

// SetIsAI adds the AI-disclosure sentence when the persona is declared as an
// AI character.
func (p *Prompt) SetIsAI(isAI bool) {
	if !isAI {
		p.SetString(FieldIsAI, "")
		return
	}
	p.SetString(FieldIsAI,
		"Note that despite being specified as an AI, we chose to act as a human-level AI and to speak naturally, with artistic flair and personality.")
}

// SetResponseType frames the requested response style as guidance for the
// dialogue that follows.
func (p *Prompt) SetResponseType(responseType string) {
	if responseType == "" {
		p.SetString(FieldResponseType, "")
		return
	}
	p.SetString(FieldResponseType,
		fmt.Sprintf("And now, the full dialogue where we give the character its unique, distinct voice and typing style. Users submitted questions to us and had long conversations, and we gave responses that were %s (luckily we had expert researchers and specialists on the team - sometimes it took us up to three hours to craft the perfect answer):", responseType))
}

// SetPreResponseAnnotation adds a one-off steering note just before the
// persona's reply slot.
func (p *Prompt) SetPreResponseAnnotation(annotation string) {
	if annotation == "" {
		p.SetString(FieldPreResponse, "")
		return
	}
	p.SetString(FieldPreResponse,
		fmt.Sprintf("(Quick note, and we promise there won't be any more commentary after this: %s)", annotation))
}

// SetConversation sets the running conversation text.
func (p *Prompt) SetConversation(conversation string) {
	p.SetString(FieldConversation, conversation)
}

// UseKnowledge injects retrieved knowledge passages as a sources cue.
func (p *Prompt) UseKnowledge(knowledge string) {
	if knowledge == "" {
		p.SetString(FieldReadingCue, "")
		return
	}
	p.SetString(FieldReadingCue, fmt.Sprintf("(Sources: %q)", knowledge))
}

// UseAbilityResult injects the result of an ability call.
func (p *Prompt) UseAbilityResult(result string) {
	if result == "" {
		p.SetString(FieldAbilityResult, "")
		return
	}
	p.SetString(FieldAbilityResult, fmt.Sprintf("(API result: %q)", result))
}
