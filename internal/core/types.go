package core

// Class identifies a fixed operation class subject to admission control.
// Classes are enumerated at compile time; adding one means wiring a new
// limiter profile, not a runtime registration.
type Class string

const (
	ClassText     Class = "text"
	ClassVoice    Class = "voice"
	ClassCallback Class = "callback"
	ClassAI       Class = "ai"
	ClassStorage  Class = "storage"
)

// Classes returns every operation class in declaration order.
func Classes() []Class {
	return []Class{ClassText, ClassVoice, ClassCallback, ClassAI, ClassStorage}
}

// Known reports whether c is one of the enumerated operation classes.
func (c Class) Known() bool {
	switch c {
	case ClassText, ClassVoice, ClassCallback, ClassAI, ClassStorage:
		return true
	}
	return false
}

// Dependency names an external collaborator whose calls are tracked and
// isolated. The set is fixed at startup; unknown names are warn-logged no-ops.
type Dependency string

const (
	DepChat    Dependency = "chat"
	DepAI      Dependency = "ai"
	DepSpeech  Dependency = "speech"
	DepStorage Dependency = "storage"
)

// Dependencies returns every tracked dependency in declaration order.
func Dependencies() []Dependency {
	return []Dependency{DepChat, DepAI, DepSpeech, DepStorage}
}
