package lookup

import "clientlookup/brand"

// ExampleClientID is offered to users who just want to see the tool work.
const ExampleClientID = "606092904014-s1u3idjanlbhr4ns5b1hcjgfn63cr9nh.apps.googleusercontent.com"

// State is one of Ready, Loading, Loaded or Failed.
type State interface {
	isState()
}

// Ready accepts input. It is the initial state.
type Ready struct {
	InputID string
}

// Loading means a request is in flight for ClientID.
type Loading struct {
	ClientID string
}

// Loaded holds the decoded details.
type Loaded struct {
	Details brand.Details
}

// Failed holds the error that ended the lookup.
type Failed struct {
	Err error
}

func (Ready) isState()   {}
func (Loading) isState() {}
func (Loaded) isState()  {}
func (Failed) isState()  {}

// Message is the user facing description of the failure.
func (f Failed) Message() string {
	return Message(f.Err)
}

// Kind classifies the failure.
func (f Failed) Kind() ErrorKind {
	return KindOf(f.Err)
}

// StateName returns a short label for logs and templates.
func StateName(s State) string {
	switch s.(type) {
	case Ready:
		return "ready"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
