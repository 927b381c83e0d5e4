package media

// ElementEventType enumerates what a media element reports.
type ElementEventType int

const (
	ElementTimeUpdate ElementEventType = iota + 1
	ElementPlaying
	ElementPaused
	ElementEnded
	ElementRateChanged
	ElementSeeked
	ElementError
)

func (t ElementEventType) String() string {
	switch t {
	case ElementTimeUpdate:
		return "timeupdate"
	case ElementPlaying:
		return "playing"
	case ElementPaused:
		return "paused"
	case ElementEnded:
		return "ended"
	case ElementRateChanged:
		return "ratechange"
	case ElementSeeked:
		return "seeked"
	case ElementError:
		return "error"
	}
	return "unknown"
}

// ElementEvent is a raw notification from a media element.
type ElementEvent struct {
	Type ElementEventType
	// Time is the element's current time in seconds.
	Time float64
	// Rate is set for ElementRateChanged.
	Rate float64
	// Err is set for ElementError.
	Err error
}

// Element is the media resource itself. Implementations may emit events
// from any goroutine.
type Element interface {
	// Duration is the media length in seconds, 0 while unknown.
	Duration() float64
	CurrentTime() float64
	Playing() bool

	Seek(seconds float64) error
	Play() error
	Pause() error
	SetRate(rate float64) error

	// Listen registers fn for element events and returns a function that
	// removes it.
	Listen(fn func(ElementEvent)) (stop func())
}
