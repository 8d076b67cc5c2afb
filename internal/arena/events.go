package arena

import "strconv"

const (
	EventTypeGameCreated   = "GameCreated"
	EventTypeGameJoined    = "GameJoined"
	EventTypeGameStarted   = "GameStarted"
	EventTypeCardPlayed    = "CardPlayed"
	EventTypeRoundResolved = "RoundResolved"
	EventTypeGameCompleted = "GameCompleted"
)

type Attribute struct {
	Key   string
	Value string
}

type Event struct {
	Type       string
	Attributes []Attribute
}

func NewEvent(typ string, attrs ...Attribute) Event {
	return Event{Type: typ, Attributes: attrs}
}

func NewAttribute(k, v string) Attribute {
	return Attribute{Key: k, Value: v}
}

func gameIDAttr(id uint64) Attribute {
	return NewAttribute("gameId", strconv.FormatUint(id, 10))
}
