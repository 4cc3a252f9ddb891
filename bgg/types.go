package bgg

const (
	StatusOK         = "ok"
	StatusProcessing = "processing"
)

// Game is one extracted collection entry. Both fields degrade to null when
// the upstream payload lacks them; extraction never fails a whole request.
type Game struct {
	ObjectID *string `json:"objectid"`
	Name     *string `json:"name"`
}

// Collection is the normalized result of one upstream collection body.
// Status is either StatusOK (Items populated, possibly empty) or
// StatusProcessing (Message populated, Items absent).
type Collection struct {
	Status  string
	Message *string
	Items   []Game
}
