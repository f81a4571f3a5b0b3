package models

// Player represents one phone controller in a room
type Player struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Age               int      `json:"age"`
	Score             int      `json:"score"`
	LastAnswer        string   `json:"lastAnswer"`
	PreferredLanguage string   `json:"preferredLanguage"`
	Traits            []string `json:"traits"`
}

// Clone returns a copy that shares no slices with p
func (p Player) Clone() Player {
	out := p
	out.Traits = append([]string{}, p.Traits...)
	return out
}
