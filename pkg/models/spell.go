package models

// SpellSummary is a list-view spell entry
type SpellSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Level       int    `json:"level"`
	School      string `json:"school"`
	CastingTime string `json:"castingTime"`
	Range       string `json:"range"`
	Duration    string `json:"duration"`
	Components  string `json:"components"`
	// Derived flags: concentration from the duration text, ritual from the
	// "(ritual)" marker inside the school text
	IsConcentration bool `json:"isConcentration"`
	IsRitual        bool `json:"isRitual"`
}

// SpellDetail is the full spell record as stored in data/spells/spells.<lang>.json
type SpellDetail struct {
	SpellSummary
	Classes       []string `json:"classes,omitempty"`
	Materials     string   `json:"materials,omitempty"`
	Ritual        bool     `json:"ritual"`
	Concentration bool     `json:"concentration"`
	Description   string   `json:"description,omitempty"` // markdown
	SavingThrow   string   `json:"savingThrow,omitempty"`
	AreaOfEffect  string   `json:"areaOfEffect,omitempty"`
}

// SpellPage is the paged listing response
type SpellPage struct {
	Items []SpellSummary `json:"items"`
	Total int            `json:"total"`
}

// SpellMeta lists the distinct levels and schools present for a locale
type SpellMeta struct {
	Levels  []int    `json:"levels"`
	Schools []string `json:"schools"`
}
