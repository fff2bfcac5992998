package orchestrator

// State is the observable orchestrator state. Readers get copies.
type State struct {
	Listening    bool    `json:"listening"`
	MicEnabled   bool    `json:"mic_enabled"`
	Volume       float64 `json:"volume"`
	Speaking     bool    `json:"speaking"`
	Processing   bool    `json:"processing"`
	InterimText  string  `json:"interim_text"`
	ErrorMessage string  `json:"error_message"`
}
