package captions

// TranscriptWord is one word with provider timestamps in milliseconds
type TranscriptWord struct {
	Text       string  `json:"text"`
	StartMs    int     `json:"start"`
	EndMs      int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Utterance is a speaker-labeled span of the transcript
type Utterance struct {
	Text    string           `json:"text"`
	StartMs int              `json:"start"`
	EndMs   int              `json:"end"`
	Speaker string           `json:"speaker"`
	Words   []TranscriptWord `json:"words"`
}

// Highlight is one key phrase from the provider's highlights model
type Highlight struct {
	Text  string  `json:"text"`
	Rank  float64 `json:"rank"`
	Count int     `json:"count"`
}

// SentimentResult is one sentiment-scored sentence
type SentimentResult struct {
	Text      string `json:"text"`
	Sentiment string `json:"sentiment"` // POSITIVE, NEUTRAL, NEGATIVE
}

// Entity is one detected named entity
type Entity struct {
	EntityType string `json:"entity_type"`
	Text       string `json:"text"`
}

// Transcript is the provider's transcription resource. Smart-feature
// fields are populated only when requested and are logged, never
// rendered.
type Transcript struct {
	ID         string           `json:"id"`
	Status     string           `json:"status"` // queued, processing, completed, error
	Error      string           `json:"error,omitempty"`
	Text       string           `json:"text,omitempty"`
	Words      []TranscriptWord `json:"words,omitempty"`
	Utterances []Utterance      `json:"utterances,omitempty"`

	AutoHighlightsResult *struct {
		Status  string      `json:"status"`
		Results []Highlight `json:"results"`
	} `json:"auto_highlights_result,omitempty"`
	SentimentAnalysisResults []SentimentResult `json:"sentiment_analysis_results,omitempty"`
	Entities                 []Entity          `json:"entities,omitempty"`
	IABCategoriesResult      *struct {
		Status  string             `json:"status"`
		Summary map[string]float64 `json:"summary"`
	} `json:"iab_categories_result,omitempty"`
}

// Terminal reports whether the transcript reached a final status
func (t *Transcript) Terminal() bool {
	return t.Status == "completed" || t.Status == "error"
}
