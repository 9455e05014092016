package models

// NeighborsRequest asks for the most similar instruments to one
// instrument in the current embedding index.
type NeighborsRequest struct {
	Instrument string `query:"instrument" validate:"required"`
	K          int    `query:"k" default:"10" validate:"min=1,max=100"`
}

// SignalsRequest pages through recently emitted signals.
type SignalsRequest struct {
	Limit int `query:"limit" default:"100" validate:"min=1,max=1000"`
}

// ResultsRequest pages through recent cointegration test results.
type ResultsRequest struct {
	Limit int `query:"limit" default:"100" validate:"min=1,max=1000"`
}

// DiscoveryRunRequest triggers an asynchronous discovery run. An empty
// universe means every instrument the history store knows about.
type DiscoveryRunRequest struct {
	AsOf     string   `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Universe []string `json:"universe"`
}
