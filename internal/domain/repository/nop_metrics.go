package repository

// NopMetrics discards every observation. Used in tests and when the
// metrics endpoint is disabled.
type NopMetrics struct{}

func (NopMetrics) RecordQuote(string) {}
func (NopMetrics) RecordPairTested(string) {}
func (NopMetrics) RecordPairSignificant(string) {}
func (NopMetrics) RecordSignal(string) {}
func (NopMetrics) RecordZScore(string, float64) {}
func (NopMetrics) RecordError(string) {}
func (NopMetrics) RecordLatency(string, float64) {}
