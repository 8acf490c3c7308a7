package reaper

// Metrics receives operation counts. Implementations must be safe for
// concurrent use.
type Metrics interface {
	FilesScanned(n int)
	ScanErrors(n int)
	Classified(c Classification)
	Banished()
	Restored()
	UndoResult(result string)
	LogRecovered()
}

// NopMetrics discards all counts.
type NopMetrics struct{}

func (NopMetrics) FilesScanned(int)          {}
func (NopMetrics) ScanErrors(int)            {}
func (NopMetrics) Classified(Classification) {}
func (NopMetrics) Banished()                 {}
func (NopMetrics) Restored()                 {}
func (NopMetrics) UndoResult(string)         {}
func (NopMetrics) LogRecovered()             {}
