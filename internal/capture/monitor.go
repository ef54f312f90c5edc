package capture

// MonitorInfo describes a connected display output.
type MonitorInfo struct {
	Index     int           `json:"index"`
	Name      string        `json:"name"`
	Handle    MonitorHandle `json:"handle"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	X         int           `json:"x"`
	Y         int           `json:"y"`
	IsPrimary bool          `json:"isPrimary"`
}

// MonitorByIndex returns the monitor with the given enumeration index.
func MonitorByIndex(monitors []MonitorInfo, index int) (MonitorInfo, bool) {
	for _, m := range monitors {
		if m.Index == index {
			return m, true
		}
	}
	return MonitorInfo{}, false
}
