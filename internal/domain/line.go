package domain

// Machine is one station of a production line and the tools it can mount.
type Machine struct {
	Tools []Tool `json:"tools"`
}

// ProductionLine groups machines that work one piece after the other.
type ProductionLine struct {
	ID int64 `json:"id"`
	// ToolChangeTime is the time a machine needs to swap tools, in minutes.
	ToolChangeTime int       `json:"tool_change_time"`
	Machines       []Machine `json:"machines"`
}

// Offers reports whether any machine on the line can mount t.
func (l ProductionLine) Offers(t Tool) bool {
	for _, m := range l.Machines {
		for _, mt := range m.Tools {
			if mt == t {
				return true
			}
		}
	}
	return false
}
