package types

// PointRecord 每一条流水的细节
type PointRecord struct {
	ID         int64          `json:"id,string"`
	Amount     int64          `json:"amount"`
	Reason     string         `json:"reason"`
	Category   string         `json:"category"`
	Multiplier string         `json:"multiplier"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// ListPointsRecord 流水列表包装
type ListPointsRecord struct {
	Records    []PointRecord `json:"records"`
	NextCursor int64         `json:"next_cursor,string"`
	HasMore    bool          `json:"has_more"`
}
