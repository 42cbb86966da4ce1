package vectordb

import "time"

// Config controls Qdrant client behavior
type Config struct {
	Host       string
	Port       int
	Collection string
	// Search params
	TopK      int
	Threshold float64
	Timeout   time.Duration
}

// Point is one scored Qdrant point with its payload.
type Point struct {
	ID      interface{}            `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// ScrollResult is one page of a payload scan.
type ScrollResult struct {
	Points     []Point
	NextOffset interface{}
}
