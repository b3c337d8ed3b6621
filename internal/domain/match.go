package domain

// Candidate — сырое попадание из индекса до агрегации:
// вариант какой-то крышки на расстоянии similarity от запроса.
// Similarity — косинусная близость в [-1, 1], больше — лучше.
type Candidate struct {
	CapID      int64
	Similarity float32
}

// AggregatedMatch — итог агрегации всех попаданий одной крышки.
// Никогда не персистится, живёт только в рамках одного запроса.
type AggregatedMatch struct {
	CapID          int64
	MatchCount     int
	MeanSimilarity float32
	MinSimilarity  float32
	MaxSimilarity  float32
}
