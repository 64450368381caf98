package file

// PlannerConfig bounds the chunk size chosen for an upload.
type PlannerConfig struct {
	// DefaultChunkSize is used unmodified whenever it keeps the chunk count
	// within MaxPackets.
	DefaultChunkSize int
	// MaxPackets is the ceiling on the number of chunks.
	MaxPackets int
	// MinChunkSize and MaxChunkSize clamp a recomputed chunk size.
	MinChunkSize int
	MaxChunkSize int
	// Alignment is the multiple a recomputed chunk size is rounded up to.
	Alignment int
}

// DefaultPlannerConfig returns the device's chunking limits.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		DefaultChunkSize: 1024,
		MaxPackets:       512,
		MinChunkSize:     512,
		MaxChunkSize:     4096,
		Alignment:        16,
	}
}

// ChunkPlan is the chunking chosen for one upload.
type ChunkPlan struct {
	ChunkSize  int
	ChunkCount int
}

// PlanChunks picks a chunk size for size bytes. The default size is kept when it
// yields at most MaxPackets chunks; otherwise the size is recomputed once as
// ceil(size/MaxPackets), rounded up to Alignment and clamped into
// [MinChunkSize, MaxChunkSize]. An empty payload plans zero chunks.
func PlanChunks(size int, cfg PlannerConfig) ChunkPlan {
	per := cfg.DefaultChunkSize
	if per <= 0 {
		per = DefaultPlannerConfig().DefaultChunkSize
	}
	if cfg.MaxPackets > 0 && ceilDiv(size, per) > cfg.MaxPackets {
		per = ceilDiv(size, cfg.MaxPackets)
		if cfg.Alignment > 1 {
			per = ceilDiv(per, cfg.Alignment) * cfg.Alignment
		}
		if cfg.MaxChunkSize > 0 && per > cfg.MaxChunkSize {
			per = cfg.MaxChunkSize
		}
		if per < cfg.MinChunkSize {
			per = cfg.MinChunkSize
		}
	}
	return ChunkPlan{ChunkSize: per, ChunkCount: ceilDiv(size, per)}
}

// Bounds returns the [start, end) byte range of chunk index within size bytes.
func (p ChunkPlan) Bounds(index, size int) (int, int) {
	start := index * p.ChunkSize
	if start > size {
		start = size
	}
	end := start + p.ChunkSize
	if end > size {
		end = size
	}
	return start, end
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
