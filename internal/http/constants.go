package httpx

const (
	// defaultRunsLimit bounds run listings when the query omits limit.
	defaultRunsLimit = 20
	// defaultLogsLimit bounds the ingestion log tail when the query omits limit.
	defaultLogsLimit = 50
	// maxListLimit caps every list endpoint regardless of the requested limit.
	maxListLimit = 500
)
