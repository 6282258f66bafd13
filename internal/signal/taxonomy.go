package signal

// Track is one entry of the topical taxonomy together with the heuristic
// hints used to recognise it.
type Track struct {
	Key         string
	Label       string
	Stream      StreamKey
	Keywords    []string
	DomainHints []string
}

// FallbackTrackKey is used when no track scores above zero.
const FallbackTrackKey = "community-finds"

// Tracks is the taxonomy in declaration order. Order breaks heuristic ties.
var Tracks = []Track{
	{
		Key:         "platform-apis",
		Label:       "Platform APIs",
		Stream:      StreamToolchain,
		Keywords:    []string{"api", "endpoint", "rate limit", "deprec", "auth", "webhook"},
		DomainHints: []string{"platform.openai.com", "developers", "docs"},
	},
	{
		Key:         "sdks-tooling",
		Label:       "SDKs & Tooling",
		Stream:      StreamToolchain,
		Keywords:    []string{"sdk", "cli", "plugin", "release", "package", "typescript", "python"},
		DomainHints: []string{"npmjs.com", "pypi.org", "github.com"},
	},
	{
		Key:         "agents-orchestration",
		Label:       "Agents & Orchestration",
		Stream:      StreamToolchain,
		Keywords:    []string{"agent", "workflow", "orchestr", "function calling", "tool use", "multi-step"},
		DomainHints: []string{"langchain", "crew", "autogen", "github.com"},
	},
	{
		Key:         "models-training",
		Label:       "Models & Training",
		Stream:      StreamModelsMethods,
		Keywords:    []string{"model", "fine-tun", "checkpoint", "training", "alignment", "distill"},
		DomainHints: []string{"huggingface.co", "arxiv.org", "research"},
	},
	{
		Key:         "inference-serving",
		Label:       "Inference & Serving",
		Stream:      StreamOpsRuntime,
		Keywords:    []string{"inference", "throughput", "latency", "serving", "runtime", "batch"},
		DomainHints: []string{"modal.com", "replicate.com", "cloud.google.com", "aws.amazon.com"},
	},
	{
		Key:         "rag-retrieval",
		Label:       "RAG & Retrieval",
		Stream:      StreamModelsMethods,
		Keywords:    []string{"rag", "retrieval", "vector", "embedding", "rerank", "chunk"},
		DomainHints: []string{"pinecone.io", "weaviate.io", "qdrant.tech", "docs"},
	},
	{
		Key:         "on-device-edge",
		Label:       "On-device & Edge",
		Stream:      StreamOpsRuntime,
		Keywords:    []string{"on-device", "edge", "mobile", "ios", "android", "wasm"},
		DomainHints: []string{"webkit.org", "developer.apple.com", "developer.android.com"},
	},
	{
		Key:         "hardware-drivers",
		Label:       "Hardware & Drivers",
		Stream:      StreamOpsRuntime,
		Keywords:    []string{"cuda", "driver", "gpu", "npu", "kernel", "vram", "tensor"},
		DomainHints: []string{"nvidia.com", "amd.com", "intel.com"},
	},
	{
		Key:         "research-benchmarks",
		Label:       "Research & Benchmarks",
		Stream:      StreamModelsMethods,
		Keywords:    []string{"benchmark", "eval", "leaderboard", "paper", "sota", "study"},
		DomainHints: []string{"arxiv.org", "paperswithcode.com", "openreview.net"},
	},
	{
		Key:         "community-finds",
		Label:       "Community Finds",
		Stream:      StreamWilds,
		Keywords:    []string{"showcase", "demo", "community", "reddit", "thread", "tutorial"},
		DomainHints: []string{"reddit.com", "news.ycombinator.com", "dev.to"},
	},
}

// Streams lists every stream in display order.
var Streams = []StreamKey{
	StreamHeadliners,
	StreamToolchain,
	StreamModelsMethods,
	StreamOpsRuntime,
	StreamWilds,
}

var streamLabels = map[StreamKey]string{
	StreamHeadliners:    "Headliners",
	StreamToolchain:     "Toolchain",
	StreamModelsMethods: "Models & Methods",
	StreamOpsRuntime:    "Ops & Runtime",
	StreamWilds:         "The Wilds",
}

// HotHints and NotableHints drive heuristic heat.
var (
	HotHints     = []string{"breaking", "major", "ga", "general availability", "critical", "security", "v1", "launch", "open weights"}
	NotableHints = []string{"update", "release", "improve", "benchmark", "support", "new", "added", "feature", "beta"}
)

// Rationales are the fixed heuristic explanations per heat.
var Rationales = map[Heat]string{
	HeatHot:     "Marked HOT because the item signals a high-impact release or policy change from a core provider.",
	HeatNotable: "Marked NOTABLE because it introduces material capabilities or workflow changes relevant to daily builders.",
	HeatQuiet:   "Marked QUIET because it is useful context with lower immediate operational impact.",
}

var tracksByKey = func() map[string]Track {
	m := make(map[string]Track, len(Tracks))
	for _, t := range Tracks {
		m[t.Key] = t
	}
	return m
}()

// TrackByKey looks up a track.
func TrackByKey(key string) (Track, bool) {
	t, ok := tracksByKey[key]
	return t, ok
}

// TrackLabel returns the label for key, or "" when unknown.
func TrackLabel(key string) string {
	return tracksByKey[key].Label
}

// StreamLabel returns the label for key, or "" when unknown.
func StreamLabel(key StreamKey) string {
	return streamLabels[key]
}

// ValidHeat reports whether h is a known heat.
func ValidHeat(h Heat) bool {
	return h == HeatHot || h == HeatNotable || h == HeatQuiet
}

// ValidConfidence reports whether c is a known confidence.
func ValidConfidence(c Confidence) bool {
	return c == ConfidenceVerified || c == ConfidenceUnverified
}

// ValidSourceType reports whether t has an adapter.
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceRSS, SourceGitHubReleases, SourceNPMUpdates, SourceRedditRSS, SourceCustomRSS:
		return true
	}
	return false
}

// TrackKeys returns the taxonomy keys in declaration order.
func TrackKeys() []string {
	keys := make([]string, len(Tracks))
	for i, t := range Tracks {
		keys[i] = t.Key
	}
	return keys
}
