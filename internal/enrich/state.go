package enrich

// State is a step of the per-record enrichment pipeline.
type State int

// Pending → Extracting → ImageFound → Downloading → Validated → Uploading → Enriched.
// NoImageFound and DownloadFailed lead to PassThrough, as does any other failure.
const (
	StatePending State = iota
	StateExtracting
	StateImageFound
	StateNoImageFound
	StateDownloading
	StateDownloadFailed
	StateValidated
	StateUploading
	StateEnriched
	StatePassThrough
)

var stateNames = [...]string{
	StatePending:        "pending",
	StateExtracting:     "extracting",
	StateImageFound:     "image_found",
	StateNoImageFound:   "no_image_found",
	StateDownloading:    "downloading",
	StateDownloadFailed: "download_failed",
	StateValidated:      "validated",
	StateUploading:      "uploading",
	StateEnriched:       "enriched",
	StatePassThrough:    "pass_through",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
