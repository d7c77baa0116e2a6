package progress

// Download phase milestones. Transfer fills the first 80 percent; audio
// extraction accounts for the rest.
const (
	downloadTransferShare = 80.0
	downloadComplete      = 100.0
)

// DownloadHook maps acquisition callbacks onto the download phase.
type DownloadHook struct {
	agg *Aggregator
}

// NewDownloadHook binds a hook to agg.
func NewDownloadHook(agg *Aggregator) *DownloadHook {
	return &DownloadHook{agg: agg}
}

// Downloading reports transferred bytes. An unknown total is ignored.
func (h *DownloadHook) Downloading(downloaded, total int64) {
	if h == nil || h.agg == nil || total <= 0 || downloaded < 0 {
		return
	}
	fraction := float64(downloaded) / float64(total)
	if fraction > 1 {
		fraction = 1
	}
	h.agg.Update(PhaseDownload, fraction*downloadTransferShare, "Downloading audio")
}

// Percent reports a transfer percentage parsed from tool output.
func (h *DownloadHook) Percent(percent float64) {
	if h == nil || h.agg == nil {
		return
	}
	h.agg.Update(PhaseDownload, clamp(percent)/100*downloadTransferShare, "Downloading audio")
}

// Finished marks the transfer as complete while conversion continues.
func (h *DownloadHook) Finished() {
	if h == nil || h.agg == nil {
		return
	}
	h.agg.Update(PhaseDownload, downloadTransferShare, "Converting to MP3")
}

// ConversionDone completes the download phase.
func (h *DownloadHook) ConversionDone() {
	if h == nil || h.agg == nil {
		return
	}
	h.agg.Update(PhaseDownload, downloadComplete, "Audio ready")
}
